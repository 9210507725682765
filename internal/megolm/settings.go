// Package megolm holds the group session policy side of the engine: the
// frozen per-session encryption settings, rotation triggers, and the
// recipient collection strategies that decide which devices receive a room
// key.
package megolm

import "time"

// Algorithm identifies the encryption algorithm of a room.
type Algorithm string

const (
	AlgorithmOlmV1    Algorithm = "m.olm.v1.curve25519-aes-sha2"
	AlgorithmMegolmV1 Algorithm = "m.megolm.v1.aes-sha2"
)

// HistoryVisibility is the room history visibility at session creation time.
type HistoryVisibility string

const (
	VisibilityInvited       HistoryVisibility = "invited"
	VisibilityJoined        HistoryVisibility = "joined"
	VisibilityShared        HistoryVisibility = "shared"
	VisibilityWorldReadable HistoryVisibility = "world_readable"
)

// CollectStrategy selects which devices receive a newly created or rotated
// group key. The choice is closed: device-based with or without a trust
// requirement, or identity-based.
type CollectStrategy int

const (
	// DeviceBasedAllDevices shares with every device of every member.
	DeviceBasedAllDevices CollectStrategy = iota
	// DeviceBasedOnlyTrusted shares only with trusted devices.
	DeviceBasedOnlyTrusted
	// IdentityBased shares with devices properly cross-signed by their
	// owner's published, currently pinned identity. Trust of the identity
	// itself is not required; users without a published identity receive
	// no keys.
	IdentityBased
)

func (s CollectStrategy) String() string {
	switch s {
	case DeviceBasedOnlyTrusted:
		return "device-based-only-trusted"
	case IdentityBased:
		return "identity-based"
	default:
		return "device-based-all"
	}
}

// EncryptionSettings is the frozen configuration of one group session.
// A session keeps the settings it was created with; rotation creates a new
// session rather than mutating these.
type EncryptionSettings struct {
	Algorithm Algorithm

	// RotationPeriod is the wall-clock lifetime of a session.
	RotationPeriod time.Duration

	// RotationPeriodMessages is the message-count lifetime. The two
	// thresholds are independent; crossing either one makes the session
	// due for rotation.
	RotationPeriodMessages uint64

	HistoryVisibility HistoryVisibility
	Strategy          CollectStrategy
}

// DefaultEncryptionSettings returns the defaults used when a room specifies
// nothing: Megolm, weekly rotation or 100 messages, shared visibility, all
// devices.
func DefaultEncryptionSettings() EncryptionSettings {
	return EncryptionSettings{
		Algorithm:              AlgorithmMegolmV1,
		RotationPeriod:         7 * 24 * time.Hour,
		RotationPeriodMessages: 100,
		HistoryVisibility:      VisibilityShared,
		Strategy:               DeviceBasedAllDevices,
	}
}
