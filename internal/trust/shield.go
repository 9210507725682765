package trust

import (
	"errors"

	"github.com/mxkit/mxtrust-go/internal/identity"
)

// ShieldColor is the warning level of a shield.
type ShieldColor int

const (
	// ShieldNone: verified or exempt, no warning.
	ShieldNone ShieldColor = iota
	// ShieldGrey: unverified but not in violation, low warning.
	ShieldGrey
	// ShieldRed: verification violation or failed signature check,
	// important warning.
	ShieldRed
)

func (c ShieldColor) String() string {
	switch c {
	case ShieldRed:
		return "red"
	case ShieldGrey:
		return "grey"
	default:
		return "none"
	}
}

// ShieldState is a derived, ephemeral warning indicator. It is recomputed
// from identity and device state on every query and never persisted; the
// message carries no secrets.
type ShieldState struct {
	Color   ShieldColor
	Message string
}

// Shield wording, kept stable for UI display.
const (
	msgIdentityChanged  = "Sender's verified identity has changed"
	msgIdentityUnpinned = "Sender's identity is not verified"
	msgDeviceUnverified = "Encrypted by an unverified device"
	msgDeviceUnsigned   = "Encrypted by a device not verified by its owner"
	msgNoIdentity       = "Sender has no published identity"
)

// ShieldForIdentity projects the trust state of a user's identity into a
// warning level. An inconclusive evaluation (store or signature error) yields
// Red rather than silently clearing the warning.
func (s *Service) ShieldForIdentity(userID identity.UserID) ShieldState {
	ident, err := s.store.GetIdentity(userID)
	if err != nil {
		return ShieldState{Color: ShieldRed, Message: err.Error()}
	}
	if ident == nil {
		return ShieldState{Color: ShieldGrey, Message: msgNoIdentity}
	}
	if ident.Violation {
		return ShieldState{Color: ShieldRed, Message: msgIdentityChanged}
	}
	if ident.Pinned() || ident.ExplicitlyVerified() {
		return ShieldState{}
	}
	return ShieldState{Color: ShieldGrey, Message: msgIdentityUnpinned}
}

// ShieldForDevice projects the trust state of a single device. The local
// device is exempt. Any device of an identity in violation warns Red, a
// failed signature check warns Red, an unverified device warns Grey.
func (s *Service) ShieldForDevice(userID identity.UserID, deviceID identity.DeviceID) ShieldState {
	dev, err := s.store.GetDevice(userID, deviceID)
	if err != nil {
		return ShieldState{Color: ShieldRed, Message: err.Error()}
	}
	if dev == nil {
		return ShieldState{Color: ShieldGrey, Message: msgDeviceUnverified}
	}
	if dev.IsLocal {
		return ShieldState{}
	}

	owner, err := s.store.GetIdentity(userID)
	if err != nil {
		return ShieldState{Color: ShieldRed, Message: err.Error()}
	}
	if owner != nil && owner.Violation {
		return ShieldState{Color: ShieldRed, Message: msgIdentityChanged}
	}

	localDev, err := s.localDeviceRecord()
	if err != nil {
		return ShieldState{Color: ShieldRed, Message: err.Error()}
	}
	if identity.IsDeviceTrusted(s.verifier, dev, owner, localDev) {
		return ShieldState{}
	}

	// Distinguish a broken signature from a merely missing one.
	if owner != nil {
		if err := identity.CheckDeviceCrossSigned(s.verifier, dev, owner); errors.Is(err, identity.ErrSignatureInvalid) {
			return ShieldState{Color: ShieldRed, Message: err.Error()}
		} else if err == nil {
			// Properly cross-signed but the owner identity itself is
			// not verified.
			return ShieldState{Color: ShieldGrey, Message: msgDeviceUnverified}
		}
	}
	return ShieldState{Color: ShieldGrey, Message: msgDeviceUnsigned}
}
