package megolm

import (
	"github.com/mxkit/mxtrust-go/internal/identity"
)

// RoomView is a consistent snapshot of the trust state of a room's members,
// taken at collection time. Key-sharing never reads live mutable state, so a
// concurrent pin update cannot be observed halfway through a collection.
type RoomView interface {
	// Identity returns the member's identity, or nil if none is published.
	Identity(identity.UserID) *identity.Identity
	// Devices returns the member's known devices.
	Devices(identity.UserID) []*identity.Device
}

// CollectRecipients filters the devices of the given room members according
// to the strategy. It is recomputed on every session creation or rotation
// and never cached: device and identity state may have changed since the
// last computation.
func CollectRecipients(v identity.Verifier, view RoomView, members []identity.UserID, strategy CollectStrategy, localDevice *identity.Device) []*identity.Device {
	var recipients []*identity.Device
	for _, member := range members {
		owner := view.Identity(member)
		for _, dev := range view.Devices(member) {
			if includeDevice(v, dev, owner, strategy, localDevice) {
				recipients = append(recipients, dev)
			}
		}
	}
	return recipients
}

func includeDevice(v identity.Verifier, dev *identity.Device, owner *identity.Identity, strategy CollectStrategy, localDevice *identity.Device) bool {
	switch strategy {
	case DeviceBasedOnlyTrusted:
		return identity.IsDeviceTrusted(v, dev, owner, localDevice)
	case IdentityBased:
		// The identity does not need to be trusted, only published,
		// pinned and actually signing the device. No identity, no keys.
		if owner == nil {
			return false
		}
		return identity.CheckDeviceCrossSigned(v, dev, owner) == nil
	default: // DeviceBasedAllDevices
		return true
	}
}
