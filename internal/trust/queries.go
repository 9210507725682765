package trust

import (
	"fmt"

	"github.com/mxkit/mxtrust-go/internal/identity"
)

// GetIdentity returns the stored identity for a user, or nil if never
// observed.
func (s *Service) GetIdentity(userID identity.UserID) (*identity.Identity, error) {
	return s.store.GetIdentity(userID)
}

// GetDevices returns the known devices of a user.
func (s *Service) GetDevices(userID identity.UserID) ([]*identity.Device, error) {
	return s.store.GetDevices(userID)
}

// IsIdentityVerified reports whether the user's identity is verified: an
// explicit local verification record for the current master key, or, for the
// local user, a master key signed by the local device.
func (s *Service) IsIdentityVerified(userID identity.UserID) (bool, error) {
	ident, err := s.store.GetIdentity(userID)
	if err != nil {
		return false, err
	}
	if ident == nil {
		return false, ErrIdentityNotFound
	}
	localDev, err := s.localDeviceRecord()
	if err != nil {
		return false, err
	}
	return identity.IsIdentityVerified(s.verifier, ident, localDev), nil
}

// IsDeviceTrusted reports whether the device may receive key material.
func (s *Service) IsDeviceTrusted(userID identity.UserID, deviceID identity.DeviceID) (bool, error) {
	dev, err := s.store.GetDevice(userID, deviceID)
	if err != nil {
		return false, err
	}
	if dev == nil {
		return false, fmt.Errorf("trust: device %s/%s not found", userID, deviceID)
	}
	owner, err := s.store.GetIdentity(userID)
	if err != nil {
		return false, err
	}
	localDev, err := s.localDeviceRecord()
	if err != nil {
		return false, err
	}
	return identity.IsDeviceTrusted(s.verifier, dev, owner, localDev), nil
}

// TrustsOurOwnDevice reports whether the local device keys carry a valid
// signature from our own self-signing key. This is separate from general
// device trust: the local device is always trusted by definition, but it may
// still lack a published cross-signature.
func (s *Service) TrustsOurOwnDevice() (bool, error) {
	ownIdent, err := s.store.GetIdentity(s.localUser)
	if err != nil {
		return false, err
	}
	if ownIdent == nil {
		return false, ErrIdentityNotFound
	}
	localDev, err := s.localDeviceRecord()
	if err != nil {
		return false, err
	}
	if localDev == nil {
		return false, fmt.Errorf("trust: local device %s not stored", s.localDevice)
	}
	return identity.CheckDeviceCrossSigned(s.verifier, localDev, ownIdent) == nil, nil
}

// WasPreviouslyVerified reports the monotonic verification latch of a user's
// identity.
func (s *Service) WasPreviouslyVerified(userID identity.UserID) (bool, error) {
	ident, err := s.store.GetIdentity(userID)
	if err != nil {
		return false, err
	}
	if ident == nil {
		return false, ErrIdentityNotFound
	}
	return ident.PreviouslyVerified, nil
}

// HasVerificationViolation reports whether the user's identity changed since
// it was pinned or verified and the change is unresolved.
func (s *Service) HasVerificationViolation(userID identity.UserID) (bool, error) {
	ident, err := s.store.GetIdentity(userID)
	if err != nil {
		return false, err
	}
	if ident == nil {
		return false, ErrIdentityNotFound
	}
	return ident.Violation, nil
}
