package trust

import (
	"fmt"

	"github.com/mxkit/mxtrust-go/internal/identity"
)

// UpsertResult describes what an identity observation changed.
type UpsertResult int

const (
	// Unchanged: the observed master key matches the stored one.
	Unchanged UpsertResult = iota
	// FirstObservation: the user had no stored identity; the observed
	// master key becomes the pin.
	FirstObservation
	// ChangedFromPinned: the master key changed and no verification record
	// covers the new fingerprint; the violation flag is now set.
	ChangedFromPinned
	// ChangedButReverifiedOrRepinned: the master key changed but an
	// explicit verification record (or the pin itself) already covers the
	// new fingerprint; no violation is raised and the pin is updated.
	ChangedButReverifiedOrRepinned
)

func (r UpsertResult) String() string {
	switch r {
	case Unchanged:
		return "unchanged"
	case FirstObservation:
		return "first-observation"
	case ChangedFromPinned:
		return "changed-from-pinned"
	case ChangedButReverifiedOrRepinned:
		return "changed-but-reverified-or-repinned"
	default:
		return fmt.Sprintf("UpsertResult(%d)", int(r))
	}
}

// Observation is a user's cross-signing key set as published by the server.
type Observation struct {
	UserID         identity.UserID
	Kind           identity.Kind
	MasterKey      identity.CrossSigningKey
	SelfSigningKey identity.CrossSigningKey
	UserSigningKey *identity.CrossSigningKey // Own identities only
}

// ObserveIdentity records a freshly observed identity. The self-signing key
// must chain to the observed master key; a broken chain is rejected before
// anything is persisted. Key material, pin and violation flag are committed
// as one atomic update.
func (s *Service) ObserveIdentity(obs Observation) (UpsertResult, error) {
	if obs.UserID == "" || obs.MasterKey.PublicKey == "" || obs.SelfSigningKey.PublicKey == "" {
		return Unchanged, fmt.Errorf("trust: incomplete observation for %q", obs.UserID)
	}

	candidate := &identity.Identity{
		Kind:           obs.Kind,
		UserID:         obs.UserID,
		MasterKey:      obs.MasterKey,
		SelfSigningKey: obs.SelfSigningKey,
		UserSigningKey: obs.UserSigningKey,
	}
	if err := identity.CheckSelfSigningKey(s.verifier, candidate); err != nil {
		return Unchanged, err
	}

	existing, err := s.store.GetIdentity(obs.UserID)
	if err != nil {
		return Unchanged, err
	}

	if existing == nil {
		candidate.PinnedMasterKey = obs.MasterKey.PublicKey
		if err := s.store.SaveIdentity(candidate); err != nil {
			return Unchanged, err
		}
		logf(s.logger, "observe: first identity for %s key=%s", obs.UserID, obs.MasterKey.PublicKey)
		return FirstObservation, nil
	}

	result := Unchanged
	_, err = s.store.UpdateIdentity(obs.UserID, func(ident *identity.Identity) error {
		changed := ident.MasterKey.PublicKey != obs.MasterKey.PublicKey

		ident.Kind = obs.Kind
		ident.MasterKey = obs.MasterKey
		ident.SelfSigningKey = obs.SelfSigningKey
		ident.UserSigningKey = obs.UserSigningKey

		if !changed {
			return nil
		}

		switch obs.MasterKey.PublicKey {
		case ident.VerifiedMasterKey, ident.PinnedMasterKey:
			// The new key was already explicitly verified, or we are
			// back on the pinned key. Either way the user accepted
			// this exact fingerprint before.
			ident.PinnedMasterKey = obs.MasterKey.PublicKey
			ident.Violation = false
			result = ChangedButReverifiedOrRepinned
		default:
			ident.Violation = true
			result = ChangedFromPinned
			logf(s.logger, "observe: identity of %s changed from pinned %s to %s",
				obs.UserID, ident.PinnedMasterKey, obs.MasterKey.PublicKey)
		}
		return nil
	})
	if err != nil {
		return Unchanged, err
	}
	return result, nil
}

// ObserveDevices records the published devices of a user, preserving local
// verification flags for devices already known.
func (s *Service) ObserveDevices(userID identity.UserID, devices []*identity.Device) error {
	for _, dev := range devices {
		if dev.UserID != userID {
			return fmt.Errorf("trust: device %s belongs to %s, not %s", dev.DeviceID, dev.UserID, userID)
		}
		existing, err := s.store.GetDevice(userID, dev.DeviceID)
		if err != nil {
			return err
		}
		if existing != nil {
			dev.LocallyVerified = existing.LocallyVerified
			dev.IsLocal = existing.IsLocal
		}
	}
	return s.store.SaveDevices(devices)
}
