package trust

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mxkit/mxtrust-go/internal/identity"
)

// SignatureUpload is the set of signed key objects that must be published to
// the server after a verification, so other devices can see the new
// signatures.
type SignatureUpload struct {
	UserID identity.UserID
	Keys   []map[string]any
}

// VerifyIdentity marks a user's identity as explicitly verified for its
// current master key and returns the signature upload to publish.
//
// For the local user the master key is signed with the local device key. For
// other users it is signed with our user-signing key; if the private
// user-signing key is not on this device the call fails with
// ErrMissingPrivateKey and no state changes.
func (s *Service) VerifyIdentity(userID identity.UserID) (*SignatureUpload, error) {
	acct, err := s.store.LoadAccount()
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("trust: no local account")
	}

	var upload *SignatureUpload
	ident, err := s.store.UpdateIdentity(userID, func(ident *identity.Identity) error {
		var (
			priv  ed25519.PrivateKey
			keyID string
		)
		if userID == s.localUser {
			if len(acct.DeviceKeyPrivate) == 0 {
				return ErrMissingPrivateKey
			}
			key, err := signingKey(acct.DeviceKeyPrivate)
			if err != nil {
				return err
			}
			priv = key
			keyID = "ed25519:" + string(s.localDevice)
		} else {
			if len(acct.UserSigningKeyPrivate) == 0 {
				return ErrMissingPrivateKey
			}
			key, err := signingKey(acct.UserSigningKeyPrivate)
			if err != nil {
				return err
			}
			priv = key
			keyID = "ed25519:" + identity.EncodeKey(key.Public().(ed25519.PublicKey))
		}

		sig, err := identity.SignJSON(priv, ident.MasterKey.SigningPayload())
		if err != nil {
			return err
		}
		ident.MasterKey.SetSignature(s.localUser, keyID, sig)

		ident.VerifiedMasterKey = ident.MasterKey.PublicKey
		ident.PreviouslyVerified = true
		ident.PinnedMasterKey = ident.MasterKey.PublicKey
		ident.Violation = false

		signed := ident.MasterKey.SigningPayload()
		signed["signatures"] = map[string]any{
			string(s.localUser): map[string]any{keyID: sig},
		}
		upload = &SignatureUpload{UserID: userID, Keys: []map[string]any{signed}}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, ErrIdentityNotFound
	}
	logf(s.logger, "verify: %s explicitly verified for %s", userID, ident.MasterKey.PublicKey)
	return upload, nil
}

// ApplyVerificationRecord consumes the outcome of a completed interactive
// verification: the device is marked locally verified and, when a master key
// fingerprint was confirmed, an explicit verification record is stored for
// it. If the confirmed fingerprint matches the currently observed master key
// the pin moves to it and any violation clears in the same update.
func (s *Service) ApplyVerificationRecord(userID identity.UserID, deviceID identity.DeviceID, masterKey string) error {
	if deviceID != "" {
		if err := s.store.SetDeviceVerified(userID, deviceID, true); err != nil {
			return err
		}
	}
	if masterKey == "" {
		return nil
	}
	ident, err := s.store.UpdateIdentity(userID, func(ident *identity.Identity) error {
		ident.VerifiedMasterKey = masterKey
		ident.PreviouslyVerified = true
		if ident.MasterKey.PublicKey == masterKey {
			ident.PinnedMasterKey = masterKey
			ident.Violation = false
		}
		return nil
	})
	if err != nil {
		return err
	}
	if ident == nil {
		return ErrIdentityNotFound
	}
	return nil
}

// WithdrawVerification removes the requirement for the identity to be
// verified: the explicit verification record, the previously-verified latch
// and any violation flag are cleared together. This is a deliberate trust
// downgrade triggered by the user; it is idempotent.
func (s *Service) WithdrawVerification(userID identity.UserID) error {
	ident, err := s.store.UpdateIdentity(userID, func(ident *identity.Identity) error {
		ident.VerifiedMasterKey = ""
		ident.PreviouslyVerified = false
		ident.Violation = false
		return nil
	})
	if err != nil {
		return err
	}
	if ident == nil {
		return ErrIdentityNotFound
	}
	logf(s.logger, "withdraw: verification requirement removed for %s", userID)
	return nil
}

// PinCurrentMasterKey accepts the currently observed master key as the new
// pin without interactive verification, clearing any violation. This records
// user approval of the key change, not cryptographic verification.
func (s *Service) PinCurrentMasterKey(userID identity.UserID) error {
	ident, err := s.store.UpdateIdentity(userID, func(ident *identity.Identity) error {
		ident.PinnedMasterKey = ident.MasterKey.PublicKey
		ident.Violation = false
		return nil
	})
	if err != nil {
		return err
	}
	if ident == nil {
		return ErrIdentityNotFound
	}
	logf(s.logger, "pin: %s pinned to %s", userID, ident.PinnedMasterKey)
	return nil
}

// MarkDeviceVerified sets or clears the local verification flag of a device.
func (s *Service) MarkDeviceVerified(userID identity.UserID, deviceID identity.DeviceID, verified bool) error {
	return s.store.SetDeviceVerified(userID, deviceID, verified)
}
