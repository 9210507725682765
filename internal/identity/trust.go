package identity

import (
	"errors"
	"fmt"
)

// Trust evaluation is pure: given the same stored state the answers are
// reproducible, with no hidden lookups. The error-returning checks exist so
// that a failed signature check can be surfaced instead of silently reading
// as "unverified"; the boolean wrappers apply the safe default (untrusted) on
// any error.

var (
	errNotPinned      = errors.New("identity: master key does not match pin")
	errNoSignature    = errors.New("identity: no signature present")
	errNotVerified    = errors.New("identity: not verified")
	errNoUserIdentity = errors.New("identity: owner has no published identity")
)

// CheckSelfSigningKey verifies that the identity's self-signing key is signed
// by its master key.
func CheckSelfSigningKey(v Verifier, ident *Identity) error {
	sig := ident.SelfSigningKey.SignatureFrom(ident.UserID, ident.MasterKey.KeyID())
	if sig == "" {
		return fmt.Errorf("self-signing key of %s: %w", ident.UserID, errNoSignature)
	}
	if err := v.VerifyJSON(ident.MasterKey.PublicKey, ident.SelfSigningKey.SigningPayload(), sig); err != nil {
		return fmt.Errorf("self-signing key of %s: %w", ident.UserID, err)
	}
	return nil
}

// CheckDeviceCrossSigned verifies that the device keys carry a valid signature
// from the owner's currently pinned self-signing key. A signature from a
// historical, superseded self-signing key does not count: the master key must
// match the pin, the self-signing key must chain to that master key, and the
// device must chain to the self-signing key.
func CheckDeviceCrossSigned(v Verifier, dev *Device, owner *Identity) error {
	if owner == nil {
		return errNoUserIdentity
	}
	if !owner.Pinned() {
		return errNotPinned
	}
	if err := CheckSelfSigningKey(v, owner); err != nil {
		return err
	}
	sig := dev.SignatureFrom(owner.UserID, owner.SelfSigningKey.KeyID())
	if sig == "" {
		return fmt.Errorf("device %s of %s: %w", dev.DeviceID, dev.UserID, errNoSignature)
	}
	if err := v.VerifyJSON(owner.SelfSigningKey.PublicKey, dev.SigningPayload(), sig); err != nil {
		return fmt.Errorf("device %s of %s: %w", dev.DeviceID, dev.UserID, err)
	}
	return nil
}

// CheckIdentityVerified reports whether the identity counts as verified.
// An identity is verified if an explicit local verification record exists for
// its current master key, or, for our own identity, if the master key carries
// a valid signature from the local device (the device that performed the
// initial cross-signing bootstrap).
func CheckIdentityVerified(v Verifier, ident *Identity, localDevice *Device) error {
	if ident.ExplicitlyVerified() {
		return nil
	}
	if ident.Kind == Own && localDevice != nil {
		keyID := "ed25519:" + string(localDevice.DeviceID)
		sig := ident.MasterKey.SignatureFrom(ident.UserID, keyID)
		if sig != "" {
			return v.VerifyJSON(localDevice.SigningKey, ident.MasterKey.SigningPayload(), sig)
		}
	}
	return errNotVerified
}

// IsIdentityVerified is the boolean form of CheckIdentityVerified.
func IsIdentityVerified(v Verifier, ident *Identity, localDevice *Device) bool {
	if ident == nil {
		return false
	}
	return CheckIdentityVerified(v, ident, localDevice) == nil
}

// IsDeviceTrusted reports whether a device may be trusted with key material.
// The local device is trusted by definition. Otherwise trust requires either
// an explicit local verification record for the device, or a valid
// cross-signature from the owner's currently pinned self-signing key combined
// with a verified owner identity.
func IsDeviceTrusted(v Verifier, dev *Device, owner *Identity, localDevice *Device) bool {
	if dev.IsLocal {
		return true
	}
	if dev.LocallyVerified {
		return true
	}
	if owner == nil {
		return false
	}
	if !IsIdentityVerified(v, owner, localDevice) {
		return false
	}
	return CheckDeviceCrossSigned(v, dev, owner) == nil
}
