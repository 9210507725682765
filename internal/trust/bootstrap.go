package trust

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mxkit/mxtrust-go/internal/identity"
	"github.com/mxkit/mxtrust-go/internal/store"
)

// Bootstrap creates a fresh local account: a device signing key, a full
// cross-signing key set (master, self-signing, user-signing), the own
// identity record, and the cross-signed local device. The master key is
// signed by the device key and vice versa via the self-signing key, so the
// new account starts out self-trusting.
func Bootstrap(st *store.Store, userID identity.UserID, deviceID identity.DeviceID) (*store.Account, error) {
	existing, err := st.LoadAccount()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("trust: account already exists for %s", existing.UserID)
	}

	devicePub, devicePriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("trust: generate device key: %w", err)
	}
	masterPub, masterPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("trust: generate master key: %w", err)
	}
	sskPub, sskPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("trust: generate self-signing key: %w", err)
	}
	uskPub, uskPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("trust: generate user-signing key: %w", err)
	}

	ident := &identity.Identity{
		Kind:   identity.Own,
		UserID: userID,
		MasterKey: identity.CrossSigningKey{
			UserID:    userID,
			Usage:     identity.UsageMaster,
			PublicKey: identity.EncodeKey(masterPub),
		},
		SelfSigningKey: identity.CrossSigningKey{
			UserID:    userID,
			Usage:     identity.UsageSelfSigning,
			PublicKey: identity.EncodeKey(sskPub),
		},
		UserSigningKey: &identity.CrossSigningKey{
			UserID:    userID,
			Usage:     identity.UsageUserSigning,
			PublicKey: identity.EncodeKey(uskPub),
		},
	}
	ident.PinnedMasterKey = ident.MasterKey.PublicKey

	dev := &identity.Device{
		UserID:     userID,
		DeviceID:   deviceID,
		SigningKey: identity.EncodeKey(devicePub),
		IsLocal:    true,
	}

	// Sign the subordinate cross-signing keys with the master key.
	sig, err := identity.SignJSON(masterPriv, ident.SelfSigningKey.SigningPayload())
	if err != nil {
		return nil, err
	}
	ident.SelfSigningKey.SetSignature(userID, ident.MasterKey.KeyID(), sig)

	sig, err = identity.SignJSON(masterPriv, ident.UserSigningKey.SigningPayload())
	if err != nil {
		return nil, err
	}
	ident.UserSigningKey.SetSignature(userID, ident.MasterKey.KeyID(), sig)

	// Sign the master key with the device key: this is the chain that lets
	// the own identity count as verified on this device.
	sig, err = identity.SignJSON(devicePriv, ident.MasterKey.SigningPayload())
	if err != nil {
		return nil, err
	}
	ident.MasterKey.SetSignature(userID, "ed25519:"+string(deviceID), sig)

	// Cross-sign the local device with the self-signing key.
	sig, err = identity.SignJSON(sskPriv, dev.SigningPayload())
	if err != nil {
		return nil, err
	}
	dev.SetSignature(userID, ident.SelfSigningKey.KeyID(), sig)

	acct := &store.Account{
		UserID:                string(userID),
		DeviceID:              string(deviceID),
		DeviceKeyPrivate:      devicePriv.Seed(),
		DeviceKeyPublic:       identity.EncodeKey(devicePub),
		MasterKeyPrivate:      masterPriv.Seed(),
		SelfSigningKeyPrivate: sskPriv.Seed(),
		UserSigningKeyPrivate: uskPriv.Seed(),
	}

	if err := st.SaveAccount(acct); err != nil {
		return nil, err
	}
	if err := st.SaveIdentity(ident); err != nil {
		return nil, err
	}
	if err := st.SaveDevice(dev); err != nil {
		return nil, err
	}
	return acct, nil
}
