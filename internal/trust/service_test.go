package trust

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mxkit/mxtrust-go/internal/identity"
	"github.com/mxkit/mxtrust-go/internal/store"
)

const (
	localUser   = identity.UserID("@alice:example.org")
	localDevice = identity.DeviceID("ALICEDEV")
)

func testService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "trust.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if _, err := Bootstrap(st, localUser, localDevice); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	svc := NewService(Config{
		Store:       st,
		LocalUser:   localUser,
		LocalDevice: localDevice,
	})
	return svc, st
}

// remoteParty generates the key material of another user so tests can feed
// realistic signed observations and devices into the service.
type remoteParty struct {
	userID     identity.UserID
	masterPriv ed25519.PrivateKey
	sskPriv    ed25519.PrivateKey
	masterPub  string
	sskPub     string
}

func newRemoteParty(t *testing.T, userID identity.UserID) *remoteParty {
	t.Helper()
	masterPub, masterPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sskPub, sskPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return &remoteParty{
		userID:     userID,
		masterPriv: masterPriv,
		sskPriv:    sskPriv,
		masterPub:  identity.EncodeKey(masterPub),
		sskPub:     identity.EncodeKey(sskPub),
	}
}

func (p *remoteParty) observation(t *testing.T) Observation {
	t.Helper()
	master := identity.CrossSigningKey{
		UserID: p.userID, Usage: identity.UsageMaster, PublicKey: p.masterPub,
	}
	ssk := identity.CrossSigningKey{
		UserID: p.userID, Usage: identity.UsageSelfSigning, PublicKey: p.sskPub,
	}
	sig, err := identity.SignJSON(p.masterPriv, ssk.SigningPayload())
	if err != nil {
		t.Fatalf("sign SSK: %v", err)
	}
	ssk.SetSignature(p.userID, master.KeyID(), sig)
	return Observation{
		UserID:         p.userID,
		Kind:           identity.Other,
		MasterKey:      master,
		SelfSigningKey: ssk,
	}
}

func (p *remoteParty) device(t *testing.T, deviceID identity.DeviceID) *identity.Device {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	dev := &identity.Device{
		UserID:     p.userID,
		DeviceID:   deviceID,
		SigningKey: identity.EncodeKey(pub),
	}
	sig, err := identity.SignJSON(p.sskPriv, dev.SigningPayload())
	if err != nil {
		t.Fatalf("sign device: %v", err)
	}
	sskKeyID := "ed25519:" + p.sskPub
	dev.SetSignature(p.userID, sskKeyID, sig)
	return dev
}

func TestBootstrap(t *testing.T) {
	svc, st := testService(t)

	acct, err := st.LoadAccount()
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if acct == nil || acct.UserID != string(localUser) {
		t.Fatalf("account not persisted: %+v", acct)
	}

	verified, err := svc.IsIdentityVerified(localUser)
	if err != nil {
		t.Fatalf("IsIdentityVerified: %v", err)
	}
	if !verified {
		t.Error("fresh own identity not verified on its own device")
	}

	trusted, err := svc.TrustsOurOwnDevice()
	if err != nil {
		t.Fatalf("TrustsOurOwnDevice: %v", err)
	}
	if !trusted {
		t.Error("fresh local device not cross-signed by own identity")
	}

	if _, err := Bootstrap(st, localUser, "OTHERDEV"); err == nil {
		t.Error("second Bootstrap on the same store succeeded")
	}
}

func TestObserveIdentity(t *testing.T) {
	svc, _ := testService(t)
	bob := newRemoteParty(t, "@bob:example.org")

	res, err := svc.ObserveIdentity(bob.observation(t))
	if err != nil {
		t.Fatalf("ObserveIdentity: %v", err)
	}
	if res != FirstObservation {
		t.Fatalf("result = %s, want first-observation", res)
	}
	ident, err := svc.GetIdentity(bob.userID)
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if ident.PinnedMasterKey != bob.masterPub {
		t.Errorf("first observation did not pin: pin=%q", ident.PinnedMasterKey)
	}

	t.Run("same key is unchanged", func(t *testing.T) {
		res, err := svc.ObserveIdentity(bob.observation(t))
		if err != nil {
			t.Fatalf("ObserveIdentity: %v", err)
		}
		if res != Unchanged {
			t.Errorf("result = %s, want unchanged", res)
		}
	})

	t.Run("broken signing chain rejected before persist", func(t *testing.T) {
		carol := newRemoteParty(t, "@carol:example.org")
		obs := carol.observation(t)
		obs.SelfSigningKey.Signatures = nil
		if _, err := svc.ObserveIdentity(obs); err == nil {
			t.Fatal("observation with unsigned SSK accepted")
		}
		ident, err := svc.GetIdentity(carol.userID)
		if err != nil {
			t.Fatalf("GetIdentity: %v", err)
		}
		if ident != nil {
			t.Error("rejected observation was persisted")
		}
	})
}

func TestIdentityChangeAndRecovery(t *testing.T) {
	svc, _ := testService(t)

	bob := newRemoteParty(t, "@bob:example.org")
	if _, err := svc.ObserveIdentity(bob.observation(t)); err != nil {
		t.Fatalf("ObserveIdentity: %v", err)
	}
	// Bob's account resets: a brand new key set appears.
	bob2 := newRemoteParty(t, "@bob:example.org")
	res, err := svc.ObserveIdentity(bob2.observation(t))
	if err != nil {
		t.Fatalf("ObserveIdentity: %v", err)
	}
	if res != ChangedFromPinned {
		t.Fatalf("result = %s, want changed-from-pinned", res)
	}

	violation, err := svc.HasVerificationViolation(bob.userID)
	if err != nil {
		t.Fatalf("HasVerificationViolation: %v", err)
	}
	if !violation {
		t.Error("key change did not raise a violation")
	}
	if shield := svc.ShieldForIdentity(bob.userID); shield.Color != ShieldRed {
		t.Errorf("shield after key change = %s, want red", shield.Color)
	}

	t.Run("pinning the new key clears the warning", func(t *testing.T) {
		if err := svc.PinCurrentMasterKey(bob.userID); err != nil {
			t.Fatalf("PinCurrentMasterKey: %v", err)
		}
		if shield := svc.ShieldForIdentity(bob.userID); shield.Color != ShieldNone {
			t.Errorf("shield after pin = %s (%s), want none", shield.Color, shield.Message)
		}
		violation, err := svc.HasVerificationViolation(bob.userID)
		if err != nil {
			t.Fatalf("HasVerificationViolation: %v", err)
		}
		if violation {
			t.Error("violation still set after pin")
		}
	})

	t.Run("returning to the pinned key is not a violation", func(t *testing.T) {
		// The pin now covers the second key set. The original key coming
		// back is a change away from the pin, so it violates again.
		res, err := svc.ObserveIdentity(bob.observation(t))
		if err != nil {
			t.Fatalf("ObserveIdentity: %v", err)
		}
		if res != ChangedFromPinned {
			t.Fatalf("result = %s, want changed-from-pinned", res)
		}

		// Flipping back to the currently pinned key resolves it.
		res, err = svc.ObserveIdentity(bob2.observation(t))
		if err != nil {
			t.Fatalf("ObserveIdentity: %v", err)
		}
		if res != ChangedButReverifiedOrRepinned {
			t.Fatalf("result = %s, want changed-but-reverified-or-repinned", res)
		}
		if shield := svc.ShieldForIdentity(bob.userID); shield.Color != ShieldNone {
			t.Errorf("shield = %s, want none", shield.Color)
		}
	})
}

func TestVerifyIdentity(t *testing.T) {
	svc, st := testService(t)
	bob := newRemoteParty(t, "@bob:example.org")
	if _, err := svc.ObserveIdentity(bob.observation(t)); err != nil {
		t.Fatalf("ObserveIdentity: %v", err)
	}

	upload, err := svc.VerifyIdentity(bob.userID)
	if err != nil {
		t.Fatalf("VerifyIdentity: %v", err)
	}
	if upload == nil || upload.UserID != bob.userID || len(upload.Keys) != 1 {
		t.Fatalf("unexpected upload: %+v", upload)
	}
	if _, ok := upload.Keys[0]["signatures"]; !ok {
		t.Error("upload payload missing signatures")
	}

	verified, err := svc.IsIdentityVerified(bob.userID)
	if err != nil {
		t.Fatalf("IsIdentityVerified: %v", err)
	}
	if !verified {
		t.Error("identity not verified after VerifyIdentity")
	}

	prev, err := svc.WasPreviouslyVerified(bob.userID)
	if err != nil {
		t.Fatalf("WasPreviouslyVerified: %v", err)
	}
	if !prev {
		t.Error("previously-verified latch not set")
	}

	t.Run("unknown identity", func(t *testing.T) {
		_, err := svc.VerifyIdentity("@ghost:example.org")
		if !errors.Is(err, ErrIdentityNotFound) {
			t.Errorf("expected ErrIdentityNotFound, got %v", err)
		}
	})

	t.Run("missing user-signing key", func(t *testing.T) {
		acct, err := st.LoadAccount()
		if err != nil {
			t.Fatalf("LoadAccount: %v", err)
		}
		seed := acct.UserSigningKeyPrivate
		acct.UserSigningKeyPrivate = nil
		if err := st.SaveAccount(acct); err != nil {
			t.Fatalf("SaveAccount: %v", err)
		}
		defer func() {
			acct.UserSigningKeyPrivate = seed
			if err := st.SaveAccount(acct); err != nil {
				t.Fatalf("SaveAccount: %v", err)
			}
		}()

		_, err = svc.VerifyIdentity(bob.userID)
		if !errors.Is(err, ErrMissingPrivateKey) {
			t.Errorf("expected ErrMissingPrivateKey, got %v", err)
		}
	})
}

func TestVerifiedKeyChangeAndReobservation(t *testing.T) {
	svc, _ := testService(t)
	bob := newRemoteParty(t, "@bob:example.org")
	if _, err := svc.ObserveIdentity(bob.observation(t)); err != nil {
		t.Fatalf("ObserveIdentity: %v", err)
	}
	if _, err := svc.VerifyIdentity(bob.userID); err != nil {
		t.Fatalf("VerifyIdentity: %v", err)
	}

	// New key shows up, then the verified key returns: the stored
	// verification record covers it, so no violation survives.
	bob2 := newRemoteParty(t, "@bob:example.org")
	if res, err := svc.ObserveIdentity(bob2.observation(t)); err != nil || res != ChangedFromPinned {
		t.Fatalf("second observation: res=%v err=%v", res, err)
	}
	res, err := svc.ObserveIdentity(bob.observation(t))
	if err != nil {
		t.Fatalf("ObserveIdentity: %v", err)
	}
	if res != ChangedButReverifiedOrRepinned {
		t.Fatalf("result = %s, want changed-but-reverified-or-repinned", res)
	}
	violation, err := svc.HasVerificationViolation(bob.userID)
	if err != nil {
		t.Fatalf("HasVerificationViolation: %v", err)
	}
	if violation {
		t.Error("violation persists although the verified key returned")
	}
}

func TestWithdrawVerification(t *testing.T) {
	svc, _ := testService(t)
	bob := newRemoteParty(t, "@bob:example.org")
	if _, err := svc.ObserveIdentity(bob.observation(t)); err != nil {
		t.Fatalf("ObserveIdentity: %v", err)
	}
	if _, err := svc.VerifyIdentity(bob.userID); err != nil {
		t.Fatalf("VerifyIdentity: %v", err)
	}

	if err := svc.WithdrawVerification(bob.userID); err != nil {
		t.Fatalf("WithdrawVerification: %v", err)
	}
	verified, err := svc.IsIdentityVerified(bob.userID)
	if err != nil {
		t.Fatalf("IsIdentityVerified: %v", err)
	}
	if verified {
		t.Error("identity still verified after withdrawal")
	}
	prev, err := svc.WasPreviouslyVerified(bob.userID)
	if err != nil {
		t.Fatalf("WasPreviouslyVerified: %v", err)
	}
	if prev {
		t.Error("previously-verified latch survived withdrawal")
	}

	// Withdrawing twice is fine.
	if err := svc.WithdrawVerification(bob.userID); err != nil {
		t.Errorf("second WithdrawVerification: %v", err)
	}

	if err := svc.WithdrawVerification("@ghost:example.org"); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestObserveDevicesAndTrust(t *testing.T) {
	svc, _ := testService(t)
	bob := newRemoteParty(t, "@bob:example.org")
	if _, err := svc.ObserveIdentity(bob.observation(t)); err != nil {
		t.Fatalf("ObserveIdentity: %v", err)
	}

	dev := bob.device(t, "BOBDEV")
	if err := svc.ObserveDevices(bob.userID, []*identity.Device{dev}); err != nil {
		t.Fatalf("ObserveDevices: %v", err)
	}

	trusted, err := svc.IsDeviceTrusted(bob.userID, dev.DeviceID)
	if err != nil {
		t.Fatalf("IsDeviceTrusted: %v", err)
	}
	if trusted {
		t.Error("cross-signed device trusted although Bob is unverified")
	}

	if _, err := svc.VerifyIdentity(bob.userID); err != nil {
		t.Fatalf("VerifyIdentity: %v", err)
	}
	trusted, err = svc.IsDeviceTrusted(bob.userID, dev.DeviceID)
	if err != nil {
		t.Fatalf("IsDeviceTrusted: %v", err)
	}
	if !trusted {
		t.Error("cross-signed device of verified identity not trusted")
	}

	t.Run("reobservation keeps local flags", func(t *testing.T) {
		if err := svc.MarkDeviceVerified(bob.userID, dev.DeviceID, true); err != nil {
			t.Fatalf("MarkDeviceVerified: %v", err)
		}
		fresh := bob.device(t, "BOBDEV")
		if err := svc.ObserveDevices(bob.userID, []*identity.Device{fresh}); err != nil {
			t.Fatalf("ObserveDevices: %v", err)
		}
		devs, err := svc.GetDevices(bob.userID)
		if err != nil {
			t.Fatalf("GetDevices: %v", err)
		}
		if len(devs) != 1 || !devs[0].LocallyVerified {
			t.Error("locally-verified flag lost on reobservation")
		}
	})

	t.Run("foreign device rejected", func(t *testing.T) {
		stray := bob.device(t, "STRAY")
		stray.UserID = "@mallory:example.org"
		if err := svc.ObserveDevices(bob.userID, []*identity.Device{stray}); err == nil {
			t.Error("device with mismatched owner accepted")
		}
	})
}

func TestShieldForDevice(t *testing.T) {
	svc, st := testService(t)
	bob := newRemoteParty(t, "@bob:example.org")
	if _, err := svc.ObserveIdentity(bob.observation(t)); err != nil {
		t.Fatalf("ObserveIdentity: %v", err)
	}

	signed := bob.device(t, "SIGNED")
	if err := svc.ObserveDevices(bob.userID, []*identity.Device{signed}); err != nil {
		t.Fatalf("ObserveDevices: %v", err)
	}
	unsigned := &identity.Device{UserID: bob.userID, DeviceID: "UNSIGNED", SigningKey: "key"}
	if err := st.SaveDevice(unsigned); err != nil {
		t.Fatalf("SaveDevice: %v", err)
	}

	t.Run("local device exempt", func(t *testing.T) {
		if shield := svc.ShieldForDevice(localUser, localDevice); shield.Color != ShieldNone {
			t.Errorf("local device shield = %s, want none", shield.Color)
		}
	})

	t.Run("cross-signed but owner unverified", func(t *testing.T) {
		shield := svc.ShieldForDevice(bob.userID, "SIGNED")
		if shield.Color != ShieldGrey || shield.Message != msgDeviceUnverified {
			t.Errorf("shield = %s (%q)", shield.Color, shield.Message)
		}
	})

	t.Run("not cross-signed", func(t *testing.T) {
		shield := svc.ShieldForDevice(bob.userID, "UNSIGNED")
		if shield.Color != ShieldGrey || shield.Message != msgDeviceUnsigned {
			t.Errorf("shield = %s (%q)", shield.Color, shield.Message)
		}
	})

	t.Run("trusted device", func(t *testing.T) {
		if _, err := svc.VerifyIdentity(bob.userID); err != nil {
			t.Fatalf("VerifyIdentity: %v", err)
		}
		if shield := svc.ShieldForDevice(bob.userID, "SIGNED"); shield.Color != ShieldNone {
			t.Errorf("shield = %s (%q), want none", shield.Color, shield.Message)
		}
	})

	t.Run("owner in violation taints all devices", func(t *testing.T) {
		bob2 := newRemoteParty(t, "@bob:example.org")
		if _, err := svc.ObserveIdentity(bob2.observation(t)); err != nil {
			t.Fatalf("ObserveIdentity: %v", err)
		}
		shield := svc.ShieldForDevice(bob.userID, "SIGNED")
		if shield.Color != ShieldRed || shield.Message != msgIdentityChanged {
			t.Errorf("shield = %s (%q), want red identity-changed", shield.Color, shield.Message)
		}
	})
}

func TestApplyVerificationRecord(t *testing.T) {
	svc, _ := testService(t)
	bob := newRemoteParty(t, "@bob:example.org")
	if _, err := svc.ObserveIdentity(bob.observation(t)); err != nil {
		t.Fatalf("ObserveIdentity: %v", err)
	}
	dev := bob.device(t, "BOBDEV")
	if err := svc.ObserveDevices(bob.userID, []*identity.Device{dev}); err != nil {
		t.Fatalf("ObserveDevices: %v", err)
	}

	if err := svc.ApplyVerificationRecord(bob.userID, dev.DeviceID, bob.masterPub); err != nil {
		t.Fatalf("ApplyVerificationRecord: %v", err)
	}

	ident, err := svc.GetIdentity(bob.userID)
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if ident.VerifiedMasterKey != bob.masterPub || !ident.PreviouslyVerified {
		t.Errorf("verification record not applied: %+v", ident)
	}
	devs, err := svc.GetDevices(bob.userID)
	if err != nil {
		t.Fatalf("GetDevices: %v", err)
	}
	if len(devs) != 1 || !devs[0].LocallyVerified {
		t.Error("device not marked locally verified")
	}
}
