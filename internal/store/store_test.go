package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/mxkit/mxtrust-go/internal/identity"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAccountRoundTrip(t *testing.T) {
	s := testStore(t)

	acct, err := s.LoadAccount()
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if acct != nil {
		t.Fatalf("expected no account, got %+v", acct)
	}

	want := &Account{
		UserID:           "@alice:example.org",
		DeviceID:         "DEVICE1",
		DeviceKeyPrivate: []byte{1, 2, 3},
		DeviceKeyPublic:  "pubkey",
		MasterKeyPrivate: []byte{4, 5, 6},
	}
	if err := s.SaveAccount(want); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}

	got, err := s.LoadAccount()
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if got.UserID != want.UserID || got.DeviceID != want.DeviceID {
		t.Errorf("loaded %s/%s, want %s/%s", got.UserID, got.DeviceID, want.UserID, want.DeviceID)
	}
	if string(got.MasterKeyPrivate) != string(want.MasterKeyPrivate) {
		t.Error("master key seed did not survive the round trip")
	}
	if got.UserSigningKeyPrivate != nil {
		t.Error("absent user-signing seed came back non-nil")
	}
}

func testIdentity(userID identity.UserID) *identity.Identity {
	ident := &identity.Identity{
		Kind:   identity.Other,
		UserID: userID,
		MasterKey: identity.CrossSigningKey{
			UserID: userID, Usage: identity.UsageMaster, PublicKey: "master+" + string(userID),
		},
		SelfSigningKey: identity.CrossSigningKey{
			UserID: userID, Usage: identity.UsageSelfSigning, PublicKey: "ssk+" + string(userID),
		},
		PinnedMasterKey: "master+" + string(userID),
	}
	ident.SelfSigningKey.SetSignature(userID, ident.MasterKey.KeyID(), "sig")
	return ident
}

func TestIdentityRoundTrip(t *testing.T) {
	s := testStore(t)
	userID := identity.UserID("@bob:example.org")

	got, err := s.GetIdentity(userID)
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no identity, got %+v", got)
	}

	want := testIdentity(userID)
	want.UserSigningKey = &identity.CrossSigningKey{
		UserID: userID, Usage: identity.UsageUserSigning, PublicKey: "usk",
	}
	if err := s.SaveIdentity(want); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}

	got, err = s.GetIdentity(userID)
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if got.MasterKey.PublicKey != want.MasterKey.PublicKey {
		t.Errorf("master key = %q, want %q", got.MasterKey.PublicKey, want.MasterKey.PublicKey)
	}
	if got.PinnedMasterKey != want.PinnedMasterKey {
		t.Errorf("pinned key = %q, want %q", got.PinnedMasterKey, want.PinnedMasterKey)
	}
	if got.UserSigningKey == nil || got.UserSigningKey.PublicKey != "usk" {
		t.Errorf("user-signing key not restored: %+v", got.UserSigningKey)
	}
	if sig := got.SelfSigningKey.SignatureFrom(userID, want.MasterKey.KeyID()); sig != "sig" {
		t.Errorf("self-signing signature = %q, want %q", sig, "sig")
	}
}

func TestUpdateIdentity(t *testing.T) {
	s := testStore(t)
	userID := identity.UserID("@bob:example.org")

	t.Run("missing identity returns nil", func(t *testing.T) {
		ident, err := s.UpdateIdentity(userID, func(*identity.Identity) error { return nil })
		if err != nil {
			t.Fatalf("UpdateIdentity: %v", err)
		}
		if ident != nil {
			t.Errorf("expected nil for unknown user, got %+v", ident)
		}
	})

	if err := s.SaveIdentity(testIdentity(userID)); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}

	t.Run("mutation is persisted", func(t *testing.T) {
		ident, err := s.UpdateIdentity(userID, func(i *identity.Identity) error {
			i.Violation = true
			i.VerifiedMasterKey = i.MasterKey.PublicKey
			return nil
		})
		if err != nil {
			t.Fatalf("UpdateIdentity: %v", err)
		}
		if !ident.Violation {
			t.Error("returned identity missing mutation")
		}

		got, err := s.GetIdentity(userID)
		if err != nil {
			t.Fatalf("GetIdentity: %v", err)
		}
		if !got.Violation || got.VerifiedMasterKey != got.MasterKey.PublicKey {
			t.Errorf("mutation not persisted: %+v", got)
		}
	})

	t.Run("fn error rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := s.UpdateIdentity(userID, func(i *identity.Identity) error {
			i.Violation = false
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected fn error, got %v", err)
		}
		got, _ := s.GetIdentity(userID)
		if !got.Violation {
			t.Error("rolled-back mutation is visible")
		}
	})
}

func TestAllIdentities(t *testing.T) {
	s := testStore(t)
	for _, u := range []identity.UserID{"@carol:example.org", "@alice:example.org", "@bob:example.org"} {
		if err := s.SaveIdentity(testIdentity(u)); err != nil {
			t.Fatalf("SaveIdentity(%s): %v", u, err)
		}
	}

	idents, err := s.AllIdentities()
	if err != nil {
		t.Fatalf("AllIdentities: %v", err)
	}
	if len(idents) != 3 {
		t.Fatalf("got %d identities, want 3", len(idents))
	}
	if idents[0].UserID != "@alice:example.org" || idents[2].UserID != "@carol:example.org" {
		t.Errorf("identities not ordered by user ID: %s, %s, %s",
			idents[0].UserID, idents[1].UserID, idents[2].UserID)
	}
}

func TestDevices(t *testing.T) {
	s := testStore(t)
	userID := identity.UserID("@bob:example.org")

	devs := []*identity.Device{
		{UserID: userID, DeviceID: "BBB", SigningKey: "k2", DisplayName: "laptop"},
		{UserID: userID, DeviceID: "AAA", SigningKey: "k1", IsLocal: true},
	}
	devs[0].SetSignature(userID, "ed25519:ssk", "sig")
	if err := s.SaveDevices(devs); err != nil {
		t.Fatalf("SaveDevices: %v", err)
	}

	got, err := s.GetDevices(userID)
	if err != nil {
		t.Fatalf("GetDevices: %v", err)
	}
	if len(got) != 2 || got[0].DeviceID != "AAA" || got[1].DeviceID != "BBB" {
		t.Fatalf("unexpected device list: %+v", got)
	}
	if !got[0].IsLocal {
		t.Error("is_local flag lost")
	}
	if got[1].SignatureFrom(userID, "ed25519:ssk") != "sig" {
		t.Error("device signature lost")
	}

	t.Run("set verified", func(t *testing.T) {
		if err := s.SetDeviceVerified(userID, "BBB", true); err != nil {
			t.Fatalf("SetDeviceVerified: %v", err)
		}
		dev, err := s.GetDevice(userID, "BBB")
		if err != nil {
			t.Fatalf("GetDevice: %v", err)
		}
		if !dev.LocallyVerified {
			t.Error("locally_verified flag not set")
		}
	})

	t.Run("set verified on unknown device fails", func(t *testing.T) {
		if err := s.SetDeviceVerified(userID, "NOPE", true); err == nil {
			t.Error("expected error for unknown device")
		}
	})

	t.Run("unknown device returns nil", func(t *testing.T) {
		dev, err := s.GetDevice(userID, "NOPE")
		if err != nil {
			t.Fatalf("GetDevice: %v", err)
		}
		if dev != nil {
			t.Errorf("expected nil, got %+v", dev)
		}
	})
}

func TestSnapshotUsers(t *testing.T) {
	s := testStore(t)
	known := identity.UserID("@bob:example.org")

	if err := s.SaveIdentity(testIdentity(known)); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}
	if err := s.SaveDevice(&identity.Device{UserID: known, DeviceID: "AAA", SigningKey: "k"}); err != nil {
		t.Fatalf("SaveDevice: %v", err)
	}

	snap, err := s.SnapshotUsers([]identity.UserID{known, "@ghost:example.org"})
	if err != nil {
		t.Fatalf("SnapshotUsers: %v", err)
	}
	if snap.Identities[known] == nil {
		t.Error("known identity missing from snapshot")
	}
	if len(snap.Devices[known]) != 1 {
		t.Errorf("got %d devices for known user, want 1", len(snap.Devices[known]))
	}
	if snap.Identities["@ghost:example.org"] != nil {
		t.Error("unknown user has a non-nil identity entry")
	}
}
