package main

import (
	"encoding/json"
	"fmt"
	"os"

	mxtrust "github.com/mxkit/mxtrust-go"
)

type observeCommand struct {
	Args struct {
		File string `positional-arg-name:"file" required:"true" description:"Path to JSON key bundle"`
	} `positional-args:"yes"`
}

// keyBundle is the JSON input format for the observe command: a user's
// published cross-signing keys and devices, as fetched from a key query.
type keyBundle struct {
	UserID         string         `json:"user_id"`
	MasterKey      bundleKey      `json:"master_key"`
	SelfSigningKey bundleKey      `json:"self_signing_key"`
	Devices        []bundleDevice `json:"devices"`
}

type bundleKey struct {
	PublicKey  string                               `json:"public_key"`
	Signatures map[mxtrust.UserID]map[string]string `json:"signatures"`
}

type bundleDevice struct {
	DeviceID    string                               `json:"device_id"`
	SigningKey  string                               `json:"signing_key"`
	IdentityKey string                               `json:"identity_key"`
	DisplayName string                               `json:"display_name"`
	Signatures  map[mxtrust.UserID]map[string]string `json:"signatures"`
}

func (cmd *observeCommand) Execute(args []string) error {
	data, err := os.ReadFile(cmd.Args.File)
	if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}
	var bundle keyBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("parse bundle: %w", err)
	}

	c := loadClient()
	defer c.Close()

	userID := mxtrust.UserID(bundle.UserID)
	kind := mxtrust.Other
	if userID == c.UserID() {
		kind = mxtrust.Own
	}

	res, err := c.ObserveIdentity(mxtrust.Observation{
		UserID: userID,
		Kind:   kind,
		MasterKey: mxtrust.CrossSigningKey{
			UserID:     userID,
			Usage:      "master",
			PublicKey:  bundle.MasterKey.PublicKey,
			Signatures: bundle.MasterKey.Signatures,
		},
		SelfSigningKey: mxtrust.CrossSigningKey{
			UserID:     userID,
			Usage:      "self_signing",
			PublicKey:  bundle.SelfSigningKey.PublicKey,
			Signatures: bundle.SelfSigningKey.Signatures,
		},
	})
	if err != nil {
		return err
	}
	fmt.Printf("Observed identity of %s: %s\n", userID, res)

	if len(bundle.Devices) > 0 {
		devices := make([]*mxtrust.Device, len(bundle.Devices))
		for i, d := range bundle.Devices {
			devices[i] = &mxtrust.Device{
				UserID:      userID,
				DeviceID:    mxtrust.DeviceID(d.DeviceID),
				SigningKey:  d.SigningKey,
				IdentityKey: d.IdentityKey,
				DisplayName: d.DisplayName,
				Signatures:  d.Signatures,
			}
		}
		if err := c.ObserveDevices(userID, devices); err != nil {
			return err
		}
		fmt.Printf("Observed %d devices\n", len(devices))
	}

	if res == mxtrust.ChangedFromPinned {
		fmt.Println("WARNING: identity changed from the pinned key.")
		fmt.Println("Run 'mxtrust pin' to accept the new key, or 'mxtrust request' to verify.")
	}
	return nil
}
