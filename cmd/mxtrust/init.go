package main

import (
	"fmt"

	mxtrust "github.com/mxkit/mxtrust-go"
)

type initCommand struct {
	Args struct {
		UserID   string `positional-arg-name:"user-id" required:"true" description:"Matrix user ID (e.g. @alice:example.org)"`
		DeviceID string `positional-arg-name:"device-id" required:"true" description:"Device ID for this client"`
	} `positional-args:"yes"`
}

func (cmd *initCommand) Execute(args []string) error {
	c := mxtrust.NewClient(clientOpts()...)
	defer c.Close()

	if err := c.Init(mxtrust.UserID(cmd.Args.UserID), mxtrust.DeviceID(cmd.Args.DeviceID)); err != nil {
		return err
	}

	ident, err := c.Identity(c.UserID())
	if err != nil {
		return err
	}

	fmt.Printf("Account created for %s (device %s)\n", c.UserID(), c.DeviceID())
	fmt.Printf("  Master key:       %s\n", ident.MasterKey.PublicKey)
	fmt.Printf("  Self-signing key: %s\n", ident.SelfSigningKey.PublicKey)
	if ident.UserSigningKey != nil {
		fmt.Printf("  User-signing key: %s\n", ident.UserSigningKey.PublicKey)
	}
	return nil
}
