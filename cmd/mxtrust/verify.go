package main

import (
	"encoding/json"
	"fmt"

	mxtrust "github.com/mxkit/mxtrust-go"
)

type verifyCommand struct {
	Args struct {
		UserID string `positional-arg-name:"user-id" required:"true" description:"User to verify"`
	} `positional-args:"yes"`
}

func (cmd *verifyCommand) Execute(args []string) error {
	c := loadClient()
	defer c.Close()

	userID := mxtrust.UserID(cmd.Args.UserID)
	upload, err := c.VerifyIdentity(userID)
	if err != nil {
		return err
	}

	fmt.Printf("Identity of %s verified.\n", userID)
	fmt.Println("Publish these signatures to the server:")
	data, err := json.MarshalIndent(upload.Keys, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

type pinCommand struct {
	Args struct {
		UserID string `positional-arg-name:"user-id" required:"true" description:"User whose current master key to pin"`
	} `positional-args:"yes"`
}

func (cmd *pinCommand) Execute(args []string) error {
	c := loadClient()
	defer c.Close()

	userID := mxtrust.UserID(cmd.Args.UserID)
	if err := c.PinCurrentMasterKey(userID); err != nil {
		return err
	}
	ident, err := c.Identity(userID)
	if err != nil {
		return err
	}
	fmt.Printf("Pinned %s to %s\n", userID, ident.PinnedMasterKey)
	return nil
}

type withdrawCommand struct {
	Args struct {
		UserID string `positional-arg-name:"user-id" required:"true" description:"User whose verification to withdraw"`
	} `positional-args:"yes"`
}

func (cmd *withdrawCommand) Execute(args []string) error {
	c := loadClient()
	defer c.Close()

	userID := mxtrust.UserID(cmd.Args.UserID)
	if err := c.WithdrawVerification(userID); err != nil {
		return err
	}
	fmt.Printf("Verification requirement withdrawn for %s\n", userID)
	return nil
}
