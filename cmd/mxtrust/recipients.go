package main

import (
	"fmt"

	mxtrust "github.com/mxkit/mxtrust-go"
)

type recipientsCommand struct {
	Strategy string `long:"strategy" default:"all" choice:"all" choice:"trusted" choice:"identity" description:"Collect strategy"`

	Args struct {
		UserIDs []string `positional-arg-name:"user-id" required:"1" description:"Room members to collect for"`
	} `positional-args:"yes"`
}

func (cmd *recipientsCommand) Execute(args []string) error {
	c := loadClient()
	defer c.Close()

	var strategy mxtrust.CollectStrategy
	switch cmd.Strategy {
	case "trusted":
		strategy = mxtrust.DeviceBasedOnlyTrusted
	case "identity":
		strategy = mxtrust.IdentityBased
	default:
		strategy = mxtrust.DeviceBasedAllDevices
	}

	members := make([]mxtrust.UserID, len(cmd.Args.UserIDs))
	for i, u := range cmd.Args.UserIDs {
		members[i] = mxtrust.UserID(u)
	}

	recipients, err := c.CollectRecipients(members, strategy)
	if err != nil {
		return err
	}

	fmt.Printf("Recipients under %s (%d):\n", strategy, len(recipients))
	for _, dev := range recipients {
		fmt.Printf("  %s/%s key=%s\n", dev.UserID, dev.DeviceID, dev.SigningKey)
	}
	return nil
}
