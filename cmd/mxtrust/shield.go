package main

import (
	"fmt"

	mxtrust "github.com/mxkit/mxtrust-go"
)

type shieldCommand struct {
	Args struct {
		UserID   string `positional-arg-name:"user-id" required:"true" description:"User to check"`
		DeviceID string `positional-arg-name:"device-id" description:"Device to check (optional)"`
	} `positional-args:"yes"`
}

func (cmd *shieldCommand) Execute(args []string) error {
	c := loadClient()
	defer c.Close()

	userID := mxtrust.UserID(cmd.Args.UserID)

	var shield mxtrust.ShieldState
	if cmd.Args.DeviceID != "" {
		shield = c.ShieldForDevice(userID, mxtrust.DeviceID(cmd.Args.DeviceID))
	} else {
		shield = c.ShieldForIdentity(userID)
	}

	if shield.Color == mxtrust.ShieldNone {
		fmt.Println("Shield: none")
		return nil
	}
	fmt.Printf("Shield: %s\n", shield.Color)
	fmt.Printf("  %s\n", shield.Message)
	return nil
}
