package main

import (
	"fmt"

	mxtrust "github.com/mxkit/mxtrust-go"
)

type devicesCommand struct {
	Args struct {
		UserID string `positional-arg-name:"user-id" required:"true" description:"User whose devices to list"`
	} `positional-args:"yes"`
}

func (cmd *devicesCommand) Execute(args []string) error {
	c := loadClient()
	defer c.Close()

	userID := mxtrust.UserID(cmd.Args.UserID)
	devices, err := c.Devices(userID)
	if err != nil {
		return err
	}

	fmt.Printf("Devices of %s (%d):\n", userID, len(devices))
	for _, d := range devices {
		trusted, err := c.IsDeviceTrusted(userID, d.DeviceID)
		if err != nil {
			return err
		}
		status := "untrusted"
		if trusted {
			status = "trusted"
		}
		if d.IsLocal {
			status += ", this device"
		}
		name := d.DisplayName
		if name == "" {
			name = "-"
		}
		fmt.Printf("  %s: key=%s name=%q (%s)\n", d.DeviceID, d.SigningKey, name, status)
	}
	return nil
}
