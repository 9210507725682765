package main

import (
	"fmt"
	"os"

	qrterminal "github.com/mdp/qrterminal/v3"

	mxtrust "github.com/mxkit/mxtrust-go"
)

type requestCommand struct {
	Room  string `long:"room" description:"Room ID carrying the request event"`
	Event string `long:"event" description:"Event ID of the request event"`
	QR    bool   `long:"qr" description:"Display a QR code for the peer to scan"`

	Args struct {
		UserID   string `positional-arg-name:"user-id" required:"true" description:"User to verify"`
		DeviceID string `positional-arg-name:"device-id" description:"Device to verify (optional)"`
	} `positional-args:"yes"`
}

func (cmd *requestCommand) Execute(args []string) error {
	c := loadClient()
	defer c.Close()

	sess, content, superseded, err := c.RequestVerification(mxtrust.VerificationRequest{
		OtherUser:   mxtrust.UserID(cmd.Args.UserID),
		OtherDevice: mxtrust.DeviceID(cmd.Args.DeviceID),
		RoomID:      cmd.Room,
		EventID:     cmd.Event,
	})
	if err != nil {
		return err
	}
	for _, effect := range superseded {
		if cancel, ok := effect.(mxtrust.SendCancel); ok {
			fmt.Printf("Cancelled previous flow %s (%s)\n", cancel.FlowID, cancel.Reason)
		}
	}

	fmt.Printf("Verification flow %s started (state %s)\n", sess.FlowID, sess.State)
	fmt.Printf("  from device: %s\n", content.FromDevice)
	fmt.Printf("  methods:     %v\n", content.Methods)

	if !cmd.QR {
		return nil
	}

	ownIdent, err := c.Identity(c.UserID())
	if err != nil {
		return err
	}
	if sess.PeerMasterKey == "" {
		return fmt.Errorf("no observed identity for %s, cannot build QR code", sess.OtherUser)
	}

	payload, err := mxtrust.NewQRPayload(
		mxtrust.QRModeCrossSigning, sess.FlowID,
		ownIdent.MasterKey.PublicKey, sess.PeerMasterKey,
	)
	if err != nil {
		return err
	}
	data, err := payload.Encode()
	if err != nil {
		return err
	}

	fmt.Println("\nAsk the peer to scan this code:")
	qrterminal.GenerateWithConfig(string(data), qrterminal.Config{
		Level:     qrterminal.L,
		Writer:    os.Stdout,
		BlackChar: qrterminal.BLACK,
		WhiteChar: qrterminal.WHITE,
	})
	return nil
}
