// Command mxtrust is a CLI for the identity trust engine.
//
// Usage:
//
//	mxtrust init <user-id> <device-id>   Bootstrap a fresh account
//	mxtrust identities                   List observed identities
//	mxtrust shield <user-id>             Show the warning shield for a user
package main

import (
	"fmt"
	"log"
	"os"

	flags "github.com/jessevdk/go-flags"

	mxtrust "github.com/mxkit/mxtrust-go"
)

type globalOpts struct {
	DB      string `long:"db" description:"Path to database file"`
	Verbose bool   `short:"v" long:"verbose" description:"Enable verbose logging"`

	Init       initCommand       `command:"init" description:"Bootstrap a fresh account with cross-signing keys"`
	Identities identitiesCommand `command:"identities" description:"List observed identities and their trust state"`
	Devices    devicesCommand    `command:"devices" description:"List known devices of a user"`
	Observe    observeCommand    `command:"observe" description:"Record a published identity from a JSON key bundle"`
	Verify     verifyCommand     `command:"verify" description:"Mark a user's identity as verified"`
	Request    requestCommand    `command:"request" description:"Start an interactive verification flow"`
	Pin        pinCommand        `command:"pin" description:"Accept a user's current master key as the new pin"`
	Withdraw   withdrawCommand   `command:"withdraw" description:"Withdraw the verification requirement for a user"`
	Shield     shieldCommand     `command:"shield" description:"Show the warning shield for a user or device"`
	Recipients recipientsCommand `command:"recipients" description:"Compute key-sharing recipients for a set of users"`
}

var opts globalOpts

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = false

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func clientOpts() []mxtrust.Option {
	var copts []mxtrust.Option
	if opts.DB != "" {
		copts = append(copts, mxtrust.WithDBPath(opts.DB))
	}
	if opts.Verbose {
		copts = append(copts, mxtrust.WithLogger(log.New(os.Stderr, "", log.LstdFlags)))
	}
	return copts
}

// loadClient opens the store and loads the existing account, exiting with a
// message if none exists.
func loadClient() *mxtrust.Client {
	c := mxtrust.NewClient(clientOpts()...)
	if err := c.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nRun 'mxtrust init' first.\n", err)
		os.Exit(1)
	}
	return c
}
