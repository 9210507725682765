package main

import (
	"fmt"
)

type identitiesCommand struct{}

func (cmd *identitiesCommand) Execute(args []string) error {
	c := loadClient()
	defer c.Close()

	idents, err := c.Identities()
	if err != nil {
		return err
	}

	fmt.Printf("Observed identities (%d):\n", len(idents))
	for _, ident := range idents {
		var flags []string
		if ident.ExplicitlyVerified() {
			flags = append(flags, "verified")
		}
		if ident.Pinned() {
			flags = append(flags, "pinned")
		}
		if ident.Violation {
			flags = append(flags, "VIOLATION")
		}
		if ident.PreviouslyVerified {
			flags = append(flags, "previously-verified")
		}
		if len(flags) == 0 {
			flags = append(flags, "unverified")
		}

		fmt.Printf("  %s (%s)\n", ident.UserID, ident.Kind)
		fmt.Printf("    master: %s\n", ident.MasterKey.PublicKey)
		fmt.Printf("    state:  %v\n", flags)
	}
	return nil
}
