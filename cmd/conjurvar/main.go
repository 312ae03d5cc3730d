package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"

	"github.com/systmms/conjurvar/cmd/conjurvar/commands"
)

func main() {
	memguard.CatchInterrupt()
	defer memguard.Purge()

	if err := commands.NewRootCommand(&commands.Globals{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		memguard.SafeExit(1)
	}
}
