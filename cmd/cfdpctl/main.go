// Command cfdpctl is the operator CLI for cfdpd: it talks to the
// control-plane API to submit transfers, inspect in-flight
// transactions, and manage the Remote Entity Configuration Table.
package main

import (
	"fmt"
	"os"

	"github.com/cfdpgo/entity/cmd/cfdpctl/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
