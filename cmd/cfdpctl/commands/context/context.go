// Package context implements context management subcommands for cfdpctl.
package context

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for context management.
var Cmd = &cobra.Command{
	Use:   "context",
	Short: "Manage server contexts",
	Long: `Manage connection contexts for multiple cfdpd servers.

Contexts save a server URL and bearer token under a name so you can
switch between daemons without passing --server/--token on every
command.

Subcommands:
  list     List all configured contexts
  use      Switch to a different context
  current  Show the current context
  rename   Rename a context
  delete   Delete a context`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(useCmd)
	Cmd.AddCommand(currentCmd)
	Cmd.AddCommand(renameCmd)
	Cmd.AddCommand(deleteCmd)
}
