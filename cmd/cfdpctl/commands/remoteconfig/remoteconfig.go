// Package remoteconfig implements Remote Entity Configuration Table
// management subcommands for cfdpctl.
package remoteconfig

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent "config" command.
var Cmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"remote-config"},
	Short:   "Manage remote-entity configuration",
	Long: `Manage per-remote-entity CFDP configuration on a running cfdpd:
default transmission mode, timers, limits, and checksum type.

Subcommands:
  list    List every configured remote entity
  show    Show one remote entity's configuration
  set     Create or replace a remote entity's configuration (admin)
  delete  Remove a remote entity's configuration (admin)`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(setCmd)
	Cmd.AddCommand(deleteCmd)
}
