// Package transaction implements transaction visibility and control
// subcommands for cfdpctl.
package transaction

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent "transaction" command.
var Cmd = &cobra.Command{
	Use:     "transaction",
	Aliases: []string{"tx"},
	Short:   "Inspect and control in-flight transactions",
	Long: `Inspect and control transactions tracked by a running cfdpd.

Subcommands:
  list    List every in-flight transaction
  show    Show one transaction's status snapshot
  cancel  Request cancellation of a transaction (admin)`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(cancelCmd)
}
