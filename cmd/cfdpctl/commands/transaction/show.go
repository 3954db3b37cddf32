package transaction

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cfdpgo/entity/cmd/cfdpctl/cmdutil"
)

var showCmd = &cobra.Command{
	Use:   "show <source-entity> <seq>",
	Short: "Show one transaction's status snapshot",
	Long: `Show the status snapshot for a single transaction, identified by
its source entity ID and sequence number.

Examples:
  cfdpctl transaction show 1 42`,
	Args: cobra.ExactArgs(2),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	sourceEntity, seq, err := parseTransactionID(args[0], args[1])
	if err != nil {
		return err
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	status, err := client.GetTransaction(sourceEntity, seq)
	if err != nil {
		return fmt.Errorf("failed to fetch transaction status: %w", err)
	}

	return cmdutil.PrintResource(os.Stdout, status, StatusList{*status})
}
