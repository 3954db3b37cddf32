package transaction

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cfdpgo/entity/cmd/cfdpctl/cmdutil"
	"github.com/cfdpgo/entity/internal/cli/prompt"
)

var cancelForce bool

var cancelCmd = &cobra.Command{
	Use:   "cancel <source-entity> <seq>",
	Short: "Request cancellation of a transaction",
	Long: `Request a Notice of Cancellation on a transaction, identified by its
source entity ID and sequence number. Requires an admin token.

Examples:
  cfdpctl transaction cancel 1 42
  cfdpctl transaction cancel 1 42 --force`,
	Args: cobra.ExactArgs(2),
	RunE: runCancel,
}

func init() {
	cancelCmd.Flags().BoolVarP(&cancelForce, "force", "f", false, "skip confirmation")
}

func parseTransactionID(sourceArg, seqArg string) (uint64, uint64, error) {
	sourceEntity, err := strconv.ParseUint(sourceArg, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("source-entity must be a non-negative integer: %w", err)
	}
	seq, err := strconv.ParseUint(seqArg, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("seq must be a non-negative integer: %w", err)
	}
	return sourceEntity, seq, nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	sourceEntity, seq, err := parseTransactionID(args[0], args[1])
	if err != nil {
		return err
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	label := fmt.Sprintf("%d/%d", sourceEntity, seq)
	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Request cancellation of transaction %s?", label), cancelForce)
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := client.CancelTransaction(sourceEntity, seq); err != nil {
		return fmt.Errorf("failed to cancel transaction: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Cancellation requested for transaction %s", label))
	return nil
}
