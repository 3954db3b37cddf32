package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cfdpgo/entity/cmd/cfdpctl/cmdutil"
	"github.com/cfdpgo/entity/pkg/apiclient"
)

var putDestFilename string

var putCmd = &cobra.Command{
	Use:   "put <source-filename> --to <entity-id>",
	Short: "Submit a Put.request",
	Long: `Submit a Put.request, starting a new outgoing file transfer to a
remote CFDP entity. The file must already be reachable through the
daemon's configured filestore backend.

Examples:
  # Send report.bin to remote entity 7
  cfdpctl put report.bin --to 7

  # Send it under a different destination filename
  cfdpctl put report.bin --to 7 --dest-filename incoming/report.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runPut,
}

var putDestinationEntity uint64

func init() {
	putCmd.Flags().Uint64Var(&putDestinationEntity, "to", 0, "destination entity ID (required)")
	putCmd.Flags().StringVar(&putDestFilename, "dest-filename", "", "destination filename (defaults to the source filename)")
	_ = putCmd.MarkFlagRequired("to")
}

func runPut(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	status, err := client.SubmitTransaction(apiclient.PutRequest{
		DestinationEntity: putDestinationEntity,
		SourceFilename:    args[0],
		DestFilename:      putDestFilename,
	})
	if err != nil {
		return fmt.Errorf("failed to submit Put.request: %w", err)
	}

	return cmdutil.PrintResourceWithSuccess(os.Stdout, status,
		fmt.Sprintf("Put.request submitted: transaction %d/%d", status.SourceEntity, status.SequenceNum))
}
