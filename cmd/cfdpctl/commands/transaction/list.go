package transaction

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cfdpgo/entity/cmd/cfdpctl/cmdutil"
	"github.com/cfdpgo/entity/pkg/apiclient"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every in-flight transaction",
	Long: `List a status snapshot for every transaction currently tracked by
the daemon, source and destination alike.

Examples:
  cfdpctl transaction list
  cfdpctl tx list -o json`,
	RunE: runList,
}

// StatusList is a list of apiclient.TransactionStatus for table rendering.
type StatusList []apiclient.TransactionStatus

// Headers implements output.TableRenderer.
func (l StatusList) Headers() []string {
	return []string{"SOURCE", "SEQ", "ROLE", "STATE", "PROGRESS", "FILE SIZE"}
}

// Rows implements output.TableRenderer.
func (l StatusList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		rows = append(rows, []string{
			strconv.FormatUint(s.SourceEntity, 10),
			strconv.FormatUint(s.SequenceNum, 10),
			s.Role,
			s.State,
			strconv.FormatUint(s.Progress, 10),
			formatFileSize(s),
		})
	}
	return rows
}

func formatFileSize(s apiclient.TransactionStatus) string {
	if !s.FileSizeKnown {
		return "unknown"
	}
	return strconv.FormatUint(s.FileSize, 10)
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	statuses, err := client.ListTransactions()
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, statuses, len(statuses) == 0, "No in-flight transactions.", StatusList(statuses))
}
