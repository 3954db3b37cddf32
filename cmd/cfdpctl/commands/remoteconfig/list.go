package remoteconfig

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
	Short: "List every configured remote entity",
	Long: `List every entry in the Remote Entity Configuration Table.

Examples:
  cfdpctl config list
  cfdpctl config list -o json`,
	RunE: runList,
}

// EntryList is a list of apiclient.RemoteConfigEntry for table rendering.
type EntryList []apiclient.RemoteConfigEntry

// Headers implements output.TableRenderer.
func (l EntryList) Headers() []string {
	return []string{"ENTITY", "MODE", "CLOSURE", "CHECKSUM", "ACK TIMEOUT", "NAK TIMEOUT", "CHECK LIMIT"}
}

// Rows implements output.TableRenderer.
func (l EntryList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		rows = append(rows, []string{
			strconv.FormatUint(e.RemoteEntity, 10),
			e.DefaultTransmissionMode,
			cmdutil.BoolToYesNo(e.DefaultClosureRequested),
			strconv.Itoa(e.DefaultChecksumType),
			fmt.Sprintf("%dms", e.ACKTimeoutMS),
			fmt.Sprintf("%dms", e.NAKTimeoutMS),
			strconv.Itoa(e.CheckLimit),
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	entries, err := client.ListRemoteConfigs()
	if err != nil {
		return fmt.Errorf("failed to list remote configurations: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, entries, len(entries) == 0, "No remote entity configurations found.", EntryList(entries))
}
