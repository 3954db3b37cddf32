package remoteconfig

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cfdpgo/entity/cmd/cfdpctl/cmdutil"
)

var showCmd = &cobra.Command{
	Use:   "show <entity-id>",
	Short: "Show one remote entity's configuration",
	Long: `Show the full configuration for one remote entity.

Examples:
  cfdpctl config show 7
  cfdpctl config show 7 -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	entityID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("entity-id must be a non-negative integer: %w", err)
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	entry, err := client.GetRemoteConfig(entityID)
	if err != nil {
		return fmt.Errorf("failed to fetch remote configuration: %w", err)
	}

	return cmdutil.PrintResource(os.Stdout, entry, EntryList{*entry})
}
