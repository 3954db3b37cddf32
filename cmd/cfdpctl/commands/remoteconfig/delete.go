package remoteconfig

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cfdpgo/entity/cmd/cfdpctl/cmdutil"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <entity-id>",
	Short: "Remove a remote entity's configuration",
	Long: `Remove the Remote Entity Configuration Table entry for one remote
entity. Requires an admin token.

Examples:
  cfdpctl config delete 7
  cfdpctl config delete 7 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	entityID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("entity-id must be a non-negative integer: %w", err)
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	return cmdutil.RunDeleteWithConfirmation("Remote entity config", args[0], deleteForce, func() error {
		return client.DeleteRemoteConfig(entityID)
	})
}
