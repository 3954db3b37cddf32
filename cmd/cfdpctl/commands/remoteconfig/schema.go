package remoteconfig

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cfdpgo/entity/cmd/cfdpctl/cmdutil"
	"github.com/cfdpgo/entity/internal/cli/output"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema for a remote-entity configuration",
	Long: `Fetch the JSON Schema cfdpd generates for a Remote Entity
Configuration Table entry, useful for validating a document before
submitting it with "cfdpctl config set".

Examples:
  cfdpctl config schema`,
	RunE: runSchema,
}

func init() {
	Cmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	schema, err := client.RemoteConfigSchema()
	if err != nil {
		return fmt.Errorf("failed to fetch schema: %w", err)
	}

	return output.PrintJSON(os.Stdout, schema)
}
