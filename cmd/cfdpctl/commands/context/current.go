package context

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cfdpgo/entity/internal/cli/credentials"
	"github.com/cfdpgo/entity/internal/cli/output"
)

var currentOutput string

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current context",
	Long: `Display information about the current active context.

Examples:
  cfdpctl context current
  cfdpctl context current --output json`,
	RunE: runContextCurrent,
}

func init() {
	currentCmd.Flags().StringVarP(&currentOutput, "output", "o", "table", "output format (table|json|yaml)")
}

func runContextCurrent(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	name := store.GetCurrentContextName()
	if name == "" {
		return fmt.Errorf("no current context set\n\n" +
			"Log in to a server first:\n" +
			"  cfdpctl login --server http://localhost:8080")
	}

	ctx, err := store.GetContext(name)
	if err != nil {
		return fmt.Errorf("failed to get context: %w", err)
	}

	info := Info{
		Name:      name,
		Current:   true,
		ServerURL: ctx.ServerURL,
		LoggedIn:  ctx.AccessToken != "",
	}

	format, err := output.ParseFormat(currentOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, info)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, info)
	default:
		fmt.Printf("Current context: %s\n", name)
		fmt.Printf("  Server:     %s\n", ctx.ServerURL)
		if info.LoggedIn {
			fmt.Printf("  Status:     token configured\n")
		} else {
			fmt.Printf("  Status:     no token configured\n")
		}
	}
	return nil
}
