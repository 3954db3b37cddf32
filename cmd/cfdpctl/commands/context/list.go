package context

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cfdpgo/entity/cmd/cfdpctl/cmdutil"
	"github.com/cfdpgo/entity/internal/cli/credentials"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured contexts",
	Long: `List all configured server contexts.

The current context is marked with an asterisk (*).

Examples:
  cfdpctl context list
  cfdpctl context list -o json`,
	RunE: runContextList,
}

// Info represents one context for output.
type Info struct {
	Name      string `json:"name" yaml:"name"`
	Current   bool   `json:"current" yaml:"current"`
	ServerURL string `json:"server_url" yaml:"server_url"`
	LoggedIn  bool   `json:"logged_in" yaml:"logged_in"`
}

// List is a list of Info for table rendering.
type List []Info

// Headers implements output.TableRenderer.
func (l List) Headers() []string {
	return []string{"", "NAME", "SERVER", "LOGGED IN"}
}

// Rows implements output.TableRenderer.
func (l List) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, c := range l {
		current := ""
		if c.Current {
			current = "*"
		}
		rows = append(rows, []string{current, c.Name, c.ServerURL, cmdutil.BoolToYesNo(c.LoggedIn)})
	}
	return rows
}

func runContextList(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	names := store.ListContexts()
	current := store.GetCurrentContextName()

	contexts := make(List, 0, len(names))
	for _, name := range names {
		ctx, err := store.GetContext(name)
		if err != nil {
			continue
		}
		contexts = append(contexts, Info{
			Name:      name,
			Current:   name == current,
			ServerURL: ctx.ServerURL,
			LoggedIn:  ctx.AccessToken != "",
		})
	}

	return cmdutil.PrintOutput(os.Stdout, contexts, len(contexts) == 0,
		"No contexts configured. Use 'cfdpctl login --server <url>' to create one.", contexts)
}
