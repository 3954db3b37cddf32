package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/cfdpgo/entity/cmd/cfdpctl/cmdutil"
	"github.com/cfdpgo/entity/internal/cli/credentials"
	"github.com/cfdpgo/entity/internal/cli/prompt"
	"github.com/cfdpgo/entity/pkg/apiclient"
)

var (
	loginServer string
	loginToken  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save a server URL and bearer token",
	Long: `Save a cfdpd server URL and bearer token as the current context.

cfdpd mints operator and admin tokens out of band (there is no
username/password exchange): an administrator issues a token with
auth.Service.IssueToken and hands it to the operator running this
command.

Examples:
  # Save a new context and verify it against the server
  cfdpctl login --server http://localhost:8080 --token eyJhbGciOi...`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginServer, "server", "", "cfdpd control-plane URL (required on first login)")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "bearer token")
}

func runLogin(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	serverURLStr := loginServer
	if serverURLStr == "" {
		ctx, err := store.GetCurrentContext()
		if err != nil || ctx == nil || ctx.ServerURL == "" {
			return fmt.Errorf("no server URL specified and no saved context found\n\n" +
				"Specify a server URL:\n" +
				"  cfdpctl login --server http://localhost:8080")
		}
		serverURLStr = ctx.ServerURL
	}

	parsedURL, err := url.Parse(serverURLStr)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if parsedURL.Scheme == "" {
		parsedURL.Scheme = "http"
		serverURLStr = parsedURL.String()
	}

	token := loginToken
	if token == "" {
		token, err = prompt.Password("Bearer token")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	fmt.Printf("Verifying %s...\n", serverURLStr)
	if _, err := apiclient.New(serverURLStr).WithToken(token).Healthz(); err != nil {
		return fmt.Errorf("could not reach %s: %w", serverURLStr, err)
	}

	contextName := store.GetCurrentContextName()
	if contextName == "" {
		contextName = credentials.GenerateContextName(serverURLStr)
	}

	if err := store.SetContext(contextName, &credentials.Context{
		ServerURL:   serverURLStr,
		AccessToken: token,
	}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	if err := store.UseContext(contextName); err != nil {
		return fmt.Errorf("failed to activate context: %w", err)
	}

	fmt.Printf("Saved context '%s' for %s\n", contextName, serverURLStr)
	return nil
}
