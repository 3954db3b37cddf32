package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cfdpgo/entity/cmd/cfdpctl/cmdutil"
	"github.com/cfdpgo/entity/internal/cli/credentials"
	"github.com/cfdpgo/entity/internal/cli/output"
	"github.com/cfdpgo/entity/internal/cli/timeutil"
	"github.com/cfdpgo/entity/pkg/apiclient"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Display the liveness status of the connected cfdpd daemon.

This command checks /healthz and displays service, uptime, and
start-time information. It does not require a bearer token.

Examples:
  # Check status of the configured server
  cfdpctl status

  # Output as JSON
  cfdpctl status -o json`,
	RunE: runStatus,
}

// DaemonStatus represents a daemon's health for display.
type DaemonStatus struct {
	Server    string `json:"server" yaml:"server"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
	Service   string `json:"service,omitempty" yaml:"service,omitempty"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

func serverURL() (string, error) {
	if cmdutil.Flags.ServerURL != "" {
		return cmdutil.Flags.ServerURL, nil
	}
	store, err := credentials.NewStore()
	if err != nil {
		return "", fmt.Errorf("failed to initialize credential store: %w", err)
	}
	ctx, err := store.GetCurrentContext()
	if err != nil || ctx.ServerURL == "" {
		return "", fmt.Errorf("no server configured. Run 'cfdpctl context use' first")
	}
	return ctx.ServerURL, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	url, err := serverURL()
	if err != nil {
		return err
	}

	status := DaemonStatus{Server: url}
	health, err := apiclient.New(url).Healthz()
	if err != nil {
		status.Error = err.Error()
	} else {
		status.Healthy = true
		status.Service = health.Service
		status.StartedAt = health.StartedAt
		status.Uptime = health.Uptime
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}
	return nil
}

func printStatusTable(status DaemonStatus) {
	fmt.Println()
	fmt.Println("cfdpd Status")
	fmt.Println("============")
	fmt.Println()
	fmt.Printf("  Server:   %s\n", status.Server)
	if status.Healthy {
		fmt.Printf("  Status:   \033[32m● up\033[0m\n")
	} else {
		fmt.Printf("  Status:   \033[31m○ unreachable\033[0m\n")
	}
	if status.Service != "" {
		fmt.Printf("  Service:  %s\n", status.Service)
	}
	if status.StartedAt != "" {
		fmt.Printf("  Started:  %s\n", timeutil.FormatTime(status.StartedAt))
	}
	if status.Uptime != "" {
		fmt.Printf("  Uptime:   %s\n", status.Uptime)
	}
	if status.Error != "" {
		fmt.Printf("  Error:    %s\n", status.Error)
	}
	fmt.Println()
}
