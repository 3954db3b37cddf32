// Package commands implements the cfdpctl subcommand tree.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cfdpgo/entity/cmd/cfdpctl/cmdutil"
	ctxcmd "github.com/cfdpgo/entity/cmd/cfdpctl/commands/context"
	rcfgcmd "github.com/cfdpgo/entity/cmd/cfdpctl/commands/remoteconfig"
	txcmd "github.com/cfdpgo/entity/cmd/cfdpctl/commands/transaction"
)

// Version, Commit, and Date are populated from cmd/cfdpctl/main.go's
// build-time ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "cfdpctl",
	Short: "cfdpctl - CFDP entity control client",
	Long: `cfdpctl is a command-line client for a running cfdpd CFDP entity daemon.

It talks to cfdpd's control-plane REST API to submit Put.requests,
inspect and cancel in-flight transactions, and manage the Remote
Entity Configuration Table.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.ServerURL, _ = cmd.Flags().GetString("server")
		cmdutil.Flags.Token, _ = cmd.Flags().GetString("token")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Flags.Verbose, _ = cmd.Flags().GetBool("verbose")
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root cobra command, for embedding in main.go.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "cfdpd control-plane URL (overrides the stored context)")
	rootCmd.PersistentFlags().String("token", "", "bearer token (overrides the stored context)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(ctxcmd.Cmd)
	rootCmd.AddCommand(rcfgcmd.Cmd)
	rootCmd.AddCommand(txcmd.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints a formatted error to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints a formatted error to stderr and exits with status 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
