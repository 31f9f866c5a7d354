// Package cli defines Cobra command definitions for the transferd CLI.
// This file contains the root command and global flags.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dataDirFlag string
	version     = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "transferd",
	Short: "Bank transfer automation session orchestrator",
	Long: `Transferd coordinates credential-driven transfer automations that
pause mid-run for an out-of-band OTP. It launches a worker process per
attempt, persists the session across the OTP gap, correlates the later
code submission with the paused job, and reports one structured result.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default ~/.transferd)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(otpCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(dashboardCmd)
}
