// clean.go implements "transferd clean": a manual sweep of stale sessions.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove sessions idle past the inactivity window",
	RunE:  runClean,
}

var cleanDryRun bool

func init() {
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "List stale sessions without deleting them")
}

func runClean(cmd *cobra.Command, args []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	defer app.Close()

	window := app.Config.Sessions.InactivityWindow()

	if cleanDryRun {
		infos, err := app.Orch.ListSessions()
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		now := time.Now()
		stale := 0
		for _, s := range infos {
			if now.Sub(s.UpdatedAt) <= window {
				continue
			}
			fmt.Printf("would remove %s (idle %s)\n", s.SessionID, now.Sub(s.UpdatedAt).Round(time.Second))
			stale++
		}
		fmt.Printf("%d stale session(s), window %s\n", stale, window)
		return nil
	}

	swept := app.Orch.SweepOnce(time.Now())
	fmt.Printf("Removed %d stale session(s), window %s\n", swept, window)
	return nil
}
