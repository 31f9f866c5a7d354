// sessions.go implements "transferd sessions" listing pending OTP sessions.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List pending OTP sessions",
	RunE:  runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	defer app.Close()

	infos, err := app.Orch.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(infos) == 0 {
		fmt.Println("No pending sessions.")
		return nil
	}

	window := app.Config.Sessions.InactivityWindow()
	now := time.Now()

	fmt.Println("Pending Sessions")
	fmt.Println()
	for _, s := range infos {
		age := now.Sub(s.UpdatedAt).Round(time.Second)
		line := fmt.Sprintf("  %-38s  %-14s  %-10s  %8.2f  age %s",
			s.SessionID, s.Status, s.BankID, s.Amount, age)
		if age > window {
			line += "  [stale]"
		}
		fmt.Println(line)
	}
	fmt.Println()
	fmt.Printf("%d session(s); inactivity window %s\n", len(infos), window)

	return nil
}
