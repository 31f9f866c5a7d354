package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redpay/transferd/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Watch pending OTP sessions live",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !tui.IsTTY() {
			return fmt.Errorf("dashboard requires a terminal; use \"transferd sessions\" instead")
		}

		app, err := loadApp()
		if err != nil {
			return err
		}
		defer app.Close()

		return tui.Run(app.Orch.ListSessions, app.Config.Sessions.InactivityWindow())
	},
}
