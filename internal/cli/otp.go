package cli

import (
	"github.com/spf13/cobra"
)

var otpCmd = &cobra.Command{
	Use:   "otp <session-id> <code>",
	Short: "Submit an OTP code for a pending session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp()
		if err != nil {
			return err
		}
		defer app.Close()

		return printResult(app.Orch.SubmitOTP(cmd.Context(), args[0], args[1]))
	},
}
