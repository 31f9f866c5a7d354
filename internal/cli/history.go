// history.go implements "transferd history" listing recorded transfer outcomes.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent transfer outcomes",
	RunE:  runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of entries to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Ledger == nil {
		return fmt.Errorf("ledger is disabled; set ledger.path in config.yaml")
	}

	entries, err := app.Ledger.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No transfers recorded.")
		return nil
	}

	fmt.Println("Transfer History")
	fmt.Println()
	for _, e := range entries {
		outcome := "failed"
		if e.Success {
			outcome = "ok"
		}
		line := fmt.Sprintf("  %s  %-6s  %-10s  %8.2f", e.CreatedAt.Local().Format("2006-01-02 15:04"), outcome, e.BankID, e.Amount)
		if e.TransactionID != "" {
			line += "  txn " + e.TransactionID
		}
		if !e.Success && e.Message != "" {
			line += "  " + e.Message
		}
		fmt.Println(line)
	}
	fmt.Println()
	fmt.Printf("%d entries shown\n", len(entries))

	return nil
}
