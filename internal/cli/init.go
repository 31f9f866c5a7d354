// init.go implements "transferd init", writing a default config.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/redpay/transferd/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directory with a default config",
	RunE:  runInit,
}

var forceInitFlag bool

func init() {
	initCmd.Flags().BoolVar(&forceInitFlag, "force", false, "Overwrite an existing config")
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil && !forceInitFlag {
		return fmt.Errorf("%s already exists; use --force to overwrite", configPath)
	}

	if err := config.WriteConfig(dataDir, config.DefaultConfig()); err != nil {
		return err
	}

	fmt.Printf("Initialized %s\n", dataDir)
	fmt.Println("Edit config.yaml to point worker.command and worker.script at your automation.")
	return nil
}
