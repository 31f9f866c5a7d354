// app.go wires the shared collaborators every command needs.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redpay/transferd/internal/config"
	"github.com/redpay/transferd/internal/ledger"
	"github.com/redpay/transferd/internal/log"
	"github.com/redpay/transferd/internal/orchestrator"
	"github.com/redpay/transferd/internal/session"
	"github.com/redpay/transferd/internal/worker"
)

// App bundles the orchestrator and its collaborators for one data directory.
type App struct {
	DataDir string
	Config  *config.Config
	Store   *session.Store
	Logger  *log.Logger
	Ledger  *ledger.Ledger
	Orch    *orchestrator.Orchestrator
}

// resolveDataDir returns the --data-dir flag value, defaulting to
// ~/.transferd.
func resolveDataDir() (string, error) {
	if dataDirFlag != "" {
		return dataDirFlag, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".transferd"), nil
}

// loadApp builds an App from the data directory. A missing config file
// falls back to defaults so one-shot commands work out of the box.
func loadApp() (*App, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}

	cfg, err := config.ReadConfig(dataDir)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	logger, err := log.NewLogger(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}

	store, err := session.NewStore(config.ResolvePath(dataDir, cfg.Sessions.Dir))
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	app := &App{
		DataDir: dataDir,
		Config:  cfg,
		Store:   store,
		Logger:  logger,
	}

	if cfg.Ledger.Path != "" {
		led, err := ledger.Open(config.ResolvePath(dataDir, cfg.Ledger.Path))
		if err != nil {
			return nil, fmt.Errorf("opening ledger: %w", err)
		}
		app.Ledger = led
	}

	app.Orch = orchestrator.New(orchestrator.Deps{
		Store:            store,
		Launcher:         worker.NewLauncher(cfg.Worker),
		Logger:           logger,
		Ledger:           app.Ledger,
		InactivityWindow: cfg.Sessions.InactivityWindow(),
	})

	return app, nil
}

// Close releases resources held by the App.
func (a *App) Close() {
	if a.Ledger != nil {
		_ = a.Ledger.Close()
	}
}

// printResult writes a result as indented JSON to stdout.
func printResult(res *orchestrator.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
