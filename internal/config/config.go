// Package config handles reading and writing the transferd config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for config.yaml inside the data directory.
type Config struct {
	Version      int            `yaml:"version"`
	ReceiverIBAN string         `yaml:"receiver_iban"`
	Worker       WorkerConfig   `yaml:"worker"`
	Sessions     SessionsConfig `yaml:"sessions"`
	Server       ServerConfig   `yaml:"server"`
	Ledger       LedgerConfig   `yaml:"ledger"`
}

// WorkerConfig controls how the automation worker process is invoked.
type WorkerConfig struct {
	Command        string `yaml:"command"`         // interpreter or binary, e.g. "python3"
	Script         string `yaml:"script"`          // automation script path passed as first arg
	TimeoutSeconds int    `yaml:"timeout_seconds"` // hard cap on an unattended run
}

// SessionsConfig controls OTP session persistence and expiry.
type SessionsConfig struct {
	Dir                  string `yaml:"dir"` // relative paths resolve against the data dir
	InactivitySeconds    int    `yaml:"inactivity_seconds"`
	SweepIntervalSeconds int    `yaml:"sweep_interval_seconds"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LedgerConfig controls the transfer history database.
type LedgerConfig struct {
	Path string `yaml:"path"` // relative paths resolve against the data dir
}

const configFile = "config.yaml"

// Timeout returns the worker hard timeout as a duration.
func (w WorkerConfig) Timeout() time.Duration {
	if w.TimeoutSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// InactivityWindow returns how long an awaiting_otp session may sit idle.
func (s SessionsConfig) InactivityWindow() time.Duration {
	if s.InactivitySeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.InactivitySeconds) * time.Second
}

// SweepInterval returns how often the sweeper runs.
func (s SessionsConfig) SweepInterval() time.Duration {
	if s.SweepIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

// ReadConfig reads config.yaml from the given data directory.
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// WriteConfig writes cfg to config.yaml in the given data directory.
// Creates the directory if it does not exist.
func WriteConfig(dataDir string, cfg *Config) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dataDir, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// ResolvePath resolves p against the data directory unless p is absolute.
func ResolvePath(dataDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dataDir, p)
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Worker: WorkerConfig{
			Command:        "python3",
			Script:         "automation/bank_scraper.py",
			TimeoutSeconds: 600,
		},
		Sessions: SessionsConfig{
			Dir:                  "sessions",
			InactivitySeconds:    300,
			SweepIntervalSeconds: 60,
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:3001",
		},
		Ledger: LedgerConfig{
			Path: "transfers.db",
		},
	}
}
