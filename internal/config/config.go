// Package config loads client and server configuration.
//
// Settings are resolved in the usual precedence order: built-in
// defaults, then an optional config.yaml in the data directory, then
// BB_* environment variables. Commands read the resulting Config and
// never consult viper directly.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the bb commands use.
type Config struct {
	// ServerURL is the base URL of the budget server.
	ServerURL string `mapstructure:"server_url"`

	// ListenAddr is the bind address for bb serve.
	ListenAddr string `mapstructure:"listen_addr"`

	// DataDir holds the local database, session file, and shell cache.
	DataDir string `mapstructure:"data_dir"`

	// ProbeInterval is how often connectivity is re-checked.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`

	// SyncInterval is the daemon's periodic sync cadence.
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// DebounceInterval batches rapid local edits before syncing.
	DebounceInterval time.Duration `mapstructure:"debounce_interval"`

	// LogFile, when set, routes daemon logs to a rotated file.
	LogFile string `mapstructure:"log_file"`

	// ShellListenAddr is the bind address for bb shell.
	ShellListenAddr string `mapstructure:"shell_listen_addr"`

	// ShellUpstream is the web app fronted by the offline shell cache.
	ShellUpstream string `mapstructure:"shell_upstream"`

	// ShellManifest is the path to the shell asset manifest. Relative
	// paths resolve against DataDir.
	ShellManifest string `mapstructure:"shell_manifest"`
}

// Load resolves the configuration. A missing config.yaml is not an
// error; defaults and environment variables still apply.
func Load() (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	v.SetDefault("server_url", "http://localhost:4000")
	v.SetDefault("listen_addr", ":4000")
	v.SetDefault("data_dir", filepath.Join(home, ".budgetbox"))
	v.SetDefault("probe_interval", 15*time.Second)
	v.SetDefault("sync_interval", 30*time.Second)
	v.SetDefault("debounce_interval", 500*time.Millisecond)
	v.SetDefault("log_file", "")
	v.SetDefault("shell_listen_addr", ":8080")
	v.SetDefault("shell_upstream", "http://localhost:3000")
	v.SetDefault("shell_manifest", "shell.yaml")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir := os.Getenv("BB_DATA_DIR"); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(filepath.Join(home, ".budgetbox"))

	v.SetEnvPrefix("BB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(home, ".budgetbox")
	}
	if !filepath.IsAbs(cfg.ShellManifest) {
		cfg.ShellManifest = filepath.Join(cfg.DataDir, cfg.ShellManifest)
	}

	return &cfg, nil
}

// StorePath returns the location of the local budget database.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "budget.db")
}

// CacheDir returns the root of the offline shell cache.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "shell-cache")
}
