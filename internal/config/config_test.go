package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("BB_DATA_DIR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerURL != "http://localhost:4000" {
		t.Errorf("server URL = %q", cfg.ServerURL)
	}
	if cfg.DataDir != filepath.Join(home, ".budgetbox") {
		t.Errorf("data dir = %q", cfg.DataDir)
	}
	if cfg.SyncInterval != 30*time.Second {
		t.Errorf("sync interval = %v", cfg.SyncInterval)
	}
	if cfg.DebounceInterval != 500*time.Millisecond {
		t.Errorf("debounce = %v", cfg.DebounceInterval)
	}
	if cfg.StorePath() != filepath.Join(cfg.DataDir, "budget.db") {
		t.Errorf("store path = %q", cfg.StorePath())
	}
	if cfg.ShellManifest != filepath.Join(cfg.DataDir, "shell.yaml") {
		t.Errorf("shell manifest = %q", cfg.ShellManifest)
	}
}

func TestLoadFromConfigFile(t *testing.T) {
	home := t.TempDir()
	dataDir := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("BB_DATA_DIR", dataDir)

	content := "server_url: https://budget.example.org\nsync_interval: 2m\nlog_file: /var/log/bb.log\n"
	if err := os.WriteFile(filepath.Join(dataDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerURL != "https://budget.example.org" {
		t.Errorf("server URL = %q", cfg.ServerURL)
	}
	if cfg.SyncInterval != 2*time.Minute {
		t.Errorf("sync interval = %v", cfg.SyncInterval)
	}
	if cfg.LogFile != "/var/log/bb.log" {
		t.Errorf("log file = %q", cfg.LogFile)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	home := t.TempDir()
	dataDir := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("BB_DATA_DIR", dataDir)

	content := "server_url: https://file.example.org\n"
	if err := os.WriteFile(filepath.Join(dataDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("BB_SERVER_URL", "https://env.example.org")
	t.Setenv("BB_PROBE_INTERVAL", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerURL != "https://env.example.org" {
		t.Errorf("server URL = %q, want env value", cfg.ServerURL)
	}
	if cfg.ProbeInterval != 3*time.Second {
		t.Errorf("probe interval = %v", cfg.ProbeInterval)
	}
}
