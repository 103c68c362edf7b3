package config

import (
	"os"
	"path/filepath"
)

// BridgePath returns the root directory for bridge host state.
// It uses $POLYBRIDGE_PATH if set, otherwise defaults to ~/.polybridge.
func BridgePath() string {
	if v := os.Getenv("POLYBRIDGE_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".polybridge")
	}
	return filepath.Join(home, ".polybridge")
}

// ConfigPath returns the path to the bridge config file.
func ConfigPath() string {
	return filepath.Join(BridgePath(), "config.jsonc")
}

// DotenvPath returns the path to the bridge .env file.
func DotenvPath() string {
	return filepath.Join(BridgePath(), ".env")
}

// BroadcastDir returns the directory persisted broadcast files are written
// to, honoring an explicit override.
func BroadcastDir(cfg *Config) string {
	if cfg != nil && cfg.Broadcast.Dir != "" {
		return cfg.Broadcast.Dir
	}
	return filepath.Join(BridgePath(), "broadcasts")
}

// MetricsDBPath returns the local metrics/audit database path, honoring an
// explicit override.
func MetricsDBPath(cfg *Config) string {
	if cfg != nil && cfg.Metrics.DBPath != "" {
		return cfg.Metrics.DBPath
	}
	return filepath.Join(BridgePath(), "metrics.db")
}

// EventLogDir returns the directory per-session JSONL event logs are
// written to.
func EventLogDir() string {
	return filepath.Join(BridgePath(), "events")
}
