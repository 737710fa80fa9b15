// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Session layout.
	SessionDir   string // Directory holding the report, snapshot and archive.
	ReportFile   string // Report file name inside the session directory.
	SnapshotFile string // Snapshot file name inside the session directory.
	ArchiveFile  string // SQLite archive file name inside the session directory.

	// Writer cadence.
	FlushInterval time.Duration

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults. The default session directory is derived from the wall clock
// once, at load time.
func Load(now time.Time) (Config, error) {
	cfg := Config{
		SessionDir:    envStr("JIKAN_SESSION_DIR", now.Format("jikan-20060102-150405")),
		ReportFile:    envStr("JIKAN_REPORT_FILE", "dev.profile"),
		SnapshotFile:  envStr("JIKAN_SNAPSHOT_FILE", "session.json"),
		ArchiveFile:   envStr("JIKAN_ARCHIVE_FILE", "archive.db"),
		FlushInterval: envDuration("JIKAN_FLUSH_INTERVAL", 2*time.Second),
		OTELEndpoint:  envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:  envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:   envStr("OTEL_SERVICE_NAME", "jikan"),
		LogLevel:      envStr("JIKAN_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.SessionDir == "" {
		return fmt.Errorf("config: JIKAN_SESSION_DIR must not be empty")
	}
	if c.ReportFile == "" || c.SnapshotFile == "" || c.ArchiveFile == "" {
		return fmt.Errorf("config: report, snapshot and archive file names must not be empty")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("config: JIKAN_FLUSH_INTERVAL must be positive")
	}
	return nil
}

// ReportPath returns the path of the report file.
func (c Config) ReportPath() string { return filepath.Join(c.SessionDir, c.ReportFile) }

// SnapshotPath returns the path of the snapshot file.
func (c Config) SnapshotPath() string { return filepath.Join(c.SessionDir, c.SnapshotFile) }

// ArchivePath returns the path of the SQLite archive.
func (c Config) ArchivePath() string { return filepath.Join(c.SessionDir, c.ArchiveFile) }

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
