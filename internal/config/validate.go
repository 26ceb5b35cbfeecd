package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be one of console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.HistoryDB) != "" && strings.HasSuffix(c.Paths.HistoryDB, string(filepath.Separator)) {
		return fmt.Errorf("paths.history_db must be a file path (got %q)", c.Paths.HistoryDB)
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.TextfilePath == "" {
		return nil
	}
	if !strings.HasSuffix(c.Metrics.TextfilePath, ".prom") {
		return fmt.Errorf("metrics.textfile_path must end in .prom (got %q)", c.Metrics.TextfilePath)
	}
	return nil
}
