package config

import (
	"fmt"
	"os"
	"strings"
)

// EnvProcessRoot overrides paths.process_root when set.
const EnvProcessRoot = "RIGPROC_PROCESS_ROOT"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeRun()
	c.normalizeMetrics()
	if c.Watch.DebounceMillis <= 0 {
		c.Watch.DebounceMillis = defaultDebounceMillis
	}
	return nil
}

func (c *Config) normalizePaths() error {
	if root, ok := os.LookupEnv(EnvProcessRoot); ok && strings.TrimSpace(root) != "" {
		c.Paths.ProcessRoot = root
	}
	if strings.TrimSpace(c.Paths.ProcessRoot) == "" {
		c.Paths.ProcessRoot = defaultProcessRoot
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}

	var err error
	if c.Paths.ProcessRoot, err = expandPath(strings.TrimSpace(c.Paths.ProcessRoot)); err != nil {
		return fmt.Errorf("paths.process_root: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.HistoryDB, err = expandPath(strings.TrimSpace(c.Paths.HistoryDB)); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeRun() {
	c.Run.DefaultProcess = strings.TrimSpace(c.Run.DefaultProcess)
}

func (c *Config) normalizeMetrics() {
	path := strings.TrimSpace(c.Metrics.TextfilePath)
	if path == "" {
		c.Metrics.TextfilePath = ""
		return
	}
	if expanded, err := expandPath(path); err == nil {
		path = expanded
	}
	c.Metrics.TextfilePath = path
}
