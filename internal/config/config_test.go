package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"rigproc/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.EnvProcessRoot, "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantRoot := filepath.Join(tempHome, "rigproc", "processes")
	if cfg.Paths.ProcessRoot != wantRoot {
		t.Fatalf("unexpected process root: got %q want %q", cfg.Paths.ProcessRoot, wantRoot)
	}
	if cfg.Paths.HistoryDB != filepath.Join(tempHome, ".local", "share", "rigproc", "history.db") {
		t.Fatalf("unexpected history db: %q", cfg.Paths.HistoryDB)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Run.Strict {
		t.Fatal("expected strict mode disabled by default")
	}
	if !cfg.Run.RecordHistory {
		t.Fatal("expected history recording enabled by default")
	}
	if !cfg.Options.SplitCommas || !cfg.Options.ParseLiterals {
		t.Fatalf("unexpected option formatting defaults: %+v", cfg.Options)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, filepath.Dir(cfg.Paths.HistoryDB)} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv(config.EnvProcessRoot, "")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "rigproc.toml")

	type payload struct {
		Paths struct {
			ProcessRoot string `toml:"process_root"`
		} `toml:"paths"`
		Run struct {
			Strict         bool   `toml:"strict"`
			DefaultProcess string `toml:"default_process"`
		} `toml:"run"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.ProcessRoot = filepath.Join(tempDir, "procs")
	custom.Run.Strict = true
	custom.Run.DefaultProcess = "character"
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if !cfg.Run.Strict {
		t.Fatal("expected strict mode from file")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized json format, got %q", cfg.Logging.Format)
	}

	path, err := cfg.ProcessPath("")
	if err != nil {
		t.Fatalf("ProcessPath failed: %v", err)
	}
	if path != filepath.Join(tempDir, "procs", "character") {
		t.Fatalf("unexpected process path %q", path)
	}
}

func TestEnvVarOverridesProcessRoot(t *testing.T) {
	root := t.TempDir()
	t.Setenv(config.EnvProcessRoot, root)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.ProcessRoot != root {
		t.Fatalf("expected process root from env, got %q", cfg.Paths.ProcessRoot)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "rigproc.toml")
	if err := os.WriteFile(configPath, []byte("[run]\nstrikt = true\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestProcessPathRequiresName(t *testing.T) {
	cfg := config.Default()
	if _, err := cfg.ProcessPath(""); err == nil {
		t.Fatal("expected error without process name or default")
	}
	abs := filepath.Join(t.TempDir(), "proc")
	got, err := cfg.ProcessPath(abs)
	if err != nil {
		t.Fatalf("ProcessPath failed: %v", err)
	}
	if got != abs {
		t.Fatalf("expected absolute path passthrough, got %q", got)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.ProcessRoot, "rigproc") {
		t.Fatalf("expected process root to contain rigproc, got %q", cfg.Paths.ProcessRoot)
	}
	if cfg.Watch.DebounceMillis != 500 {
		t.Fatalf("unexpected debounce %d", cfg.Watch.DebounceMillis)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}

	cfg = config.Default()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log level")
	}

	cfg = config.Default()
	cfg.Metrics.TextfilePath = "/tmp/rigproc.txt"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for metrics path without .prom suffix")
	}
}
