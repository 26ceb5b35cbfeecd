package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"rigproc/internal/config"
	"rigproc/internal/logging"
	"rigproc/internal/manifest"
	"rigproc/internal/options"
	"rigproc/internal/signals"
	"rigproc/internal/steprunner"
)

type commandContext struct {
	configFlag  *string
	processFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag, processFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		processFlag: processFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// loggerValue builds the application logger once. A broken log setup falls
// back to a no-op logger so commands still run.
func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

// processHandle bundles the stores of one process directory.
type processHandle struct {
	name     string
	path     string
	manifest *manifest.Store
	repo     *steprunner.DirRepository
	signals  *signals.Controller
}

func (c *commandContext) processName() string {
	if c.processFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.processFlag)
}

func (c *commandContext) openProcess() (*processHandle, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	path, err := cfg.ProcessPath(c.processName())
	if err != nil {
		return nil, err
	}
	ctrl, err := signals.Open(path)
	if err != nil {
		return nil, err
	}
	logger := c.loggerValue()
	return &processHandle{
		name:     filepath.Base(path),
		path:     path,
		manifest: manifest.NewStore(path, logger),
		repo:     steprunner.NewDirRepository(path),
		signals:  ctrl,
	}, nil
}

func (c *commandContext) openOptions(proc *processHandle) (*options.Store, error) {
	cfg := c.configValue()
	return options.Open(proc.path,
		options.WithLogger(c.loggerValue()),
		options.WithFormatOptions(options.FormatOptions{
			SplitCommas:   cfg.Options.SplitCommas,
			ParseLiterals: cfg.Options.ParseLiterals,
		}),
	)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
