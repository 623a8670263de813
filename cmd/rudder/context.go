package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"rudder/internal/config"
	"rudder/internal/logbook"
	"rudder/internal/logging"
)

type commandContext struct {
	configFlag   *string
	moonrakerURL *string
	pollInterval *int

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, moonrakerURL *string, pollInterval *int) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		moonrakerURL: moonrakerURL,
		pollInterval: pollInterval,
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
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		var (
			url      string
			interval int
		)
		if c.moonrakerURL != nil {
			url = *c.moonrakerURL
		}
		if c.pollInterval != nil {
			interval = *c.pollInterval
		}
		if err := cfg.ApplyOverrides(url, interval); err != nil {
			c.configErr = fmt.Errorf("apply flags: %w", err)
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

// withStore opens the logbook for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *logbook.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := logbook.Open(cfg)
	if err != nil {
		return fmt.Errorf("open logbook: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

// cliLogger logs warnings and above to stderr so command output stays clean.
func cliLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := "warn"
	if cfg != nil && strings.EqualFold(strings.TrimSpace(cfg.Logging.Level), "debug") {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warn: init logger: %v\n", err)
		return logging.NewNop()
	}
	return logger
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
