package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"trackline/internal/config"
	"trackline/internal/daemonrun"
	"trackline/internal/logging"
	"trackline/internal/tracks"
	"trackline/internal/workflow"
)

const defaultCLILogLevel = "warn"

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
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

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return level
		}
	}
	return defaultCLILogLevel
}

// logger writes console logs to stderr so command output on stdout stays
// machine readable.
func (c *commandContext) logger() (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:            c.logLevel(),
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// withRuntime builds the full service graph for a one-shot command.
func (c *commandContext) withRuntime(cmd *cobra.Command, fn func(*daemonrun.Runtime) error, opts ...workflow.ManagerOption) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	rt, err := daemonrun.Build(cmd.Context(), cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

// withStore opens only the track database.
func (c *commandContext) withStore(fn func(*tracks.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := tracks.Open(cfg)
	if err != nil {
		return fmt.Errorf("open track store: %w", err)
	}
	defer store.Close()
	return fn(store)
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
