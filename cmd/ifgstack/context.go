package main

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ifgstack/internal/catalog"
	"ifgstack/internal/config"
	"ifgstack/internal/ledger"
	"ifgstack/internal/logging"
	"ifgstack/internal/workflow"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	workdirFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag, logLevelFlag, workdirFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		workdirFlag:  workdirFlag,
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
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.config)
		if err != nil {
			logger, _ = logging.New(logging.Options{Level: "info", Format: "console"})
			logger.Warn("falling back to default logger", logging.Error(err))
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) workdir() (string, error) {
	if c.workdirFlag != nil && strings.TrimSpace(*c.workdirFlag) != "" {
		return config.ExpandPath(strings.TrimSpace(*c.workdirFlag))
	}
	return os.Getwd()
}

// openCatalog opens the configured catalog. A catalog that cannot be opened
// is logged and treated as unavailable so runs still proceed.
func (c *commandContext) openCatalog() catalog.Catalog {
	cat, err := catalog.Open(c.config)
	if err != nil {
		logging.WarnWithContext(c.loggerValue(), "catalog unavailable", "catalog_unavailable",
			logging.String("backend", c.config.Catalog.Backend),
			logging.Error(err),
			logging.String(logging.FieldImpact, "duplicate detection disabled for this invocation"),
		)
		return nil
	}
	return cat
}

func (c *commandContext) openLedger() (*ledger.Store, error) {
	return ledger.Open(c.config.LedgerPath())
}

// newPipeline wires the configured catalog and ledger into a pipeline. The
// returned closer releases both.
func (c *commandContext) newPipeline(opts ...workflow.Option) (*workflow.Pipeline, func(), error) {
	logger := c.loggerValue()
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cat := c.openCatalog(); cat != nil {
		closers = append(closers, func() { _ = cat.Close() })
		opts = append([]workflow.Option{workflow.WithCatalog(cat)}, opts...)
	}
	store, err := c.openLedger()
	if err != nil {
		logger.Warn("run ledger unavailable", logging.Error(err))
	} else {
		closers = append(closers, func() { _ = store.Close() })
		opts = append([]workflow.Option{workflow.WithLedger(store)}, opts...)
	}

	pipeline, err := workflow.New(c.config, logger, opts...)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return pipeline, closeAll, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
