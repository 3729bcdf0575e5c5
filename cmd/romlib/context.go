package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"romlib/internal/archive"
	"romlib/internal/catalog"
	"romlib/internal/compare"
	"romlib/internal/config"
	"romlib/internal/convert"
	"romlib/internal/discovery"
	"romlib/internal/logging"
	"romlib/internal/program"
	"romlib/internal/stagecache"
	"romlib/internal/staging"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
	sessionID  string

	closers []func() error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
		sessionID:  uuid.NewString(),
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

// JSONMode reports whether --json was passed.
func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg, c.sessionID)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, logging.LogFilePattern)
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) classifier() (*program.Classifier, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	stock := program.StockConfigs{Dir: cfg.StockConfigs.Dir, ByCRC: cfg.StockTable()}
	return program.NewClassifier(stock, logger), nil
}

func (c *commandContext) stageManager() (*stagecache.Manager, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	manager := stagecache.NewManager(cfg.Paths.StagingDir, logger)
	if manager == nil {
		return nil, errors.New("staging directory is not configured")
	}
	return manager, nil
}

// archiveOptions returns the configured archive limits for reopening
// locations given on the command line or read back from the catalog.
func (c *commandContext) archiveOptions() (archive.Options, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return archive.Options{}, err
	}
	opts, err := discovery.OptionsFromConfig(cfg)
	if err != nil {
		return archive.Options{}, err
	}
	return opts.ArchiveOptions(), nil
}

func (c *commandContext) ignoredFeatures() program.Features {
	cfg := c.config
	if cfg == nil {
		return program.Features{}
	}
	return program.Features{
		Flags:    cfg.Comparison.IgnoredFeatures,
		Extended: cfg.Comparison.IgnoredFeaturesExt,
	}
}

// comparer builds a comparer for modeName (or the configured default). The
// backing session, when one is needed, is closed with the command context.
func (c *commandContext) comparer(cmd *cobra.Command, modeName string) (compare.Comparer, compare.Mode, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, 0, err
	}
	if strings.TrimSpace(modeName) == "" {
		modeName = cfg.Comparison.Mode
	}
	mode, err := compare.ParseMode(modeName)
	if err != nil {
		return nil, 0, err
	}
	if !mode.NeedsSession() {
		comparer, err := compare.New(mode, nil)
		return comparer, mode, err
	}

	logger, err := c.ensureLogger()
	if err != nil {
		return nil, 0, err
	}
	staging.CleanStale(cmd.Context(), cfg.Paths.TempDir, staging.DefaultMaxAge, logger)

	converter, err := convert.NewExecConverter(cfg.Converter.BinTool, cfg.Converter.RomTool, logger)
	if err != nil {
		return nil, 0, err
	}
	stage, err := c.stageManager()
	if err != nil {
		return nil, 0, err
	}
	sessionTemp := filepath.Join(cfg.Paths.TempDir, c.sessionID)
	canon := convert.NewCanonicalizer(converter, cfg.Paths.StagingDir, sessionTemp, logger)
	ignored := c.ignoredFeatures()
	if !ignored.IsZero() {
		logger.Debug("ignoring feature bits in canonical checksums",
			logging.String("flags", fmt.Sprintf("%#x", ignored.Flags)),
			logging.String("extended", fmt.Sprintf("%#x", ignored.Extended)),
		)
	}
	session := compare.NewSession(canon, stage, ignored, logger)
	c.closers = append(c.closers, func() error { return removeIfEmpty(sessionTemp) }, session.Close)

	comparer, err := compare.New(mode, session)
	return comparer, mode, err
}

func (c *commandContext) openCatalog() (*catalog.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := catalog.Open(cfg.Paths.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	c.closers = append(c.closers, store.Close)
	return store, nil
}

// close releases sessions and stores opened for the current command.
func (c *commandContext) close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// closeInto runs close and joins its error into *errp.
func (c *commandContext) closeInto(errp *error) {
	if err := c.close(); err != nil {
		*errp = errors.Join(*errp, err)
	}
}

func removeIfEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return os.Remove(dir)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
