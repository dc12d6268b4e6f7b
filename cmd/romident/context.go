package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"romident/internal/catalog"
	"romident/internal/config"
	"romident/internal/hashstore"
	"romident/internal/logging"
	"romident/internal/matchcache"
	"romident/internal/media"
)

type commandContext struct {
	configFlag *string
	quietFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, quietFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		quietFlag:  quietFlag,
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

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("setup logging: %w", err)
			return
		}
		if c.quietFlag != nil && *c.quietFlag {
			logger = logging.WithLevelOverride(logger, slog.LevelWarn)
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// repository returns a catalog repository configured for cfg's encoding.
func (c *commandContext) repository(cfg *config.Config, logger *slog.Logger) *catalog.Repository {
	return catalog.NewRepository(catalog.LoadOptions{Encoding: cfg.Catalogs.Encoding}, logger)
}

// loadCatalogs loads the configured catalogs, or sources when non-empty.
// Directories and catalog files may be mixed in sources.
func (c *commandContext) loadCatalogs(cfg *config.Config, logger *slog.Logger, sources []string) ([]*catalog.Database, error) {
	dirs, files := cfg.CatalogSources()
	if len(sources) > 0 {
		dirs, files = splitSources(sources)
	}
	return c.repository(cfg, logger).LoadSources(dirs, files)
}

// openHashStore opens the checksum cache when enabled. A nil store with a
// nil error means the cache is disabled.
func (c *commandContext) openHashStore(cfg *config.Config) (*hashstore.Store, error) {
	if !cfg.HashCache.Enabled {
		return nil, nil
	}
	return hashstore.Open(cfg.HashCache.Path)
}

// openMatchCache returns the match cache when enabled, otherwise nil.
func (c *commandContext) openMatchCache(cfg *config.Config, logger *slog.Logger) *matchcache.Cache {
	if !cfg.MatchCache.Enabled {
		return nil
	}
	return matchcache.NewCache(cfg.MatchCache.Path, logger)
}

func mediaOptions(cfg *config.Config, store *hashstore.Store, logger *slog.Logger) media.Options {
	opts := media.Options{
		ChunkSize:         cfg.ChecksumChunkSize(),
		MaxArchiveBytes:   cfg.MaxArchiveBytes(),
		BlockCacheEntries: cfg.GCZ.BlockCacheEntries,
		Logger:            logger,
	}
	if store != nil {
		opts.Cache = store
	}
	return opts
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
