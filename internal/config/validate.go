package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalogs(); err != nil {
		return err
	}
	if err := c.validateIdentification(); err != nil {
		return err
	}
	if err := c.validateCaches(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCatalogs() error {
	switch c.Catalogs.Encoding {
	case "utf-8", "latin1":
		return nil
	default:
		return fmt.Errorf("catalogs.encoding must be \"utf-8\" or \"latin1\", got %q", c.Catalogs.Encoding)
	}
}

func (c *Config) validateIdentification() error {
	chunk := c.Identification.ChecksumChunkKiB
	if chunk <= 0 || chunk > maxChecksumChunkKiB {
		return fmt.Errorf("identification.checksum_chunk_kib must be between 1 and %d", maxChecksumChunkKiB)
	}
	if c.Identification.MaxArchiveMiB <= 0 {
		return errors.New("identification.max_archive_mib must be positive")
	}
	return nil
}

func (c *Config) validateCaches() error {
	if c.HashCache.Enabled && c.HashCache.Path == "" {
		return errors.New("hash_cache.path must be set when hash_cache.enabled is true")
	}
	if c.MatchCache.Enabled && c.MatchCache.Path == "" {
		return errors.New("match_cache.path must be set when match_cache.enabled is true")
	}
	if c.HashCache.Enabled && c.MatchCache.Enabled && c.HashCache.Path == c.MatchCache.Path {
		return errors.New("hash_cache.path and match_cache.path must differ")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
