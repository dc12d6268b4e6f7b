package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCatalogs(); err != nil {
		return err
	}
	c.normalizeIdentification()
	if err := c.normalizeCaches(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("ROMIDENT_CATALOG_DIRS"); ok && strings.TrimSpace(value) != "" {
		c.Paths.CatalogDirs = filepath.SplitList(value)
	}
	dirs, err := expandList(c.Paths.CatalogDirs)
	if err != nil {
		return fmt.Errorf("paths.catalog_dirs: %w", err)
	}
	c.Paths.CatalogDirs = dirs

	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalogs() error {
	files, err := expandList(c.Catalogs.Files)
	if err != nil {
		return fmt.Errorf("catalogs.files: %w", err)
	}
	c.Catalogs.Files = files

	c.Catalogs.Encoding = strings.ToLower(strings.TrimSpace(c.Catalogs.Encoding))
	switch c.Catalogs.Encoding {
	case "", "utf8":
		c.Catalogs.Encoding = defaultCatalogEncoding
	case "latin-1", "iso-8859-1", "iso8859-1":
		c.Catalogs.Encoding = "latin1"
	}
	return nil
}

func (c *Config) normalizeIdentification() {
	if c.Identification.ChecksumChunkKiB == 0 {
		c.Identification.ChecksumChunkKiB = defaultChecksumChunkKiB
	}
	if c.Identification.MaxArchiveMiB == 0 {
		c.Identification.MaxArchiveMiB = defaultMaxArchiveMiB
	}
}

func (c *Config) normalizeCaches() error {
	var err error
	if strings.TrimSpace(c.HashCache.Path) == "" {
		c.HashCache.Path = filepath.Join(c.Paths.CacheDir, defaultHashCacheFile)
	}
	if c.HashCache.Path, err = expandPath(c.HashCache.Path); err != nil {
		return fmt.Errorf("hash_cache.path: %w", err)
	}
	if strings.TrimSpace(c.MatchCache.Path) == "" {
		c.MatchCache.Path = filepath.Join(c.Paths.CacheDir, defaultMatchCacheFile)
	}
	if c.MatchCache.Path, err = expandPath(c.MatchCache.Path); err != nil {
		return fmt.Errorf("match_cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if value, ok := os.LookupEnv("ROMIDENT_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// expandList expands each entry, dropping blanks and duplicates while keeping order.
func expandList(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		expanded, err := expandPath(value)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[expanded]; ok {
			continue
		}
		seen[expanded] = struct{}{}
		out = append(out, expanded)
	}
	return out, nil
}
