package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CatalogDirs []string `toml:"catalog_dirs"`
	CacheDir    string   `toml:"cache_dir"`
	LogDir      string   `toml:"log_dir"`
}

// Catalogs controls which catalog files are loaded and how they are decoded.
type Catalogs struct {
	// Files lists individual catalog files loaded in addition to CatalogDirs.
	Files []string `toml:"files"`
	// Encoding is the text encoding of line-dialect catalogs: "utf-8" or "latin1".
	Encoding string `toml:"encoding"`
}

// Identification tunes the matching engine.
type Identification struct {
	Fuzzy            bool `toml:"fuzzy"`
	PreferSHA1       bool `toml:"prefer_sha1"`
	ChecksumChunkKiB int  `toml:"checksum_chunk_kib"`
	MaxArchiveMiB    int  `toml:"max_archive_mib"`
}

// HashCache configures the persistent (path, size, mtime) checksum cache.
type HashCache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // Default: <cache_dir>/hashes.db
}

// MatchCache configures the checksum to catalog record cache.
type MatchCache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // Default: <cache_dir>/matches.json
}

// GCZ configures the compressed block image reader.
type GCZ struct {
	// BlockCacheEntries is the number of decompressed blocks kept per open
	// image. Zero selects the reader default; negative disables caching.
	BlockCacheEntries int `toml:"block_cache_entries"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for romident.
//
// Configuration sections by subsystem:
//   - Paths: catalog, cache and log directories
//   - Catalogs: extra catalog files and text encoding
//   - Identification: fuzzy matching, checksum preferences and chunking
//   - HashCache: SQLite checksum cache keyed by file identity
//   - MatchCache: JSON cache of positive identifications
//   - GCZ: decompressed block cache sizing
//   - Logging: log format and level
type Config struct {
	Paths          Paths          `toml:"paths"`
	Catalogs       Catalogs       `toml:"catalogs"`
	Identification Identification `toml:"identification"`
	HashCache      HashCache      `toml:"hash_cache"`
	MatchCache     MatchCache     `toml:"match_cache"`
	GCZ            GCZ            `toml:"gcz"`
	Logging        Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file is not an error; defaults apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("romident.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache and log directories that enabled
// features write into. Catalog directories are only read and never created.
func (c *Config) EnsureDirectories() error {
	dirs := make([]string, 0, 3)
	if c.HashCache.Enabled {
		dirs = append(dirs, filepath.Dir(c.HashCache.Path))
	}
	if c.MatchCache.Enabled {
		dirs = append(dirs, filepath.Dir(c.MatchCache.Path))
	}
	if strings.TrimSpace(c.Paths.LogDir) != "" {
		dirs = append(dirs, c.Paths.LogDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ChecksumChunkSize returns the CRC streaming chunk size in bytes.
func (c *Config) ChecksumChunkSize() int {
	return c.Identification.ChecksumChunkKiB * 1024
}

// MaxArchiveBytes returns the largest archive member that will be extracted into memory.
func (c *Config) MaxArchiveBytes() int64 {
	return int64(c.Identification.MaxArchiveMiB) << 20
}

// CatalogSources returns the configured catalog directories followed by the
// individual catalog files, in configuration order.
func (c *Config) CatalogSources() (dirs []string, files []string) {
	return append([]string(nil), c.Paths.CatalogDirs...), append([]string(nil), c.Catalogs.Files...)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "romident")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/romident"
	}
	return filepath.Join(home, ".cache", "romident")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders cfg as TOML, used by `romident config show`.
func Encode(cfg *Config) ([]byte, error) {
	var buf strings.Builder
	enc := toml.NewEncoder(&buf).SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return []byte(buf.String()), nil
}
