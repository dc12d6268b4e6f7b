package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"romident/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The catalog directory exists and is empty; caches live under the same root.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CatalogDirs = []string{filepath.Join(base, "catalogs")}
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = ""
	cfgVal.HashCache.Path = filepath.Join(base, "cache", "hashes.db")
	cfgVal.MatchCache.Path = filepath.Join(base, "cache", "matches.json")
	if err := os.MkdirAll(cfgVal.Paths.CatalogDirs[0], 0o755); err != nil {
		t.Fatalf("mkdir catalog dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCatalogFile writes a catalog into the config's catalog directory.
func WithCatalogFile(name, contents string) ConfigOption {
	return func(b *configBuilder) {
		WriteFile(b.t, filepath.Join(b.cfg.Paths.CatalogDirs[0], name), []byte(contents))
	}
}

// WithMatchCache enables the match cache.
func WithMatchCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MatchCache.Enabled = true
	}
}

// WithoutHashCache disables the SQLite checksum cache.
func WithoutHashCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.HashCache.Enabled = false
	}
}

// WriteConfigFile encodes cfg as TOML next to its directories and returns the path.
func WriteConfigFile(t testing.TB, cfg *config.Config) string {
	t.Helper()
	data, err := config.Encode(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	return WriteFile(t, filepath.Join(BaseDir(cfg), "romident.toml"), data)
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
