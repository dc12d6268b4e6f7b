package preflight

import (
	"context"
	"path/filepath"

	"romident/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	dirs, files := cfg.CatalogSources()
	if len(dirs) == 0 && len(files) == 0 {
		results = append(results, Result{Name: "Catalogs", Detail: "no catalog directories or files configured"})
	}
	for _, dir := range dirs {
		results = append(results, CheckCatalogDir("Catalog directory", dir))
	}
	for _, file := range files {
		results = append(results, CheckCatalogFile("Catalog file", file))
	}

	if cfg.HashCache.Enabled {
		results = append(results, CheckDirectoryAccess("Checksum cache directory", filepath.Dir(cfg.HashCache.Path)))
		results = append(results, CheckHashStore(ctx, cfg.HashCache.Path))
	}
	if cfg.MatchCache.Enabled {
		results = append(results, CheckDirectoryAccess("Match cache directory", filepath.Dir(cfg.MatchCache.Path)))
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
