package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"romident/internal/catalog"
	"romident/internal/config"
	"romident/internal/logging"
)

// splitSources sorts catalog sources given on the command line into
// directories and files.
func splitSources(sources []string) (dirs []string, files []string) {
	for _, source := range sources {
		path, err := config.ExpandPath(source)
		if err != nil {
			path = source
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			dirs = append(dirs, path)
			continue
		}
		files = append(files, path)
	}
	return dirs, files
}

// requireCatalogs reports load problems and fails only when nothing usable
// was loaded.
func requireCatalogs(dbs []*catalog.Database, loadErr error, logger *slog.Logger) ([]*catalog.Database, error) {
	if loadErr != nil && len(dbs) > 0 {
		logging.WarnWithContext(logger, "some catalogs could not be loaded", "catalog_load_partial",
			logging.Error(loadErr),
			logging.Int("loaded", len(dbs)),
			logging.String(logging.FieldImpact, "identification uses the catalogs that loaded"),
		)
	}
	if len(dbs) == 0 {
		if loadErr != nil {
			return nil, fmt.Errorf("load catalogs: %w", loadErr)
		}
		return nil, errors.New("no catalogs configured; set paths.catalog_dirs or pass --catalog")
	}
	return dbs, nil
}

func closeQuietly(out io.Writer, name string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		fmt.Fprintf(out, "warning: close %s: %v\n", name, err)
	}
}
