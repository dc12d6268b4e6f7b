package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"romident/internal/logging"
)

// Repository caches parsed catalogs by file path. A cached Database is
// returned until the file's modification time or size changes; Reload drops
// everything. Construction is serialized so two callers never parse the same
// file concurrently. The returned databases are shared and must be treated as
// read-only.
type Repository struct {
	opts   LoadOptions
	logger *slog.Logger

	mu    sync.Mutex
	files map[string]cachedFile
	dirs  map[string]cachedDir
}

type cachedFile struct {
	db      *Database
	modTime time.Time
	size    int64
}

type cachedDir struct {
	db        *Database
	signature string
}

// NewRepository constructs an empty repository.
func NewRepository(opts LoadOptions, logger *slog.Logger) *Repository {
	return &Repository{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "catalog"),
		files:  map[string]cachedFile{},
		dirs:   map[string]cachedDir{},
	}
}

// Load returns the database for one catalog file.
func (r *Repository) Load(path string) (*Database, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(filepath.Clean(path))
}

func (r *Repository) loadLocked(path string) (*Database, error) {
	info, err := os.Stat(path)
	if err != nil {
		delete(r.files, path)
		return nil, err
	}
	if cached, ok := r.files[path]; ok && cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
		return cached.db, nil
	}

	started := time.Now()
	db, err := Load(path, r.opts)
	if err != nil {
		delete(r.files, path)
		return nil, err
	}
	r.files[path] = cachedFile{db: db, modTime: info.ModTime(), size: info.Size()}
	r.logger.Debug("loaded catalog",
		logging.String(logging.FieldPath, path),
		logging.String(logging.FieldCatalog, db.Name),
		logging.Int("records", db.Len()),
		logging.Duration("elapsed", time.Since(started)),
	)
	return db, nil
}

// LoadDir loads every .dat and .xml file in dir, in name order, and merges
// them into one database named after the directory. Files that fail to load
// are skipped and logged; their errors are joined into the returned error
// alongside a usable database.
func (r *Repository) LoadDir(dir string) (*Database, error) {
	dir = filepath.Clean(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && IsCatalogFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		dbs       []*Database
		errs      []error
		signature strings.Builder
	)
	for _, name := range names {
		path := filepath.Join(dir, name)
		db, err := r.loadLocked(path)
		if err != nil {
			errs = append(errs, err)
			logging.WarnWithContext(r.logger, "skipping catalog file", "catalog_skipped",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "records from this file are not considered"),
				logging.String(logging.FieldErrorHint, "fix or remove the catalog file"),
			)
			continue
		}
		dbs = append(dbs, db)
		cached := r.files[path]
		fmt.Fprintf(&signature, "%s|%d|%d;", path, cached.modTime.UnixNano(), cached.size)
	}

	if cached, ok := r.dirs[dir]; ok && cached.signature == signature.String() {
		return cached.db, errors.Join(errs...)
	}
	merged := Merge(filepath.Base(dir), dbs...)
	r.dirs[dir] = cachedDir{db: merged, signature: signature.String()}
	return merged, errors.Join(errs...)
}

// LoadSources loads each directory as one merged database followed by each
// listed file, preserving that order. Sources that fail entirely are logged
// and skipped; all errors are joined.
func (r *Repository) LoadSources(dirs, files []string) ([]*Database, error) {
	var (
		dbs  []*Database
		errs []error
	)
	for _, dir := range dirs {
		db, err := r.LoadDir(dir)
		if err != nil {
			errs = append(errs, err)
		}
		if db != nil && db.Len() > 0 {
			dbs = append(dbs, db)
		}
	}
	for _, path := range files {
		db, err := r.Load(path)
		if err != nil {
			errs = append(errs, err)
			logging.WarnWithContext(r.logger, "skipping catalog file", "catalog_skipped",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "records from this file are not considered"),
				logging.String(logging.FieldErrorHint, "check catalogs.files in the config"),
			)
			continue
		}
		dbs = append(dbs, db)
	}
	return dbs, errors.Join(errs...)
}

// Reload drops every cached database.
func (r *Repository) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.files)
	clear(r.dirs)
}

// Cached returns the paths of the cached catalog files, sorted.
func (r *Repository) Cached() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, 0, len(r.files))
	for path := range r.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
