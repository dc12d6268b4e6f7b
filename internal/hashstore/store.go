package hashstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"romident/internal/media"
)

// Store manages checksum persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one cached checksum row.
type Entry struct {
	Path       string
	Kind       media.Kind
	SectorSize int64
	Size       int64
	ModTime    time.Time
	Sums       media.Checksums
	ComputedAt time.Time
}

// Open initializes or connects to the checksum database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("hashstore: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure hash cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LookupChecksums returns the checksums stored for key. A row written for a
// different size, modification time or sector size is a miss.
func (s *Store) LookupChecksums(key media.FileKey) (media.Checksums, bool, error) {
	var (
		crc  int64
		sha1 string
	)
	err := s.db.QueryRow(
		`SELECT crc32, sha1 FROM checksums WHERE path = ? AND kind = ? AND sector_size = ? AND size = ? AND mtime_ns = ?`,
		key.Path, string(key.Kind), key.SectorSize, key.Size, key.ModTime.UnixNano(),
	).Scan(&crc, &sha1)
	if errors.Is(err, sql.ErrNoRows) {
		return media.Checksums{}, false, nil
	}
	if err != nil {
		return media.Checksums{}, false, fmt.Errorf("lookup checksums: %w", err)
	}
	return media.Checksums{CRC32: uint32(crc), SHA1: sha1}, true, nil
}

// StoreChecksums records sums for key, replacing any row for the same path,
// kind and sector size.
func (s *Store) StoreChecksums(key media.FileKey, sums media.Checksums) error {
	_, err := s.db.Exec(
		`INSERT INTO checksums (path, kind, sector_size, size, mtime_ns, crc32, sha1, computed_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(path, kind, sector_size) DO UPDATE SET
             size = excluded.size, mtime_ns = excluded.mtime_ns,
             crc32 = excluded.crc32, sha1 = excluded.sha1, computed_at = excluded.computed_at`,
		key.Path,
		string(key.Kind),
		key.SectorSize,
		key.Size,
		key.ModTime.UnixNano(),
		int64(sums.CRC32),
		sums.SHA1,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store checksums: %w", err)
	}
	return nil
}

// List returns every row, most recently computed first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, kind, sector_size, size, mtime_ns, crc32, sha1, computed_at FROM checksums ORDER BY computed_at DESC, path`)
	if err != nil {
		return nil, fmt.Errorf("list checksums: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry    Entry
			kind     string
			mtimeNS  int64
			crc      int64
			computed string
		)
		if err := rows.Scan(&entry.Path, &kind, &entry.SectorSize, &entry.Size, &mtimeNS, &crc, &entry.Sums.SHA1, &computed); err != nil {
			return nil, err
		}
		entry.Kind = media.Kind(kind)
		entry.ModTime = time.Unix(0, mtimeNS)
		entry.Sums.CRC32 = uint32(crc)
		entry.ComputedAt, _ = time.Parse(time.RFC3339Nano, computed)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Count returns the number of cached rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM checksums`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count checksums: %w", err)
	}
	return n, nil
}

// Clear removes every row.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checksums`)
	if err != nil {
		return 0, fmt.Errorf("clear checksums: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes rows whose backing file is gone or has changed since the
// checksums were computed, and returns how many were removed.
func (s *Store) Prune(ctx context.Context) (int, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	var removed int
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if current(entry) {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM checksums WHERE path = ? AND kind = ? AND sector_size = ?`,
			entry.Path, string(entry.Kind), entry.SectorSize); err != nil {
			return removed, fmt.Errorf("prune %s: %w", entry.Path, err)
		}
		removed++
	}
	return removed, nil
}

// current reports whether the file behind entry still has the recorded size
// and modification time. Archive members are checked against the archive.
func current(entry Entry) bool {
	path := entry.Path
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		if idx := strings.LastIndex(path, media.MemberSeparator); idx > 0 {
			info, err = os.Stat(path[:idx])
		}
	}
	if err != nil {
		return false
	}
	return info.Size() == entry.Size && info.ModTime().UnixNano() == entry.ModTime.UnixNano()
}
