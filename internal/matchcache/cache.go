package matchcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"romident/internal/logging"
)

// Entry is a cached mapping from an image CRC32 to a catalog record.
type Entry struct {
	CRC32       string    `json:"crc32"` // eight lowercase hex digits
	Catalog     string    `json:"catalog"`
	Record      string    `json:"record"`
	Description string    `json:"description"`
	Size        int64     `json:"size"`
	CachedAt    time.Time `json:"cached_at"`
}

// Cache provides thread-safe access to the match cache.
type Cache struct {
	path    string
	logger  *slog.Logger
	lock    *flock.Flock
	mu      sync.RWMutex
	entries map[string]Entry // keyed by CRC32 hex
}

// NewCache creates a new cache instance. If path is empty, the cache is
// non-functional and every operation is a no-op. The file is created lazily
// on the first Store.
func NewCache(path string, logger *slog.Logger) *Cache {
	logger = logging.NewComponentLogger(logger, "matchcache")

	c := &Cache{
		path:    path,
		logger:  logger,
		entries: make(map[string]Entry),
	}
	if path == "" {
		return c
	}
	c.lock = flock.New(path + ".lock")

	if err := c.load(); err != nil {
		logging.WarnWithContext(logger, "failed to load match cache", "matchcache_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "cache will start empty"),
			logging.String(logging.FieldImpact, "previously matched images are scanned again"),
		)
	}
	return c
}

// FormatCRC renders crc as the cache key.
func FormatCRC(crc uint32) string {
	return fmt.Sprintf("%08x", crc)
}

// NormalizeCRC accepts a CRC32 in any case, with or without 0x, and returns
// the cache key form.
func NormalizeCRC(value string) (string, error) {
	value = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), "0x")
	n, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return "", fmt.Errorf("invalid crc32 %q", value)
	}
	return FormatCRC(uint32(n)), nil
}

// Lookup returns the entry for crc if found.
func (c *Cache) Lookup(crc uint32) (Entry, bool) {
	if c.path == "" {
		return Entry{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, found := c.entries[FormatCRC(crc)]
	return entry, found
}

// Store adds or replaces an entry and persists the cache.
func (c *Cache) Store(entry Entry) error {
	key, err := NormalizeCRC(entry.CRC32)
	if err != nil {
		return err
	}
	entry.CRC32 = key
	if strings.TrimSpace(entry.Catalog) == "" || strings.TrimSpace(entry.Record) == "" {
		return errors.New("catalog and record cannot be empty")
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now()
	}
	if c.path == "" {
		return nil
	}

	if err := c.update(func(entries map[string]Entry) error {
		entries[key] = entry
		return nil
	}); err != nil {
		return err
	}
	c.logger.Debug("cached match",
		logging.String("crc32", key),
		logging.String(logging.FieldCatalog, entry.Catalog),
		logging.String("record", entry.Record),
	)
	return nil
}

// Remove deletes the entry for a CRC32 key and persists the change.
func (c *Cache) Remove(crc string) error {
	key, err := NormalizeCRC(crc)
	if err != nil {
		return err
	}
	if c.path == "" {
		return nil
	}
	if err := c.update(func(entries map[string]Entry) error {
		if _, exists := entries[key]; !exists {
			return fmt.Errorf("crc32 %s not found in cache", key)
		}
		delete(entries, key)
		return nil
	}); err != nil {
		return err
	}
	c.logger.Debug("removed match from cache", logging.String("crc32", key))
	return nil
}

// List returns all entries sorted by CachedAt, newest first.
func (c *Cache) List() []Entry {
	if c.path == "" {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedEntries(c.entries)
}

// Clear removes all entries and persists the empty cache.
func (c *Cache) Clear() error {
	if c.path == "" {
		return nil
	}
	if err := c.update(func(entries map[string]Entry) error {
		clear(entries)
		return nil
	}); err != nil {
		return err
	}
	c.logger.Debug("cleared match cache")
	return nil
}

// Count returns the number of entries.
func (c *Cache) Count() int {
	if c.path == "" {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LookupMatch returns the catalog and record names cached for crc.
func (c *Cache) LookupMatch(crc uint32) (string, string, bool) {
	entry, ok := c.Lookup(crc)
	if !ok {
		return "", "", false
	}
	return entry.Catalog, entry.Record, true
}

// StoreMatch records an identification result for crc.
func (c *Cache) StoreMatch(crc uint32, catalogName, record, description string, size int64) error {
	return c.Store(Entry{
		CRC32:       FormatCRC(crc),
		Catalog:     catalogName,
		Record:      record,
		Description: description,
		Size:        size,
	})
}

// update applies fn to the on-disk state under the file lock and saves it.
// Changes saved by other processes since load are kept.
func (c *Cache) update(fn func(map[string]Entry) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	defer func() {
		if err := c.lock.Unlock(); err != nil {
			c.logger.Debug("failed to release cache lock", logging.Error(err))
		}
	}()

	onDisk, err := c.read()
	if err != nil {
		return err
	}
	if err := fn(onDisk); err != nil {
		return err
	}
	if err := c.save(onDisk); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	c.entries = onDisk
	return nil
}

// load reads the cache from disk into memory.
func (c *Cache) load() error {
	entries, err := c.read()
	if err != nil {
		return err
	}
	c.entries = entries
	c.logger.Debug("loaded match cache",
		logging.Int("entry_count", len(entries)),
		logging.String(logging.FieldPath, c.path))
	return nil
}

func (c *Cache) read() (map[string]Entry, error) {
	entries := make(map[string]Entry)
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}

	var list []Entry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse cache file: %w", err)
	}
	for _, entry := range list {
		key, err := NormalizeCRC(entry.CRC32)
		if err != nil {
			continue
		}
		entry.CRC32 = key
		entries[key] = entry
	}
	return entries, nil
}

// save writes the cache to disk atomically.
func (c *Cache) save(entries map[string]Entry) error {
	data, err := json.MarshalIndent(sortedEntries(entries), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func sortedEntries(entries map[string]Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CachedAt.Equal(out[j].CachedAt) {
			return out[i].CachedAt.After(out[j].CachedAt)
		}
		return out[i].CRC32 < out[j].CRC32
	})
	return out
}
