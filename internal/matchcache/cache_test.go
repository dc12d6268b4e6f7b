package matchcache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCacheStoreAndLookup(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "matches.json")
	cache := NewCache(cachePath, nil)

	entry := Entry{
		CRC32:       "0xDEADBEEF",
		Catalog:     "Nintendo - Super Nintendo",
		Record:      "Super Game (USA)",
		Description: "Super Game (USA)",
		Size:        1 << 20,
	}
	if err := cache.Store(entry); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	found, ok := cache.Lookup(0xDEADBEEF)
	if !ok {
		t.Fatal("Lookup failed to find stored entry")
	}
	if found.CRC32 != "deadbeef" {
		t.Errorf("CRC32 should be normalized, got %q", found.CRC32)
	}
	if found.Record != entry.Record || found.Catalog != entry.Catalog {
		t.Errorf("unexpected entry: %+v", found)
	}
	if found.CachedAt.IsZero() {
		t.Error("CachedAt should default to now")
	}

	catalogName, record, ok := cache.LookupMatch(0xDEADBEEF)
	if !ok || catalogName != entry.Catalog || record != entry.Record {
		t.Errorf("LookupMatch = %q, %q, %v", catalogName, record, ok)
	}
}

func TestCacheLookupNotFound(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "matches.json"), nil)
	if _, ok := cache.Lookup(1); ok {
		t.Error("Lookup should return false for non-existent entry")
	}
}

func TestCacheStoreValidation(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "matches.json"), nil)
	tests := []Entry{
		{CRC32: "not-hex", Catalog: "c", Record: "r"},
		{CRC32: "123456789", Catalog: "c", Record: "r"},
		{CRC32: "00000001", Record: "r"},
		{CRC32: "00000001", Catalog: "c"},
	}
	for _, entry := range tests {
		if err := cache.Store(entry); err == nil {
			t.Errorf("Store(%+v) should fail", entry)
		}
	}
}

func TestCachePersistence(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "nested", "matches.json")

	cache1 := NewCache(cachePath, nil)
	if err := cache1.StoreMatch(0x1234, "snes", "game", "Game (USA)", 512); err != nil {
		t.Fatalf("StoreMatch failed: %v", err)
	}

	cache2 := NewCache(cachePath, nil)
	found, ok := cache2.Lookup(0x1234)
	if !ok {
		t.Fatal("entry not persisted")
	}
	if found.Description != "Game (USA)" || found.Size != 512 {
		t.Errorf("unexpected persisted entry: %+v", found)
	}
	if _, err := os.Stat(cachePath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not remain after save")
	}
}

func TestCacheConcurrentWritersMerge(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "matches.json")
	first := NewCache(cachePath, nil)
	second := NewCache(cachePath, nil)

	if err := first.StoreMatch(1, "a", "one", "One", 1); err != nil {
		t.Fatal(err)
	}
	if err := second.StoreMatch(2, "a", "two", "Two", 1); err != nil {
		t.Fatal(err)
	}

	reloaded := NewCache(cachePath, nil)
	if reloaded.Count() != 2 {
		t.Fatalf("expected both writers' entries, got %d", reloaded.Count())
	}
	if second.Count() != 2 {
		t.Fatalf("second cache should see first writer's entry, got %d", second.Count())
	}
}

func TestCacheRemove(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "matches.json"), nil)
	if err := cache.StoreMatch(0xAB, "c", "r", "R", 1); err != nil {
		t.Fatal(err)
	}
	if err := cache.Remove("000000AB"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := cache.Lookup(0xAB); ok {
		t.Error("entry should be removed")
	}
	err := cache.Remove("ab")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestCacheListAndClear(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "matches.json"), nil)
	now := time.Now()
	for i, record := range []string{"old", "new", "middle"} {
		offset := map[string]time.Duration{"old": -2 * time.Hour, "new": 0, "middle": -time.Hour}[record]
		entry := Entry{CRC32: FormatCRC(uint32(i + 1)), Catalog: "c", Record: record, CachedAt: now.Add(offset)}
		if err := cache.Store(entry); err != nil {
			t.Fatal(err)
		}
	}

	list := cache.List()
	if len(list) != 3 || list[0].Record != "new" || list[1].Record != "middle" || list[2].Record != "old" {
		t.Fatalf("unexpected order: %+v", list)
	}

	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cache.Count() != 0 || NewCache(cache.path, nil).Count() != 0 {
		t.Error("cache should be empty after Clear")
	}
}

func TestCacheDisabledWithoutPath(t *testing.T) {
	cache := NewCache("", nil)
	if err := cache.StoreMatch(1, "c", "r", "R", 1); err != nil {
		t.Fatalf("Store should be a no-op, got %v", err)
	}
	if _, ok := cache.Lookup(1); ok || cache.Count() != 0 || cache.List() != nil {
		t.Error("disabled cache should hold nothing")
	}
	if err := cache.Clear(); err != nil {
		t.Error(err)
	}
}

func TestCacheCorruptFileStartsEmpty(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "matches.json")
	if err := os.WriteFile(cachePath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cache := NewCache(cachePath, nil)
	if cache.Count() != 0 {
		t.Fatal("corrupt cache should load empty")
	}
	if err := cache.StoreMatch(1, "c", "r", "R", 1); err == nil {
		t.Fatal("writing over an unreadable cache should fail rather than discard it")
	}
}
