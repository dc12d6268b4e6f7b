package hashstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"romident/internal/hashstore"
	"romident/internal/media"
	"romident/internal/testsupport"
)

func openStore(t *testing.T) *hashstore.Store {
	t.Helper()
	store, err := hashstore.Open(filepath.Join(t.TempDir(), "cache", "checksums.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func keyFor(t *testing.T, path string, kind media.Kind) media.FileKey {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return media.FileKey{Path: path, Kind: kind, Size: info.Size(), ModTime: info.ModTime()}
}

func TestStoreAndLookup(t *testing.T) {
	store := openStore(t)
	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "a.bin"), []byte("abc"))
	key := keyFor(t, path, media.KindPlainFile)
	sums := media.Checksums{CRC32: 0xFFFFFFFE, SHA1: "a9993e364706816aba3e25717850c26c9cd0d89d"}

	if _, ok, err := store.LookupChecksums(key); err != nil || ok {
		t.Fatalf("expected miss on empty store, got ok=%v err=%v", ok, err)
	}
	if err := store.StoreChecksums(key, sums); err != nil {
		t.Fatalf("StoreChecksums failed: %v", err)
	}
	got, ok, err := store.LookupChecksums(key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got != sums {
		t.Fatalf("got %+v, want %+v", got, sums)
	}

	changed := key
	changed.ModTime = key.ModTime.Add(time.Second)
	if _, ok, _ := store.LookupChecksums(changed); ok {
		t.Fatal("modified file must miss")
	}
	otherKind := key
	otherKind.Kind = media.KindDiscTrack
	if _, ok, _ := store.LookupChecksums(otherKind); ok {
		t.Fatal("a different image kind must miss")
	}

	if err := store.StoreChecksums(changed, media.Checksums{CRC32: 1, SHA1: "00"}); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.Count(context.Background()); n != 1 {
		t.Fatalf("expected replacement in place, got %d rows", n)
	}
}

func TestSectorSizeSeparatesTrackRows(t *testing.T) {
	store := openStore(t)
	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "track.bin"), make([]byte, 2352))
	raw := keyFor(t, path, media.KindDiscTrack)
	raw.SectorSize = 2352
	flat := raw
	flat.SectorSize = 2048

	if err := store.StoreChecksums(raw, media.Checksums{CRC32: 1, SHA1: "raw"}); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.LookupChecksums(flat); ok {
		t.Fatal("a different sector size must miss")
	}
	if err := store.StoreChecksums(flat, media.Checksums{CRC32: 2, SHA1: "flat"}); err != nil {
		t.Fatal(err)
	}
	got, ok, err := store.LookupChecksums(raw)
	if err != nil || !ok || got.SHA1 != "raw" {
		t.Fatalf("raw row = %+v, %v, %v", got, ok, err)
	}

	entries, err := store.List(context.Background())
	if err != nil || len(entries) != 2 {
		t.Fatalf("List = %d entries, %v", len(entries), err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if removed, err := store.Prune(context.Background()); err != nil || removed != 2 {
		t.Fatalf("Prune = %d, %v", removed, err)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "checksums.db")
	store, err := hashstore.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	key := media.FileKey{Path: "/x", Kind: media.KindPlainFile, Size: 1, ModTime: time.Unix(100, 5)}
	if err := store.StoreChecksums(key, media.Checksums{CRC32: 7, SHA1: "ab"}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := hashstore.Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if sums, ok, _ := reopened.LookupChecksums(key); !ok || sums.CRC32 != 7 {
		t.Fatalf("expected persisted row, got %+v ok=%v", sums, ok)
	}
}

func TestPruneRemovesStaleRows(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	kept := testsupport.WriteFile(t, filepath.Join(dir, "kept.bin"), []byte("kept"))
	changed := testsupport.WriteFile(t, filepath.Join(dir, "changed.bin"), []byte("before"))
	removed := testsupport.WriteFile(t, filepath.Join(dir, "removed.bin"), []byte("gone"))
	archive := testsupport.WriteZip(t, filepath.Join(dir, "set.zip"), testsupport.ZipMember{Name: "a.bin", Data: []byte("x")})

	for _, key := range []media.FileKey{
		keyFor(t, kept, media.KindPlainFile),
		keyFor(t, changed, media.KindPlainFile),
		keyFor(t, removed, media.KindPlainFile),
		{Path: archive + "#a.bin", Kind: media.KindArchiveEntry, Size: keyFor(t, archive, media.KindArchiveEntry).Size, ModTime: keyFor(t, archive, media.KindArchiveEntry).ModTime},
	} {
		if err := store.StoreChecksums(key, media.Checksums{SHA1: "00"}); err != nil {
			t.Fatal(err)
		}
	}

	testsupport.WriteFile(t, changed, []byte("after, longer"))
	if err := os.Remove(removed); err != nil {
		t.Fatal(err)
	}

	n, err := store.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pruned rows, got %d", n)
	}
	entries, _ := store.List(ctx)
	if len(entries) != 2 {
		t.Fatalf("expected 2 remaining rows, got %d", len(entries))
	}

	cleared, err := store.Clear(ctx)
	if err != nil || cleared != 2 {
		t.Fatalf("Clear = %d, %v", cleared, err)
	}
}

func TestChecksumCacheWithMedia(t *testing.T) {
	store := openStore(t)
	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "game.bin"), testsupport.Pattern(4096))

	first, err := media.Open(path, media.Options{Cache: store})
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	crc, err := first.CRC32()
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := store.Count(context.Background()); n != 1 {
		t.Fatalf("expected checksum row after hashing, got %d", n)
	}

	second, err := media.Open(path, media.Options{Cache: store})
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if again, err := second.CRC32(); err != nil || again != crc {
		t.Fatalf("cached CRC32 = %08x, %v; want %08x", again, err, crc)
	}
}
