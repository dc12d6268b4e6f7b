package identification_test

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"path/filepath"
	"strings"
	"testing"

	"romident/internal/catalog"
	"romident/internal/errkind"
	"romident/internal/identification"
	"romident/internal/logging"
	"romident/internal/media"
	"romident/internal/testsupport"
)

func parseDAT(t *testing.T, name string, games ...string) *catalog.Database {
	t.Helper()
	db, err := catalog.ParseDAT(strings.NewReader(testsupport.DAT(name, games...)), name+".dat")
	if err != nil {
		t.Fatalf("ParseDAT: %v", err)
	}
	return db
}

func openImage(t *testing.T, path string) media.Image {
	t.Helper()
	img, err := media.Open(path, media.Options{})
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	t.Cleanup(func() { img.Close() })
	return img
}

func TestExactSingleSegmentCRC(t *testing.T) {
	db := parseDAT(t, "snes", testsupport.DATGame("Dead Beef (USA)", testsupport.DATRom("beef.sfc", 4, 0xDEADBEEF)))
	engine := identification.NewEngine(identification.Options{})

	result, err := engine.Match(context.Background(), identification.MatchQuery{CRC32: 0xDEADBEEF, HasCRC: true}, []*catalog.Database{db})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !result.Matched || result.Record.Name != "Dead Beef (USA)" || result.Phase != identification.PhaseExact || result.Catalog != "snes" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.CorrelationID == "" {
		t.Fatal("expected a correlation id")
	}

	result, err = engine.Match(context.Background(), identification.MatchQuery{CRC32: 0xDEADBEF0, HasCRC: true}, []*catalog.Database{db})
	if err != nil || result.Matched {
		t.Fatalf("expected no match, got %+v, %v", result, err)
	}
}

func TestExactPrefersSHA1(t *testing.T) {
	game := "game (\n\tname \"Game\"\n\trom ( name g size 4 crc 00000010 sha1 " + strings.Repeat("a", 40) + " )\n)\n"
	db := parseDAT(t, "sys", game)
	q := identification.MatchQuery{CRC32: 0x10, HasCRC: true, SHA1: strings.Repeat("b", 40)}

	preferSHA1 := identification.NewEngine(identification.Options{PreferSHA1: true})
	if result, _ := preferSHA1.Match(context.Background(), q, []*catalog.Database{db}); result.Matched {
		t.Fatal("SHA1 mismatch must win over CRC32 agreement when preferred")
	}
	crcOnly := identification.NewEngine(identification.Options{})
	if result, _ := crcOnly.Match(context.Background(), q, []*catalog.Database{db}); !result.Matched {
		t.Fatal("CRC32 comparison should match when SHA1 is not preferred")
	}
	shaOnly := identification.MatchQuery{SHA1: strings.Repeat("a", 40)}
	if result, _ := crcOnly.Match(context.Background(), shaOnly, []*catalog.Database{db}); !result.Matched {
		t.Fatal("SHA1 should be compared when it is the only shared checksum")
	}
}

func TestSelfMatchUniqueness(t *testing.T) {
	var games []string
	for i := range 20 {
		games = append(games, testsupport.DATGame(fmt.Sprintf("Game %02d (USA)", i), testsupport.DATRom("g.bin", 16, uint32(0x1000+i*7919))))
	}
	db := parseDAT(t, "sys", games...)
	engine := identification.NewEngine(identification.Options{})

	for _, rec := range db.Records() {
		seg := rec.Parts[0].DataAreas[0].Segments[0]
		q := identification.MatchQuery{CRC32: seg.CRC32, HasCRC: true, Size: seg.Size, HasSize: true}
		result, err := engine.Match(context.Background(), q, []*catalog.Database{db})
		if err != nil {
			t.Fatal(err)
		}
		if !result.Matched || result.Record != rec {
			t.Fatalf("record %q matched %+v", rec.Name, result.Record)
		}
	}
}

func TestCatalogOrderDecidesFirstMatch(t *testing.T) {
	first := parseDAT(t, "first", testsupport.DATGame("From First", testsupport.DATRom("a", 1, 0x42)))
	second := parseDAT(t, "second", testsupport.DATGame("From Second", testsupport.DATRom("a", 1, 0x42)))
	engine := identification.NewEngine(identification.Options{})
	q := identification.MatchQuery{CRC32: 0x42, HasCRC: true}

	result, _ := engine.Match(context.Background(), q, []*catalog.Database{second, first})
	if result.Catalog != "second" {
		t.Fatalf("expected caller order to win, got %s", result.Catalog)
	}
}

func multiSegmentCatalog(t *testing.T, segments [][]byte) *catalog.Database {
	t.Helper()
	var roms strings.Builder
	var offset int
	for i, seg := range segments {
		fmt.Fprintf(&roms, "<rom name=\"chip%d.bin\" size=\"%d\" crc=\"%08x\" offset=\"%x\"/>\n", i, len(seg), crc32.ChecksumIEEE(seg), offset)
		offset += len(seg)
	}
	body := fmt.Sprintf(`<softwarelist name="cart">
<software name="multichip"><description>Multi Chip (World)</description>
<part name="cart"><dataarea name="rom" size="%d">
%s</dataarea></part></software>
</softwarelist>`, offset, roms.String())
	db, err := catalog.ParseSoftwareList(strings.NewReader(body), "cart.xml")
	if err != nil {
		t.Fatalf("ParseSoftwareList: %v", err)
	}
	return db
}

func TestSharedTrackDoesNotHideGame(t *testing.T) {
	db := parseDAT(t, "discs",
		testsupport.DATGame("Game A",
			testsupport.DATRom("a.bin", 16, 0x11111111),
			testsupport.DATRom("silence.bin", 16, 0x22222222),
		),
		testsupport.DATGame("Game B",
			testsupport.DATRom("b.bin", 16, 0x33333333),
			testsupport.DATRom("silence.bin", 16, 0x22222222),
		),
	)
	engine := identification.NewEngine(identification.Options{})
	result, err := engine.Match(context.Background(), identification.MatchQuery{CRC32: 0x33333333, HasCRC: true}, []*catalog.Database{db})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !result.Matched || result.Record.Name != "Game B" {
		t.Fatalf("expected Game B, got %+v", result)
	}
}

func TestMultiSegmentMatch(t *testing.T) {
	segments := [][]byte{testsupport.Pattern(256), bytes.Repeat([]byte{0x5A}, 512), testsupport.Pattern(128)}
	db := multiSegmentCatalog(t, segments)
	dir := t.TempDir()
	good := testsupport.WriteFile(t, filepath.Join(dir, "good.bin"), bytes.Join(segments, nil))

	engine := identification.NewEngine(identification.Options{PreferSHA1: true})
	result, err := engine.Identify(context.Background(), openImage(t, good), []*catalog.Database{db}, "")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if !result.Matched || result.Record.Name != "multichip" {
		t.Fatalf("expected multi-segment match, got %+v", result)
	}

	for _, idx := range []int{256, 256 + 511, 256 + 512 + 64} {
		mutated := bytes.Join(segments, nil)
		mutated[idx] ^= 0xFF
		path := testsupport.WriteFile(t, filepath.Join(dir, fmt.Sprintf("bad-%d.bin", idx)), mutated)
		result, err := engine.Identify(context.Background(), openImage(t, path), []*catalog.Database{db}, "")
		if err != nil {
			t.Fatalf("Identify: %v", err)
		}
		if result.Matched {
			t.Fatalf("byte %d mutated but part still matched", idx)
		}
	}

	short := testsupport.WriteFile(t, filepath.Join(dir, "short.bin"), bytes.Join(segments, nil)[:700])
	if result, _ := engine.Identify(context.Background(), openImage(t, short), []*catalog.Database{db}, ""); result.Matched {
		t.Fatal("size mismatch must fail the part")
	}
}

func TestDiskOnlyPartMatchesCHD(t *testing.T) {
	sum := bytes.Repeat([]byte{0xC0, 0xFF, 0xEE, 0x01}, 5)
	body := fmt.Sprintf(`<softwarelist name="cd"><software name="disc"><description>Disc (USA)</description>
<part name="cdrom"><diskarea name="cdrom"><disk name="disc" sha1="%s"/></diskarea></part></software></softwarelist>`,
		strings.ToUpper(hex.EncodeToString(sum)))
	db, err := catalog.ParseSoftwareList(strings.NewReader(body), "cd.xml")
	if err != nil {
		t.Fatal(err)
	}
	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "disc.chd"), testsupport.CHDHeader(4, sum))

	result, err := identification.Identify(context.Background(), openImage(t, path), []*catalog.Database{db})
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if !result.Matched || result.Record.Name != "disc" || result.Query.HasCRC {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestFolderDefersToFirstImage(t *testing.T) {
	dir := t.TempDir()
	disc1 := []byte("disc one contents")
	testsupport.WriteFile(t, filepath.Join(dir, "set", "1.bin"), disc1)
	testsupport.WriteFile(t, filepath.Join(dir, "set", "2.bin"), []byte("disc two contents"))
	sum := sha1.Sum(disc1)
	game := fmt.Sprintf("game (\n\tname \"Set\"\n\trom ( name 1.bin size %d crc %08x sha1 %x )\n)\n", len(disc1), crc32.ChecksumIEEE(disc1), sum)
	db := parseDAT(t, "sys", game)

	result, err := identification.Identify(context.Background(), openImage(t, filepath.Join(dir, "set")), []*catalog.Database{db})
	if err != nil || !result.Matched {
		t.Fatalf("expected folder match, got %+v, %v", result, err)
	}

	empty := openImage(t, t.TempDir())
	result, err = identification.Identify(context.Background(), empty, []*catalog.Database{db})
	if err != nil || result.Matched {
		t.Fatalf("empty folder should be no match, got %+v, %v", result, err)
	}
}

func TestGeometryErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "t.bin"), make([]byte, 2336))
	cue := testsupport.WriteFile(t, filepath.Join(dir, "t.cue"), []byte("FILE \"t.bin\" BINARY\nTRACK 01 MODE2/2336\n"))

	_, err := identification.Identify(context.Background(), openImage(t, cue), nil)
	if !errors.Is(err, errkind.ErrUnsupportedGeometry) || !errkind.Fatal(err) {
		t.Fatalf("expected fatal geometry error, got %v", err)
	}
}

func TestCorrelationIDFromContextIsKept(t *testing.T) {
	ctx := logging.WithCorrelationID(context.Background(), "fixed-id")
	result, err := identification.NewEngine(identification.Options{}).Match(ctx, identification.MatchQuery{}, nil)
	if err != nil || result.CorrelationID != "fixed-id" {
		t.Fatalf("correlation id = %q, %v", result.CorrelationID, err)
	}
}

type fakeMatchCache struct {
	catalogName, record string
	hit                 bool
	stored              []string
}

func (f *fakeMatchCache) LookupMatch(uint32) (string, string, bool) {
	return f.catalogName, f.record, f.hit
}

func (f *fakeMatchCache) StoreMatch(crc uint32, catalogName, record, _ string, _ int64) error {
	f.stored = append(f.stored, fmt.Sprintf("%08x:%s:%s", crc, catalogName, record))
	return nil
}

func TestMatchCache(t *testing.T) {
	db := parseDAT(t, "sys",
		testsupport.DATGame("Alpha", testsupport.DATRom("a", 1, 0x01)),
		testsupport.DATGame("Beta", testsupport.DATRom("b", 1, 0x02)),
	)
	cache := &fakeMatchCache{}
	engine := identification.NewEngine(identification.Options{Cache: cache})
	q := identification.MatchQuery{CRC32: 0x02, HasCRC: true}

	result, _ := engine.Match(context.Background(), q, []*catalog.Database{db})
	if !result.Matched || result.Cached || len(cache.stored) != 1 || cache.stored[0] != "00000002:sys:Beta" {
		t.Fatalf("expected scan match stored in cache, got %+v / %v", result, cache.stored)
	}

	cache.catalogName, cache.record, cache.hit = "sys", "Beta", true
	result, _ = engine.Match(context.Background(), q, []*catalog.Database{db})
	if !result.Matched || !result.Cached || result.Record.Name != "Beta" {
		t.Fatalf("expected verified cache hit, got %+v", result)
	}

	// A stale hint that no longer verifies falls back to scanning.
	cache.record = "Alpha"
	result, _ = engine.Match(context.Background(), q, []*catalog.Database{db})
	if !result.Matched || result.Cached || result.Record.Name != "Beta" {
		t.Fatalf("stale cache entry should be ignored, got %+v", result)
	}
}

func TestMatchCacheHintKeepsCatalogOrder(t *testing.T) {
	first := parseDAT(t, "first", testsupport.DATGame("InFirst", testsupport.DATRom("a", 1, 0x05)))
	second := parseDAT(t, "second", testsupport.DATGame("InSecond", testsupport.DATRom("b", 1, 0x05)))
	cache := &fakeMatchCache{catalogName: "second", record: "InSecond", hit: true}
	engine := identification.NewEngine(identification.Options{Cache: cache})
	q := identification.MatchQuery{CRC32: 0x05, HasCRC: true}

	result, err := engine.Match(context.Background(), q, []*catalog.Database{first, second})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !result.Matched || result.Catalog != "first" || result.Record.Name != "InFirst" || result.Cached {
		t.Fatalf("earlier catalog must win over a cached hint, got %+v", result)
	}

	result, _ = engine.Match(context.Background(), q, []*catalog.Database{second, first})
	if !result.Matched || result.Catalog != "second" || !result.Cached {
		t.Fatalf("hint should apply when its catalog comes first, got %+v", result)
	}
}
