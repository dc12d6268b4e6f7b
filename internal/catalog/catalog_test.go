package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"romident/internal/catalog"
	"romident/internal/errkind"
	"romident/internal/testsupport"
)

const sampleDAT = `clrmamepro (
	name "Nintendo - Super Nintendo"
	description "Nintendo - Super Nintendo Entertainment System"
	version 20240101
)

game (
	name "Super Game (USA)"
	description "Super Game (USA)"
	serial "SNS-SG-USA"
	rom ( name "Super Game (USA).sfc" size 1048576 crc DEADBEEF sha1 0123456789ABCDEF0123456789ABCDEF01234567 )
)

game (
	name "Super Game (Europe)"
	cloneof "Super Game (USA)"
	rom (
		name "Super Game (Europe).sfc"
		size 1048576
		crc 12345678
		flags baddump
	)
)

game ( name "Missing Dump (Japan)" rom ( name "missing.sfc" size 512 status nodump ) )

game (
	name "Disc Game (USA)"
	disk ( name "Disc Game (USA)" sha1 ABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD )
)
`

func TestParseDAT(t *testing.T) {
	db, err := catalog.ParseDAT(strings.NewReader(sampleDAT), "snes.dat")
	if err != nil {
		t.Fatalf("ParseDAT: %v", err)
	}
	if db.Name != "Nintendo - Super Nintendo" {
		t.Fatalf("name = %q", db.Name)
	}
	if db.Len() != 4 {
		t.Fatalf("records = %d", db.Len())
	}

	records := db.Records()
	usa := records[0]
	if usa.Serial != "SNS-SG-USA" || len(usa.Parts) != 1 {
		t.Fatalf("unexpected USA record: %+v", usa)
	}
	seg := usa.Parts[0].DataAreas[0].Segments[0]
	if !seg.HasCRC || seg.CRC32 != 0xDEADBEEF || seg.Size != 1048576 {
		t.Fatalf("unexpected segment: %+v", seg)
	}
	if seg.SHA1 != "0123456789abcdef0123456789abcdef01234567" {
		t.Fatalf("sha1 should be lowercased, got %s", seg.SHA1)
	}

	europe := records[1]
	if europe.Parent != "Super Game (USA)" || europe.Description != "Super Game (Europe)" {
		t.Fatalf("unexpected Europe record: %+v", europe)
	}
	if got := europe.Parts[0].DataAreas[0].Segments[0]; got.Status != catalog.StatusBadDump || got.CRC32 != 0x12345678 {
		t.Fatalf("multi-line rom parsed as %+v", got)
	}

	if records[2].Parts[0].DataAreas[0].Segments[0].Usable() {
		t.Fatal("nodump segment must not be usable")
	}
	if disk := records[3].Parts[0].DiskAreas[0].Disks[0]; disk.SHA1 != strings.Repeat("abcdef", 6)+"abcd" {
		t.Fatalf("disk sha1 = %s", disk.SHA1)
	}

	if rec, ok := db.LookupCRC(0xDEADBEEF); !ok || rec != usa {
		t.Fatal("LookupCRC did not find USA record")
	}
	if rec, ok := db.LookupSerial("sns-sg-usa"); !ok || rec != usa {
		t.Fatal("LookupSerial should be case-insensitive")
	}
	if rec, ok := db.LookupSHA1(strings.ToUpper(records[3].Parts[0].DiskAreas[0].Disks[0].SHA1)); !ok || rec != records[3] {
		t.Fatal("LookupSHA1 did not find disc record")
	}

	stats := db.Stats()
	if stats.Records != 4 || stats.Segments != 3 || stats.Disks != 1 || stats.Unusable != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestParseDATErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		line int
	}{
		{"unterminated quote", "game (\n\tname \"Broken\n)\n", 2},
		{"bad crc", "game (\n\tname \"x\"\n\trom ( name x size 1 crc ZZZZ )\n)\n", 3},
		{"bad size", "game (\n\trom (\n\t\tname x\n\t\tsize -4\n\t)\n)\n", 2},
		{"eof inside game", "game (\n\tname \"x\"\n", 2},
		{"stray token", "name \"x\"\n", 1},
		{"missing value", "game (\n\tname\n)\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.ParseDAT(strings.NewReader(tt.body), "bad.dat")
			if !errors.Is(err, errkind.ErrCatalogParse) {
				t.Fatalf("expected catalog parse error, got %v", err)
			}
			var parseErr *catalog.ParseError
			if !errors.As(err, &parseErr) || parseErr.Line != tt.line || parseErr.Path != "bad.dat" {
				t.Fatalf("unexpected parse error detail: %#v", parseErr)
			}
			if errkind.Fatal(err) {
				t.Fatal("catalog errors are recoverable")
			}
		})
	}
}

func TestLoadLatin1DAT(t *testing.T) {
	body := []byte("game (\n\tname \"Pok\xe9 Game\"\n\trom ( name a size 1 crc 00000001 )\n)\n")
	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "latin.dat"), body)

	db, err := catalog.Load(path, catalog.LoadOptions{Encoding: catalog.EncodingLatin1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := db.Records()[0].Name; got != "Poké Game" {
		t.Fatalf("name = %q", got)
	}
	if db.Name != "latin" {
		t.Fatalf("catalog name should fall back to file name, got %q", db.Name)
	}
}

const sampleSoftwareList = `<?xml version="1.0"?>
<!DOCTYPE softwarelist SYSTEM "softwarelist.dtd">
<softwarelist name="snes" description="Nintendo SNES cartridges">
	<software name="supergame">
		<description>Super Game (USA)</description>
		<year>1994</year>
		<publisher>Example Soft</publisher>
		<info name="serial" value="SNS-SG-USA"/>
		<part name="cart" interface="snes_cart">
			<dataarea name="rom" size="0x300">
				<rom name="sg-lo.bin" size="256" crc="11111111" sha1="1111111111111111111111111111111111111111" offset="0x000"/>
				<rom size="256" offset="0x100" loadflag="continue"/>
				<rom name="sg-hi.bin" size="512" crc="22222222" offset="100"/>
			</dataarea>
		</part>
	</software>
	<software name="supergamee" cloneof="supergame">
		<description>Super Game (Europe)</description>
		<part name="cdrom" interface="cdrom">
			<diskarea name="cdrom">
				<disk name="supergamee" sha1="ABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD" status="baddump"/>
			</diskarea>
		</part>
	</software>
</softwarelist>
`

func TestParseSoftwareList(t *testing.T) {
	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "snes.xml"), []byte("\ufeff"+sampleSoftwareList))
	db, err := catalog.Load(path, catalog.LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if db.Name != "snes" || db.Convention != catalog.ConventionName || db.Len() != 2 {
		t.Fatalf("unexpected database %q %s %d", db.Name, db.Convention, db.Len())
	}
	rec, ok := db.LookupName("supergame")
	if !ok || rec.Serial != "SNS-SG-USA" || rec.Year != "1994" || rec.Publisher != "Example Soft" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	area := rec.Parts[0].DataAreas[0]
	if area.Size != 0x300 || len(area.Segments) != 2 {
		t.Fatalf("unexpected data area: %+v", area)
	}
	if area.Segments[1].Offset != 0x100 || area.Segments[1].Size != 512 {
		t.Fatalf("unexpected second segment: %+v", area.Segments[1])
	}
	clone, _ := db.LookupName("supergamee")
	if clone.Parent != "supergame" || clone.Parts[0].DiskAreas[0].Disks[0].Status != catalog.StatusBadDump {
		t.Fatalf("unexpected clone: %+v", clone)
	}
}

func TestParseDatafileXML(t *testing.T) {
	body := `<?xml version="1.0" encoding="ISO-8859-1"?>
<datafile>
	<header><name>Sega - Mega Drive</name></header>
	<game name="Sonic (World)">
		<description>Sonic (World)</description>
		<rom name="Sonic (World).md" size="524288" crc="f9394e97"/>
	</game>
</datafile>`
	db, err := catalog.ParseSoftwareList(strings.NewReader(body), "md.xml")
	if err != nil {
		t.Fatalf("ParseSoftwareList: %v", err)
	}
	if db.Name != "Sega - Mega Drive" || db.Convention != catalog.ConventionChecksum {
		t.Fatalf("unexpected database %q %s", db.Name, db.Convention)
	}
	if _, ok := db.LookupCRC(0xf9394e97); !ok {
		t.Fatal("datafile rom not indexed")
	}
}

func TestParseSoftwareListErrors(t *testing.T) {
	for name, body := range map[string]string{
		"syntax":       "<softwarelist><software name=\"x\">",
		"bad crc":      `<softwarelist><software name="x"><part name="p"><dataarea name="rom"><rom name="a" crc="xyz"/></dataarea></part></software></softwarelist>`,
		"unknown root": "<catalog/>",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.ParseSoftwareList(strings.NewReader(body), "bad.xml")
			if !errors.Is(err, errkind.ErrCatalogParse) {
				t.Fatalf("expected catalog parse error, got %v", err)
			}
		})
	}
}

func TestMergeFirstWriterWins(t *testing.T) {
	first, err := catalog.ParseDAT(strings.NewReader(testsupport.DAT("a",
		testsupport.DATGame("Game (USA)", testsupport.DATRom("game.bin", 16, 0xCAFEBABE)),
	)), "a.dat")
	if err != nil {
		t.Fatal(err)
	}
	second, err := catalog.ParseDAT(strings.NewReader(testsupport.DAT("b",
		"game (\n\tname \"Game (USA) [alt name]\"\n\tdescription \"Other\"\n\tyear 1999\n"+testsupport.DATRom("game.bin", 16, 0xCAFEBABE)+"\n)\n",
		testsupport.DATGame("Other (Japan)", testsupport.DATRom("other.bin", 16, 0x00000042)),
	)), "b.dat")
	if err != nil {
		t.Fatal(err)
	}

	merged := catalog.Merge("system", first, second)
	if merged.Len() != 2 {
		t.Fatalf("records = %d", merged.Len())
	}
	rec, _ := merged.LookupCRC(0xCAFEBABE)
	if rec.Name != "Game (USA)" || rec.Description != "Game (USA)" {
		t.Fatalf("first source values must win: %+v", rec)
	}
	if rec.Year != "1999" {
		t.Fatalf("empty fields should be filled from later sources, year = %q", rec.Year)
	}
	if len(merged.Sources) != 2 {
		t.Fatalf("sources = %v", merged.Sources)
	}
	if orig, _ := first.LookupCRC(0xCAFEBABE); orig.Year != "" {
		t.Fatal("merge must not modify its inputs")
	}
}

func TestSharedTrackKeepsGamesDistinct(t *testing.T) {
	db, err := catalog.ParseDAT(strings.NewReader(testsupport.DAT("discs",
		testsupport.DATGame("Game A",
			testsupport.DATRom("a (track 1).bin", 16, 0x11111111),
			testsupport.DATRom("silence.bin", 16, 0x22222222),
		),
		testsupport.DATGame("Game B",
			testsupport.DATRom("b (track 1).bin", 16, 0x33333333),
			testsupport.DATRom("silence.bin", 16, 0x22222222),
		),
	)), "discs.dat")
	if err != nil {
		t.Fatal(err)
	}
	if db.Len() != 2 {
		t.Fatalf("records = %d", db.Len())
	}
	for crc, want := range map[uint32]string{0x11111111: "Game A", 0x33333333: "Game B", 0x22222222: "Game A"} {
		rec, ok := db.LookupCRC(crc)
		if !ok || rec.Name != want {
			t.Fatalf("LookupCRC(%08x) = %+v, %v; want %s", crc, rec, ok, want)
		}
	}
	if b := db.Records()[1]; len(b.Parts) != 2 {
		t.Fatalf("Game B parts = %d", len(b.Parts))
	}

	again, err := catalog.ParseDAT(strings.NewReader(testsupport.DAT("more",
		testsupport.DATGame("Game B (alt)",
			testsupport.DATRom("silence.bin", 16, 0x22222222),
			testsupport.DATRom("b (track 1).bin", 16, 0x33333333),
		),
	)), "more.dat")
	if err != nil {
		t.Fatal(err)
	}
	merged := catalog.Merge("discs", db, again)
	if merged.Len() != 2 {
		t.Fatalf("same crc set should merge into one record, records = %d", merged.Len())
	}
	if rec, _ := merged.LookupCRC(0x33333333); rec.Name != "Game B" {
		t.Fatalf("first source should keep its name, got %q", rec.Name)
	}
}

func TestRepositoryCachesAndInvalidates(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WriteFile(t, filepath.Join(dir, "a.dat"), []byte(testsupport.DAT("a",
		testsupport.DATGame("One", testsupport.DATRom("one.bin", 1, 1)),
	)))
	repo := catalog.NewRepository(catalog.LoadOptions{}, nil)

	first, err := repo.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	again, err := repo.Load(path)
	if err != nil || again != first {
		t.Fatal("expected cached database")
	}

	testsupport.WriteFile(t, path, []byte(testsupport.DAT("a",
		testsupport.DATGame("One", testsupport.DATRom("one.bin", 1, 1)),
		testsupport.DATGame("Two", testsupport.DATRom("two.bin", 1, 2)),
	)))
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	updated, err := repo.Load(path)
	if err != nil || updated == first || updated.Len() != 2 {
		t.Fatalf("expected rebuilt database, got %v (len %d)", err, updated.Len())
	}

	repo.Reload()
	if len(repo.Cached()) != 0 {
		t.Fatal("Reload should drop cached catalogs")
	}
}

func TestRepositoryLoadDirSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "1-good.dat"), []byte(testsupport.DAT("good",
		testsupport.DATGame("Good", testsupport.DATRom("good.bin", 4, 0xAAAAAAAA)),
	)))
	testsupport.WriteFile(t, filepath.Join(dir, "2-broken.dat"), []byte("game (\n\tname \"oops\n"))
	testsupport.WriteFile(t, filepath.Join(dir, "3-more.xml"), []byte(sampleSoftwareList))
	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), []byte("ignored"))

	repo := catalog.NewRepository(catalog.LoadOptions{}, nil)
	db, err := repo.LoadDir(dir)
	if !errors.Is(err, errkind.ErrCatalogParse) {
		t.Fatalf("expected joined parse error, got %v", err)
	}
	if db == nil || db.Len() != 3 {
		t.Fatalf("expected 3 records from the readable files, got %v", db)
	}
	if db.Name != filepath.Base(dir) {
		t.Fatalf("name = %q", db.Name)
	}
	if _, ok := db.LookupCRC(0xAAAAAAAA); !ok {
		t.Fatal("good catalog missing from merge")
	}

	again, _ := repo.LoadDir(dir)
	if again != db {
		t.Fatal("unchanged directory should reuse the merged database")
	}

	dbs, err := repo.LoadSources([]string{dir, filepath.Join(dir, "missing")}, []string{filepath.Join(dir, "1-good.dat")})
	if err == nil || len(dbs) != 2 {
		t.Fatalf("LoadSources = %d dbs, %v", len(dbs), err)
	}
}
