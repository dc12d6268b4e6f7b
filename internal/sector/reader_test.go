package sector_test

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"romident/internal/sector"
	"romident/internal/testsupport"
)

func TestReadLogicalPassThrough(t *testing.T) {
	data := testsupport.Pattern(3 * 2048)
	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "track.iso"), data)

	got, err := sector.ReadLogicalFile(path, sector.Cooked, 10, 10)
	if err != nil {
		t.Fatalf("ReadLogicalFile: %v", err)
	}
	if !bytes.Equal(got, data[10:20]) {
		t.Fatalf("pass-through read mismatch: %x vs %x", got, data[10:20])
	}
}

func TestReadLogicalSpansSectorBoundary(t *testing.T) {
	g := sector.Mode1Raw
	cooked := testsupport.Pattern(2 * 2048)
	raw := testsupport.InterleaveSectors(cooked, 16, 288, 2048)

	got, err := sector.ReadLogical(bytes.NewReader(raw), g, 2040, 20)
	if err != nil {
		t.Fatalf("ReadLogical: %v", err)
	}
	want := append(append([]byte{}, cooked[2040:2048]...), cooked[2048:2060]...)
	if !bytes.Equal(got, want) {
		t.Fatalf("boundary read mismatch:\n got %x\nwant %x", got, want)
	}
	if !bytes.Equal(got[:8], raw[16+2040:16+2048]) {
		t.Fatal("first 8 bytes must come from the tail of sector 0 data")
	}
	if !bytes.Equal(got[8:], raw[2352+16:2352+16+12]) {
		t.Fatal("last 12 bytes must come from the head of sector 1 data")
	}
}

func TestReadLogicalNoSeam(t *testing.T) {
	g := sector.Mode1Raw
	cooked := testsupport.Pattern(5*2048 + 700)
	raw := testsupport.InterleaveSectors(cooked, 16, 288, 2048)
	r := bytes.NewReader(raw)

	ranges := [][2]int64{
		{0, 2048},
		{0, 2049},
		{100, 4000},
		{2047, 2},
		{2048, 4096},
		{1000, 5*2048 + 700 - 1000},
		{3*2048 + 5, 2048 + 600},
	}
	for _, rg := range ranges {
		offset, length := rg[0], rg[1]
		got, err := sector.ReadLogical(r, g, offset, length)
		if err != nil {
			t.Fatalf("ReadLogical(%d,%d): %v", offset, length, err)
		}
		if !bytes.Equal(got, cooked[offset:offset+length]) {
			t.Fatalf("ReadLogical(%d,%d) does not match cooked stream", offset, length)
		}

		// independently computed three-part read
		end := offset + length
		headEnd := min((offset/2048+1)*2048, end)
		tailStart := max(((end-1)/2048)*2048, headEnd)
		var stitched []byte
		for _, part := range [][2]int64{{offset, headEnd}, {headEnd, tailStart}, {tailStart, end}} {
			if part[1] <= part[0] {
				continue
			}
			chunk, err := sector.ReadLogical(r, g, part[0], part[1]-part[0])
			if err != nil {
				t.Fatalf("sub-read %v: %v", part, err)
			}
			stitched = append(stitched, chunk...)
		}
		if !bytes.Equal(got, stitched) {
			t.Fatalf("ReadLogical(%d,%d) differs from stitched sub-reads", offset, length)
		}
	}
}

func TestReadLogicalShortFile(t *testing.T) {
	raw := testsupport.InterleaveSectors(testsupport.Pattern(2048), 16, 288, 2048)
	_, err := sector.ReadLogical(bytes.NewReader(raw[:1000]), sector.Mode1Raw, 0, 2048)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
}

func TestTrackReader(t *testing.T) {
	cooked := testsupport.Pattern(2*2048 + 10)
	raw := testsupport.InterleaveSectors(cooked, 16, 288, 2048)
	// drop the padding of the final sector so the raw size ends mid-sector
	raw = raw[:2*2352+16+10]

	tr, err := sector.NewTrackReader(bytes.NewReader(raw), sector.Mode1Raw, int64(len(raw)))
	if err != nil {
		t.Fatalf("NewTrackReader: %v", err)
	}
	if tr.Size() != int64(len(cooked)) {
		t.Fatalf("Size = %d, want %d", tr.Size(), len(cooked))
	}
	got, err := io.ReadAll(io.NewSectionReader(tr, 0, tr.Size()))
	if err != nil {
		t.Fatalf("read track: %v", err)
	}
	if !bytes.Equal(got, cooked) {
		t.Fatal("track contents differ from cooked data")
	}
	buf := make([]byte, 20)
	n, err := tr.ReadAt(buf, tr.Size()-5)
	if n != 5 || !errors.Is(err, io.EOF) {
		t.Fatalf("ReadAt at tail = %d, %v", n, err)
	}
}
