package sector

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadLogical reads length cooked bytes starting at offset. A range inside one
// sector is a single raw read; otherwise the partial first sector, each whole
// sector and the needed prefix of the final sector are read separately and
// concatenated.
func ReadLogical(r io.ReaderAt, g Geometry, offset, length int64) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("invalid range offset=%d length=%d", offset, length)
	}
	out := make([]byte, length)
	if length == 0 {
		return out, nil
	}

	first := offset / g.DataSize
	last := (offset + length - 1) / g.DataSize
	if first == last {
		raw, err := g.CookedToRaw(offset)
		if err != nil {
			return nil, err
		}
		if err := readFull(r, out, raw); err != nil {
			return nil, err
		}
		return out, nil
	}

	phys := g.PhysicalSize()
	pos := int64(0)

	head := g.DataSize - offset%g.DataSize
	raw, err := g.CookedToRaw(offset)
	if err != nil {
		return nil, err
	}
	if err := readFull(r, out[pos:pos+head], raw); err != nil {
		return nil, err
	}
	pos += head

	for s := first + 1; s < last; s++ {
		if err := readFull(r, out[pos:pos+g.DataSize], s*phys+g.HeaderSize); err != nil {
			return nil, err
		}
		pos += g.DataSize
	}

	if err := readFull(r, out[pos:], last*phys+g.HeaderSize); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadLogicalFile opens path and performs ReadLogical against it.
func ReadLogicalFile(path string, g Geometry, offset, length int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLogical(f, g, offset, length)
}

func readFull(r io.ReaderAt, dst []byte, off int64) error {
	n, err := r.ReadAt(dst, off)
	if n == len(dst) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("read %d bytes at raw offset %d: %w", len(dst), off, err)
}

// TrackReader exposes the cooked byte stream of a sector-interleaved track as
// an io.ReaderAt.
type TrackReader struct {
	raw      io.ReaderAt
	geometry Geometry
	size     int64
}

// NewTrackReader wraps raw, whose physical length is rawSize.
func NewTrackReader(raw io.ReaderAt, g Geometry, rawSize int64) (*TrackReader, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &TrackReader{raw: raw, geometry: g, size: g.CookedSize(rawSize)}, nil
}

// Size returns the cooked length of the track.
func (t *TrackReader) Size() int64 { return t.size }

// Geometry returns the sector layout in use.
func (t *TrackReader) Geometry() Geometry { return t.geometry }

// ReadAt implements io.ReaderAt over cooked offsets.
func (t *TrackReader) ReadAt(p []byte, off int64) (int, error) {
	if off >= t.size {
		return 0, io.EOF
	}
	n := int64(len(p))
	short := false
	if off+n > t.size {
		n = t.size - off
		short = true
	}
	data, err := ReadLogical(t.raw, t.geometry, off, n)
	if err != nil {
		return 0, err
	}
	copy(p, data)
	if short {
		return int(n), io.EOF
	}
	return int(n), nil
}
