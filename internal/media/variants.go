package media

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/mmap"

	"romident/internal/gcz"
	"romident/internal/sector"
)

// PlainFile is an uncompressed file read through a read-only memory map.
type PlainFile struct {
	readable
}

func (*PlainFile) isImage() {}

func newPlainFile(path string, opts Options) *PlainFile {
	return &PlainFile{readable: newReadable(path, path, KindPlainFile, opts, func() (io.ReaderAt, int64, io.Closer, error) {
		return openMapped(path)
	})}
}

func openMapped(path string) (io.ReaderAt, int64, io.Closer, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("map %s: %w", path, err)
	}
	return m, int64(m.Len()), m, nil
}

// DiscTrack is an optical-disc data track whose cooked byte stream is
// reconstructed from sector-interleaved raw data.
type DiscTrack struct {
	readable
	SectorSize int64
	// Mode is the cue track mode ("MODE1", "MODE2"); empty for bare images.
	Mode string
}

func (*DiscTrack) isImage() {}

func newDiscTrack(path string, sectorSize int64, mode string, opts Options) *DiscTrack {
	t := &DiscTrack{SectorSize: sectorSize, Mode: strings.ToUpper(mode)}
	t.readable = newReadable(path, path, KindDiscTrack, opts, t.openTrack)
	t.readable.sectorSize = sectorSize
	return t
}

// Geometry resolves the track's sector size. Only Mode-1 layouts are known;
// Mode-2 tracks fail with UnsupportedGeometryError whatever their size.
func (t *DiscTrack) Geometry() (sector.Geometry, error) {
	if t.Mode != "" && t.Mode != "MODE1" {
		return sector.Geometry{}, &sector.UnsupportedGeometryError{SectorSize: t.SectorSize}
	}
	return sector.ForSectorSize(t.SectorSize)
}

func (t *DiscTrack) openTrack() (io.ReaderAt, int64, io.Closer, error) {
	g, err := t.Geometry()
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%s: %w", t.path, err)
	}
	raw, rawSize, closer, err := openMapped(t.path)
	if err != nil {
		return nil, 0, nil, err
	}
	track, err := sector.NewTrackReader(raw, g, rawSize)
	if err != nil {
		closer.Close()
		return nil, 0, nil, err
	}
	return track, track.Size(), closer, nil
}

// BlockImage is a GCZ compressed block image.
type BlockImage struct {
	readable
}

func (*BlockImage) isImage() {}

func newBlockImage(path string, opts Options) *BlockImage {
	return &BlockImage{readable: newReadable(path, path, KindBlockImage, opts, func() (io.ReaderAt, int64, io.Closer, error) {
		r, err := gcz.Open(path, gcz.Options{BlockCacheEntries: opts.BlockCacheEntries, Logger: opts.Logger})
		if err != nil {
			return nil, 0, nil, err
		}
		return r, r.Size(), r, nil
	})}
}
