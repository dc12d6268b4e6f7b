package gcz

import (
	"fmt"
	"io"

	"romident/internal/binio"
	"romident/internal/errkind"
)

const (
	// HeaderSize is the fixed GCZ header length.
	HeaderSize = 32
	// Magic identifies a GCZ file.
	Magic uint32 = 0xB10BC001

	pointerSize      = 8
	hashSize         = 4
	uncompressedFlag = uint64(1) << 63
)

// Header is the fixed 32-byte GCZ header.
type Header struct {
	Magic          uint32
	SubType        uint32
	CompressedSize uint64
	DataSize       uint64
	BlockSize      uint32
	BlockCount     uint32
}

// Layout is a parsed header plus the block pointer table.
type Layout struct {
	Header
	Pointers  []uint64
	DataStart int64
}

// CorruptImageError reports a header or pointer table that cannot describe a
// valid image.
type CorruptImageError struct {
	Reason string
}

func (e *CorruptImageError) Error() string { return "corrupt gcz image: " + e.Reason }

func (e *CorruptImageError) Unwrap() error { return errkind.ErrCorruptImage }

func (e *CorruptImageError) ErrorKind() string { return "corrupt" }

func corrupt(format string, args ...any) error {
	return &CorruptImageError{Reason: fmt.Sprintf(format, args...)}
}

func parseHeader(buf []byte) (Header, error) {
	var h Header
	c := binio.NewCursor(buf)
	var err error
	if h.Magic, err = c.Uint32LE(); err != nil {
		return h, corrupt("header: %v", err)
	}
	if h.SubType, err = c.Uint32LE(); err != nil {
		return h, corrupt("header: %v", err)
	}
	if h.CompressedSize, err = c.Uint64LE(); err != nil {
		return h, corrupt("header: %v", err)
	}
	if h.DataSize, err = c.Uint64LE(); err != nil {
		return h, corrupt("header: %v", err)
	}
	if h.BlockSize, err = c.Uint32LE(); err != nil {
		return h, corrupt("header: %v", err)
	}
	if h.BlockCount, err = c.Uint32LE(); err != nil {
		return h, corrupt("header: %v", err)
	}
	return h, nil
}

// ReadLayout parses the header and pointer table of a GCZ image of fileSize
// bytes and validates them against the file length. Block pointers must be
// non-decreasing and stay within the compressed data region.
func ReadLayout(r io.ReaderAt, fileSize int64) (*Layout, error) {
	if fileSize < HeaderSize {
		return nil, corrupt("file is %d bytes, shorter than the %d-byte header", fileSize, HeaderSize)
	}
	buf := make([]byte, HeaderSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, corrupt("read header: %v", err)
	}
	h, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}
	if h.Magic != Magic {
		return nil, corrupt("bad magic %#08x", h.Magic)
	}
	if h.BlockSize == 0 {
		return nil, corrupt("block size is zero")
	}

	n := int64(h.BlockCount)
	dataStart := int64(HeaderSize) + pointerSize*n + hashSize*n
	if dataStart > fileSize {
		return nil, corrupt("block count %d needs %d bytes of tables, file is %d bytes", n, dataStart, fileSize)
	}
	if h.CompressedSize > uint64(fileSize-dataStart) {
		return nil, corrupt("compressed size %d exceeds data region of %d bytes", h.CompressedSize, fileSize-dataStart)
	}
	bs := uint64(h.BlockSize)
	if want := (h.DataSize + bs - 1) / bs; want != uint64(n) {
		return nil, corrupt("block count %d inconsistent with data size %d and block size %d", n, h.DataSize, bs)
	}

	table := make([]byte, pointerSize*n)
	if n > 0 {
		if _, err := r.ReadAt(table, HeaderSize); err != nil {
			return nil, corrupt("read pointer table: %v", err)
		}
	}
	c := binio.NewCursor(table)
	pointers := make([]uint64, n)
	var prev uint64
	for i := range pointers {
		if pointers[i], err = c.Uint64LE(); err != nil {
			return nil, corrupt("pointer %d: %v", i, err)
		}
		offset := pointers[i] &^ uncompressedFlag
		if offset > h.CompressedSize {
			return nil, corrupt("block %d pointer %d beyond compressed size %d", i, offset, h.CompressedSize)
		}
		if offset < prev {
			return nil, corrupt("block %d pointer %d before block %d start %d", i, offset, i-1, prev)
		}
		prev = offset
	}

	return &Layout{Header: h, Pointers: pointers, DataStart: dataStart}, nil
}

// blockSpan returns the data-region offset and compressed length of block i,
// and whether it is stored verbatim. The flag bit and inferred length are not
// cross-checked.
func (l *Layout) blockSpan(i int) (offset, length uint64, stored bool, err error) {
	ptr := l.Pointers[i]
	offset = ptr &^ uncompressedFlag
	stored = ptr&uncompressedFlag != 0
	end := l.CompressedSize
	if i+1 < len(l.Pointers) {
		end = l.Pointers[i+1] &^ uncompressedFlag
	}
	if end < offset {
		return 0, 0, false, corrupt("block %d pointer %d beyond next block start %d", i, offset, end)
	}
	return offset, end - offset, stored, nil
}

// blockLen is the decoded length of block i; only the final block may be short.
func (l *Layout) blockLen(i int) int {
	bs := uint64(l.BlockSize)
	start := uint64(i) * bs
	return int(min(bs, l.DataSize-start))
}
