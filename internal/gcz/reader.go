package gcz

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"log/slog"
	"os"

	arc "github.com/hashicorp/golang-lru/arc/v2"

	"romident/internal/errkind"
	"romident/internal/logging"
)

const defaultBlockCacheEntries = 16

// DecodeError reports a block whose contents could not be reconstructed.
type DecodeError struct {
	Block int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode gcz block %d: %v", e.Block, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{errkind.ErrDecode, e.Err} }

func (e *DecodeError) ErrorKind() string { return "decode" }

// Options configures a Reader.
type Options struct {
	// BlockCacheEntries is the number of decoded blocks kept in memory. Zero
	// selects the default; a negative value disables caching.
	BlockCacheEntries int
	Logger            *slog.Logger
}

// Reader serves decoded byte ranges of a GCZ image.
type Reader struct {
	src    io.ReaderAt
	closer io.Closer
	layout *Layout
	cache  *arc.ARCCache[int, []byte]
	logger *slog.Logger
}

// Open opens the GCZ image at path.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := NewReader(f, info.Size(), opts)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader parses the image held by src, which is fileSize bytes long.
func NewReader(src io.ReaderAt, fileSize int64, opts Options) (*Reader, error) {
	layout, err := ReadLayout(src, fileSize)
	if err != nil {
		return nil, err
	}
	logger := logging.NewComponentLogger(opts.Logger, "gcz")
	r := &Reader{src: src, layout: layout, logger: logger}

	entries := opts.BlockCacheEntries
	if entries == 0 {
		entries = defaultBlockCacheEntries
	}
	if entries > 0 {
		cache, err := arc.NewARC[int, []byte](entries)
		if err != nil {
			return nil, fmt.Errorf("create block cache: %w", err)
		}
		r.cache = cache
	}

	logger.Debug("gcz layout parsed",
		logging.Int("block_count", int(layout.BlockCount)),
		logging.Int("block_size", int(layout.BlockSize)),
		logging.Uint64("data_size", layout.DataSize),
		logging.Uint64("compressed_size", layout.CompressedSize))
	return r, nil
}

// Close releases the underlying file when the reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Layout returns the parsed header and pointer table.
func (r *Reader) Layout() *Layout { return r.layout }

// Size returns the decoded image size.
func (r *Reader) Size() int64 { return int64(r.layout.DataSize) }

// ReadRange returns length decoded bytes starting at offset. Ranges past the
// end of the image are clamped.
func (r *Reader) ReadRange(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("invalid range offset=%d length=%d", offset, length)
	}
	size := r.Size()
	if offset >= size || length == 0 {
		return []byte{}, nil
	}
	length = min(length, size-offset)

	bs := int64(r.layout.BlockSize)
	first := offset / bs
	last := (offset+length+bs-1)/bs - 1

	out := make([]byte, 0, length)
	for i := first; i <= last; i++ {
		block, err := r.block(int(i))
		if err != nil {
			return nil, err
		}
		blockStart := i * bs
		from := max(offset, blockStart) - blockStart
		to := min(offset+length, blockStart+bs) - blockStart
		out = append(out, block[from:to]...)
	}
	return out, nil
}

// ReadAt implements io.ReaderAt over the decoded image.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.Size() {
		return 0, io.EOF
	}
	data, err := r.ReadRange(off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *Reader) block(i int) ([]byte, error) {
	if r.cache != nil {
		if data, ok := r.cache.Get(i); ok {
			return data, nil
		}
	}
	data, err := r.decodeBlock(i)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Add(i, data)
	}
	return data, nil
}

func (r *Reader) decodeBlock(i int) ([]byte, error) {
	offset, length, stored, err := r.layout.blockSpan(i)
	if err != nil {
		return nil, err
	}
	want := r.layout.blockLen(i)

	raw := make([]byte, length)
	if length > 0 {
		if _, err := r.src.ReadAt(raw, r.layout.DataStart+int64(offset)); err != nil {
			return nil, &DecodeError{Block: i, Err: fmt.Errorf("read %d bytes: %w", length, err)}
		}
	}

	if stored {
		if len(raw) < want {
			return nil, &DecodeError{Block: i, Err: fmt.Errorf("stored block holds %d of %d bytes", len(raw), want)}
		}
		return raw[:want], nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Block: i, Err: err}
	}
	defer zr.Close()
	out := make([]byte, want)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, &DecodeError{Block: i, Err: err}
	}
	return out, nil
}

// Read opens the image at path and returns length decoded bytes at offset.
func Read(path string, offset, length int64) ([]byte, error) {
	r, err := Open(path, Options{BlockCacheEntries: -1})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadRange(offset, length)
}
