package media

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"romident/internal/logging"
)

type openFunc func() (io.ReaderAt, int64, io.Closer, error)

// readable is the byte-level core shared by every variant that can be read.
// The backing source is opened on first use so that large folders and
// playlists do not hold a descriptor per child.
type readable struct {
	path       string
	kind       Kind
	statPath   string
	// sectorSize distinguishes cache keys of DiscTracks over the same file.
	sectorSize int64
	opts       Options
	logger     *slog.Logger
	open       openFunc

	mu      sync.Mutex
	opened  bool
	closed  bool
	r       io.ReaderAt
	size    int64
	closer  io.Closer
	openErr error

	sumsOnce sync.Once
	sums     Checksums
	sumsErr  error
}

func newReadable(path, statPath string, kind Kind, opts Options, open openFunc) readable {
	return readable{
		path:     path,
		kind:     kind,
		statPath: statPath,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "media").With(logging.String(logging.FieldMediaKind, string(kind))),
		open:     open,
	}
}

func (b *readable) Kind() Kind { return b.kind }

func (b *readable) Path() string { return b.path }

func (b *readable) source() (io.ReaderAt, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, 0, os.ErrClosed
	}
	if !b.opened {
		b.r, b.size, b.closer, b.openErr = b.open()
		b.opened = true
	}
	return b.r, b.size, b.openErr
}

func (b *readable) Size() (int64, error) {
	_, size, err := b.source()
	return size, err
}

func (b *readable) Read(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("read %s: invalid range offset=%d length=%d", b.path, offset, length)
	}
	r, size, err := b.source()
	if err != nil {
		return nil, err
	}
	if offset >= size || length == 0 {
		return []byte{}, nil
	}
	if offset+length > size {
		length = size - offset
	}
	buf := make([]byte, length)
	n, err := r.ReadAt(buf, offset)
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %s at %d: %w", b.path, offset, err)
}

func (b *readable) CRC32() (uint32, error) {
	sums, err := b.checksums()
	return sums.CRC32, err
}

func (b *readable) SHA1() (string, error) {
	sums, err := b.checksums()
	return sums.SHA1, err
}

func (b *readable) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.closer == nil {
		return nil
	}
	err := b.closer.Close()
	b.closer = nil
	return err
}

func (b *readable) checksums() (Checksums, error) {
	b.sumsOnce.Do(func() {
		key, haveKey := b.fileKey()
		if haveKey && b.opts.Cache != nil {
			sums, ok, err := b.opts.Cache.LookupChecksums(key)
			if err != nil {
				logging.WarnWithContext(b.logger, "checksum cache lookup failed", "checksum_cache_lookup",
					logging.String(logging.FieldPath, b.path),
					logging.Error(err),
					logging.String(logging.FieldImpact, "checksums are recomputed from content"),
				)
			} else if ok {
				b.sums = sums
				return
			}
		}

		b.sums, b.sumsErr = b.hash()
		if b.sumsErr != nil || !haveKey || b.opts.Cache == nil {
			return
		}
		if err := b.opts.Cache.StoreChecksums(key, b.sums); err != nil {
			logging.WarnWithContext(b.logger, "checksum cache store failed", "checksum_cache_store",
				logging.String(logging.FieldPath, b.path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "next run recomputes checksums"),
			)
		}
	})
	return b.sums, b.sumsErr
}

// hash streams the content once through CRC32 and SHA1 in chunkSize reads.
func (b *readable) hash() (Checksums, error) {
	r, size, err := b.source()
	if err != nil {
		return Checksums{}, err
	}
	started := time.Now()
	crc := crc32.NewIEEE()
	sh := sha1.New()
	buf := make([]byte, b.opts.chunkSize())
	section := io.NewSectionReader(r, 0, size)
	if _, err := io.CopyBuffer(io.MultiWriter(crc, sh), section, buf); err != nil {
		return Checksums{}, fmt.Errorf("checksum %s: %w", b.path, err)
	}
	sums := Checksums{CRC32: crc.Sum32(), SHA1: hex.EncodeToString(sh.Sum(nil))}
	b.logger.Debug("computed checksums",
		logging.String(logging.FieldPath, b.path),
		logging.String("crc32", fmt.Sprintf("%08x", sums.CRC32)),
		logging.Int64("size", size),
		logging.Int("chunk_size", len(buf)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return sums, nil
}

func (b *readable) fileKey() (FileKey, bool) {
	if b.statPath == "" {
		return FileKey{}, false
	}
	info, err := os.Stat(b.statPath)
	if err != nil || !info.Mode().IsRegular() {
		return FileKey{}, false
	}
	return FileKey{Path: b.path, Kind: b.kind, SectorSize: b.sectorSize, Size: info.Size(), ModTime: info.ModTime()}, true
}
