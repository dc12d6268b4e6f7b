package media

import (
	"log/slog"
	"time"
)

// Kind names an Image variant.
type Kind string

const (
	KindPlainFile       Kind = "plain"
	KindArchiveEntry    Kind = "archive"
	KindDiscTrack       Kind = "disc_track"
	KindBlockImage      Kind = "gcz"
	KindFolder          Kind = "folder"
	KindPlaylist        Kind = "playlist"
	KindDiscImageByHash Kind = "chd"
)

const (
	// DefaultChunkSize is the checksum streaming chunk when Options leaves it unset.
	DefaultChunkSize = 1 << 20
	// MaxChunkSize bounds the checksum streaming chunk.
	MaxChunkSize = 64 << 20
	// DefaultMaxArchiveBytes bounds in-memory archive extraction.
	DefaultMaxArchiveBytes = 512 << 20
)

// Image is implemented only by the variants in this package: *PlainFile,
// *ArchiveEntry, *DiscTrack, *BlockImage, *Folder, *Playlist and
// *DiscImageByHash. Callers that need variant behaviour use a type switch.
type Image interface {
	Kind() Kind
	// Path is the identity of the image: the file path, or "archive#member"
	// for archive entries.
	Path() string
	// Size is the logical content length in bytes.
	Size() (int64, error)
	// Read returns up to length bytes at offset, clamped to the content end.
	Read(offset, length int64) ([]byte, error)
	// CRC32 returns the IEEE CRC32 of the whole content.
	CRC32() (uint32, error)
	// SHA1 returns the lowercase hex SHA1 of the content.
	SHA1() (string, error)
	Close() error

	isImage()
}

// Checksums holds the content hashes of one image.
type Checksums struct {
	CRC32 uint32
	SHA1  string
}

// FileKey identifies one on-disk revision of an image for checksum caching.
type FileKey struct {
	Path       string
	Kind       Kind
	// SectorSize is the declared sector size of a DiscTrack, zero otherwise.
	// Checksums cover the cooked stream, so they differ per geometry.
	SectorSize int64
	Size       int64
	ModTime    time.Time
}

// ChecksumCache persists checksums across processes. Implementations must be
// safe for concurrent use.
type ChecksumCache interface {
	LookupChecksums(key FileKey) (Checksums, bool, error)
	StoreChecksums(key FileKey, sums Checksums) error
}

// Options configures Open.
type Options struct {
	// ChunkSize is the checksum streaming chunk in bytes (default 1 MiB, max 64 MiB).
	ChunkSize int
	// MaxArchiveBytes bounds the size of an archive member extracted into memory.
	MaxArchiveBytes int64
	// BlockCacheEntries sizes the decoded block cache of GCZ images.
	BlockCacheEntries int
	// Cache, when set, is consulted before hashing and updated after.
	Cache  ChecksumCache
	Logger *slog.Logger
}

func (o Options) chunkSize() int {
	switch {
	case o.ChunkSize <= 0:
		return DefaultChunkSize
	case o.ChunkSize > MaxChunkSize:
		return MaxChunkSize
	default:
		return o.ChunkSize
	}
}

func (o Options) maxArchiveBytes() int64 {
	if o.MaxArchiveBytes <= 0 {
		return DefaultMaxArchiveBytes
	}
	return o.MaxArchiveBytes
}
