package identification

import (
	"errors"
	"hash/crc32"
	"path/filepath"
	"strings"

	"romident/internal/errkind"
	"romident/internal/media"
)

// RangeReader reads up to length bytes at offset of the queried content.
type RangeReader func(offset, length int64) ([]byte, error)

// MatchQuery is the checksum and name evidence for one identification call.
// It is built once per call and not modified afterwards.
type MatchQuery struct {
	Path string
	Kind media.Kind

	CRC32  uint32
	HasCRC bool
	// SHA1 is lowercase hex, empty when unknown.
	SHA1    string
	Size    int64
	HasSize bool
	// Name enables the fuzzy phase when non-empty.
	Name string

	Reader RangeReader
}

// NewQuery builds a query from img. Folders and playlists are represented
// by their first image. Images that cannot provide a checksum yield a query
// with no checksum evidence rather than an error; only fatal image errors
// are returned.
func NewQuery(img media.Image, name string) (MatchQuery, error) {
	q := MatchQuery{Path: img.Path(), Kind: img.Kind(), Name: strings.TrimSpace(name)}
	primary, ok := media.Primary(img)
	if !ok {
		return q, nil
	}
	q.Kind = primary.Kind()

	if sha, err := primary.SHA1(); err == nil {
		q.SHA1 = strings.ToLower(sha)
	} else if !errors.Is(err, errkind.ErrNotReadable) {
		return q, err
	}
	if _, byHash := primary.(*media.DiscImageByHash); byHash {
		return q, nil
	}

	crc, err := primary.CRC32()
	if err != nil {
		if errors.Is(err, errkind.ErrNotReadable) {
			return q, nil
		}
		return q, err
	}
	q.CRC32, q.HasCRC = crc, true

	size, err := primary.Size()
	if err != nil {
		return q, err
	}
	q.Size, q.HasSize = size, true
	q.Reader = primary.Read
	return q, nil
}

// HasEvidence reports whether the query carries any checksum.
func (q MatchQuery) HasEvidence() bool {
	return q.HasCRC || q.SHA1 != ""
}

// RangeCRC returns the CRC32 of length bytes at offset. Ranges running past
// the end of the content hash only the bytes that exist.
func (q MatchQuery) RangeCRC(offset, length int64) (uint32, error) {
	if q.Reader == nil {
		return 0, errkind.Wrap(errkind.ErrNotReadable, "identification", "range read", q.Path, nil)
	}
	data, err := q.Reader(offset, length)
	if err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(data), nil
}

// NameFromPath returns the base name of path without its extension, the
// usual fuzzy query for a file. Archive member paths use the member name.
func NameFromPath(path string) string {
	if idx := strings.LastIndex(path, media.MemberSeparator); idx >= 0 {
		if member := path[idx+1:]; member != "" && !strings.ContainsAny(member, `/\`) {
			path = member
		}
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext != "" && len(ext) <= 6 && !strings.ContainsAny(ext, " )]") {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
