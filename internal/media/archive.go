package media

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"romident/internal/errkind"
)

// MemberSeparator joins an archive path and a member name in an image path.
const MemberSeparator = "#"

// ArchiveEntry is one member of a compressed archive. The member is
// extracted into memory on first use and then behaves like a PlainFile.
type ArchiveEntry struct {
	readable
	Archive string
	// Member is the requested member name; empty selects the first file.
	Member string
}

func (*ArchiveEntry) isImage() {}

func newArchiveEntry(archive, member string, opts Options) *ArchiveEntry {
	e := &ArchiveEntry{Archive: archive, Member: member}
	identity := archive
	if member != "" {
		identity = archive + MemberSeparator + member
	}
	e.readable = newReadable(identity, archive, KindArchiveEntry, opts, e.extract)
	return e
}

func isArchiveExt(ext string) bool {
	switch ext {
	case ".zip", ".xz", ".gz":
		return true
	}
	return false
}

func isUnsupportedArchiveExt(ext string) bool {
	switch ext {
	case ".7z", ".rar", ".bz2", ".zst", ".tar":
		return true
	}
	return false
}

func (e *ArchiveEntry) extract() (io.ReaderAt, int64, io.Closer, error) {
	limit := e.opts.maxArchiveBytes()
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(e.Archive)); ext {
	case ".zip":
		data, err = extractZip(e.Archive, e.Member, limit)
	case ".xz", ".gz":
		data, err = extractStream(e.Archive, ext, limit)
	default:
		err = errkind.Wrap(errkind.ErrUnsupportedFormat, "media", "archive", fmt.Sprintf("unknown archive type %q", ext), nil)
	}
	if err != nil {
		return nil, 0, nil, err
	}
	return bytes.NewReader(data), int64(len(data)), nil, nil
}

func extractZip(path, member string, limit int64) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", path, err)
	}
	defer zr.Close()

	var target *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if member == "" || f.Name == member {
			target = f
			break
		}
	}
	if target == nil {
		if member == "" {
			return nil, fmt.Errorf("zip %s: no file members", path)
		}
		return nil, fmt.Errorf("zip %s: member %q: %w", path, member, os.ErrNotExist)
	}
	if target.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("zip %s: member %q is %d bytes, limit %d", path, target.Name, target.UncompressedSize64, limit)
	}
	rc, err := target.Open()
	if err != nil {
		return nil, fmt.Errorf("zip %s: open %q: %w", path, target.Name, err)
	}
	defer rc.Close()
	return readLimited(rc, limit, path)
}

// extractStream decompresses a single-member .xz or .gz file.
func extractStream(path, ext string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader
	switch ext {
	case ".xz":
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, errkind.Wrap(errkind.ErrDecode, "media", "xz", path, err)
		}
		r = xr
	default:
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, errkind.Wrap(errkind.ErrDecode, "media", "gzip", path, err)
		}
		defer gr.Close()
		r = gr
	}
	data, err := readLimited(r, limit, path)
	if err != nil {
		return nil, errkind.Wrap(errkind.ErrDecode, "media", ext[1:], path, err)
	}
	return data, nil
}

func readLimited(r io.Reader, limit int64, path string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: decompressed content exceeds %d bytes", path, limit)
	}
	return data, nil
}
