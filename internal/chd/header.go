// Package chd extracts the content SHA1 embedded in a CHD header. The hunk
// payload is never decompressed; the header hash is enough to identify a disc.
package chd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"romident/internal/binio"
	"romident/internal/errkind"
)

// Magic is the 8-byte CHD signature at offset 0.
const Magic = "MComprHD"

const (
	versionOffset = 12
	v4SHA1Offset  = 48
	v5SHA1Offset  = 84
	sha1Size      = 20
	headerProbe   = v5SHA1Offset + sha1Size
)

// Header holds the fields needed for identification.
type Header struct {
	Version uint32
	SHA1    [sha1Size]byte
}

// SHA1Hex returns the lowercase hex form of the content hash.
func (h Header) SHA1Hex() string {
	return hex.EncodeToString(h.SHA1[:])
}

// UnsupportedVersionError reports a CHD header version other than 4 or 5.
type UnsupportedVersionError struct {
	Version uint32
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported CHD version %d", e.Version)
}

func (e *UnsupportedVersionError) Unwrap() error { return errkind.ErrUnsupportedFormat }

func (e *UnsupportedVersionError) ErrorKind() string { return "format" }

// ParseHeader decodes the magic, version and SHA1 from the start of a CHD file.
func ParseHeader(buf []byte) (Header, error) {
	var h Header
	c := binio.NewCursor(buf)
	magic, err := c.Bytes(len(Magic))
	if err != nil {
		return h, errkind.Wrap(errkind.ErrUnsupportedFormat, "chd", "header", "truncated magic", err)
	}
	if string(magic) != Magic {
		return h, errkind.Wrap(errkind.ErrUnsupportedFormat, "chd", "header", fmt.Sprintf("bad magic %q", magic), nil)
	}
	if err := c.Seek(versionOffset); err != nil {
		return h, errkind.Wrap(errkind.ErrUnsupportedFormat, "chd", "header", "truncated version", err)
	}
	if h.Version, err = c.Uint32BE(); err != nil {
		return h, errkind.Wrap(errkind.ErrUnsupportedFormat, "chd", "header", "truncated version", err)
	}

	var at int
	switch h.Version {
	case 4:
		at = v4SHA1Offset
	case 5:
		at = v5SHA1Offset
	default:
		return h, &UnsupportedVersionError{Version: h.Version}
	}
	if err := c.Seek(at); err != nil {
		return h, errkind.Wrap(errkind.ErrUnsupportedFormat, "chd", "header", "truncated sha1", err)
	}
	sum, err := c.Bytes(sha1Size)
	if err != nil {
		return h, errkind.Wrap(errkind.ErrUnsupportedFormat, "chd", "header", "truncated sha1", err)
	}
	copy(h.SHA1[:], sum)
	return h, nil
}

// ReadHeader reads and parses the header of the CHD file at path.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	buf := make([]byte, headerProbe)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Header{}, fmt.Errorf("read chd header: %w", err)
	}
	return ParseHeader(buf[:n])
}
