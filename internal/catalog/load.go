package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encodings accepted by LoadOptions.
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin1"
)

// LoadOptions controls how catalog files are decoded.
type LoadOptions struct {
	// Encoding applies to line DATs; XML catalogs use their declared
	// encoding. A leading byte-order mark always takes precedence.
	Encoding string
}

func (o LoadOptions) decoder() *encoding.Decoder {
	if strings.EqualFold(o.Encoding, EncodingLatin1) {
		return charmap.ISO8859_1.NewDecoder()
	}
	return encoding.Nop.NewDecoder()
}

// IsCatalogFile reports whether name has a catalog extension.
func IsCatalogFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".dat", ".xml":
		return true
	default:
		return false
	}
}

// Load parses the catalog at path, choosing the dialect by content: XML when
// the first non-blank byte is "<", the line dialect otherwise.
func Load(path string, opts LoadOptions) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if looksLikeXML(br) {
		return ParseSoftwareList(br, path)
	}
	return ParseDAT(transform.NewReader(br, unicode.BOMOverride(opts.decoder())), path)
}

// looksLikeXML peeks at the start of br. A UTF-8 byte-order mark ahead of an
// XML prolog is discarded since encoding/xml rejects it.
func looksLikeXML(br *bufio.Reader) bool {
	head, _ := br.Peek(512)
	text := strings.TrimLeft(strings.TrimPrefix(string(head), "\ufeff"), " \t\r\n")
	if !strings.HasPrefix(text, "<") {
		return false
	}
	if strings.HasPrefix(string(head), "\ufeff") {
		br.Discard(3)
	}
	return true
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return input, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
}

func catalogNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
