package catalog

import (
	"fmt"

	"romident/internal/errkind"
)

// ParseError reports a malformed catalog line. A file that fails to parse is
// skipped as a whole; other catalogs keep loading.
type ParseError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("catalog %s:%d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("catalog %s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error { return errkind.ErrCatalogParse }

func (e *ParseError) ErrorKind() string { return "catalog" }
