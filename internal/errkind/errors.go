package errkind

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedGeometry = errors.New("unsupported sector geometry")
	ErrCorruptImage        = errors.New("corrupt image")
	ErrDecode              = errors.New("decode failure")
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrCatalogParse        = errors.New("catalog parse error")
	ErrNotReadable         = errors.New("image is not byte-readable")
)

// Classifier allows errors to declare their classification. Kinds returned by
// this package are "geometry", "corrupt", "decode", "format", "catalog" and
// "not_readable".
type Classifier interface {
	ErrorKind() string
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker. The marker should be one of the exported sentinel
// errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrDecode
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to its classification string. Errors that carry no known
// marker return "unknown"; nil returns "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var classifier Classifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	switch {
	case errors.Is(err, ErrUnsupportedGeometry):
		return "geometry"
	case errors.Is(err, ErrCorruptImage):
		return "corrupt"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrUnsupportedFormat):
		return "format"
	case errors.Is(err, ErrCatalogParse):
		return "catalog"
	case errors.Is(err, ErrNotReadable):
		return "not_readable"
	default:
		return "unknown"
	}
}

// Fatal reports whether err makes the image unusable for identification.
// Catalog parse errors are recovered per file and are never fatal.
func Fatal(err error) bool {
	switch Kind(err) {
	case "geometry", "corrupt", "decode", "format":
		return true
	default:
		return false
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "image failure"
	}
	return strings.Join(parts, ": ")
}
