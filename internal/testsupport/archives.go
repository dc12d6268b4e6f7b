package testsupport

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/ulikunitz/xz"
)

// ZipMember is one entry written by WriteZip. A name ending in "/" is a directory.
type ZipMember struct {
	Name string
	Data []byte
}

// WriteZip writes members in order to a zip archive at path.
func WriteZip(t testing.TB, path string, members ...ZipMember) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.Name)
		if err != nil {
			t.Fatalf("zip create %s: %v", m.Name, err)
		}
		if _, err := w.Write(m.Data); err != nil {
			t.Fatalf("zip write %s: %v", m.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return WriteFile(t, path, buf.Bytes())
}

// WriteXZ compresses data into a single-stream .xz file at path.
func WriteXZ(t testing.TB, path string, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("xz write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("xz close: %v", err)
	}
	return WriteFile(t, path, buf.Bytes())
}
