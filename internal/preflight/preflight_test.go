package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"romident/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCatalogDir(t *testing.T) {
	dir := t.TempDir()
	result := CheckCatalogDir("catalogs", dir)
	if !result.Passed || !strings.Contains(result.Detail, "no .dat or .xml files") {
		t.Fatalf("expected passing empty-dir note, got %+v", result)
	}

	testsupport.WriteFile(t, filepath.Join(dir, "a.dat"), []byte(testsupport.DAT("a")))
	testsupport.WriteFile(t, filepath.Join(dir, "b.xml"), []byte("<softwarelist/>"))
	testsupport.WriteFile(t, filepath.Join(dir, "readme.txt"), []byte("x"))
	result = CheckCatalogDir("catalogs", dir)
	if !result.Passed || !strings.Contains(result.Detail, "2 catalog files") {
		t.Fatalf("expected two catalog files, got %+v", result)
	}
}

func TestCheckCatalogFile(t *testing.T) {
	dir := t.TempDir()
	good := testsupport.WriteFile(t, filepath.Join(dir, "snes.dat"), []byte(testsupport.DAT("snes")))
	if result := CheckCatalogFile("file", good); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
	wrongExt := testsupport.WriteFile(t, filepath.Join(dir, "snes.txt"), []byte("x"))
	if result := CheckCatalogFile("file", wrongExt); result.Passed {
		t.Fatal("expected failure for non-catalog extension")
	}
	if result := CheckCatalogFile("file", filepath.Join(dir, "missing.dat")); result.Passed {
		t.Fatal("expected failure for missing file")
	}
}

func TestRunAllSkipsDisabledCaches(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutHashCache())
	results := RunAll(context.Background(), cfg)
	for _, r := range results {
		if strings.Contains(r.Name, "Checksum") || strings.Contains(r.Name, "Match cache") {
			t.Fatalf("unexpected check for disabled cache: %+v", r)
		}
	}
	if len(results) != 1 || !results[0].Passed {
		t.Fatalf("expected one passing catalog dir check, got %+v", results)
	}
}

func TestRunAllChecksEnabledCaches(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMatchCache())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	cfg.Catalogs.Files = []string{filepath.Join(t.TempDir(), "missing.dat")}

	results := RunAll(context.Background(), cfg)
	if !Failed(results) {
		t.Fatalf("missing catalog file should fail: %+v", results)
	}
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = r.Passed
	}
	for _, name := range []string{"Checksum cache directory", "Checksum cache", "Match cache directory"} {
		if passed, ok := names[name]; !ok || !passed {
			t.Fatalf("expected passing %q check, got %+v", name, results)
		}
	}
}
