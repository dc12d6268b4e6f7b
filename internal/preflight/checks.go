package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"romident/internal/catalog"
	"romident/internal/hashstore"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if detail, ok := statDir(path); !ok {
		return Result{Name: name, Detail: detail}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCatalogDir verifies that a catalog directory is readable and reports
// how many catalog files it holds. An empty directory passes with a note.
func CheckCatalogDir(name, path string) Result {
	if detail, ok := statDir(path); !ok {
		return Result{Name: name, Detail: detail}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: list: %v)", path, err)}
	}
	count := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() && catalog.IsCatalogFile(entry.Name()) {
			count++
		}
	}
	if count == 0 {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (no .dat or .xml files)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d catalog files)", path, count)}
}

// CheckCatalogFile verifies that a configured catalog file is readable and
// has a catalog extension.
func CheckCatalogFile(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if !catalog.IsCatalogFile(path) {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: expected a .dat or .xml file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckHashStore opens the checksum database, applying the schema if needed.
func CheckHashStore(ctx context.Context, path string) Result {
	const name = "Checksum cache"

	store, err := hashstore.Open(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()
	n, err := store.Count(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d entries)", path, n)}
}

func statDir(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("%s (error: does not exist)", path), false
		}
		return fmt.Sprintf("%s (error: stat: %v)", path, err), false
	}
	if !info.IsDir() {
		return fmt.Sprintf("%s (error: is not a directory)", path), false
	}
	return "", true
}
