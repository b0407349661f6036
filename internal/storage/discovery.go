package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the per-project directory holding the database
	DirName = ".dupcheck"
	// DatabaseName is the database file inside DirName
	DatabaseName = "dupcheck.db"
)

// DiscoverDatabase walks up from startDir looking for .dupcheck/dupcheck.db,
// the way git finds .git, so the CLI works from any subdirectory of a
// project. Returns the absolute path, or an error if no directory up to the
// filesystem root has one.
func DiscoverDatabase(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		if path, ok := databaseInDir(dir); ok {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf(
		"no %s found in %s or parent directories\n"+
			"  Run 'dupcheck import' to create one here\n"+
			"  Or use --db flag to specify database path explicitly",
		filepath.Join(DirName, DatabaseName), startDir)
}

func databaseInDir(dir string) (string, bool) {
	path := filepath.Join(dir, DirName, DatabaseName)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}
