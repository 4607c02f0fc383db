package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/DreamCats/talk-codebase/internal/config"
	"github.com/DreamCats/talk-codebase/internal/indexer"
)

// ResolveRoot returns the absolute, symlink-free path of the directory to chat about.
func ResolveRoot(rootDir string) (string, error) {
	if rootDir == "" {
		rootDir = "."
	}

	absPath, err := filepath.Abs(rootDir)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolved
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("root directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root directory: %s is not a directory", absPath)
	}
	return absPath, nil
}

// DataDir is where indexes and logs live, ~/.talk-codebase.
func DataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".talk-codebase"), nil
}

// LogDir returns ~/.talk-codebase/logs.
func LogDir() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "logs"), nil
}

// IndexDir returns the index directory for root. index.dir in the config
// replaces the default parent directory ~/.talk-codebase/index.
func IndexDir(cfg *config.Config, root string) (string, error) {
	base := cfg.Index.Dir
	if base == "" {
		dataDir, err := DataDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(dataDir, "index")
	}
	return indexer.DirFor(base, root), nil
}
