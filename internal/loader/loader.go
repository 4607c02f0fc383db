// Package loader scans a directory tree and loads source files as documents.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ledongthuc/pdf"

	"github.com/DreamCats/talk-codebase/internal/logging"
)

// Document is a loaded file's text plus where it came from
type Document struct {
	Path    string // absolute path
	Source  string // path relative to the scanned root, slash separated
	Content string
}

// Options controls which files are loaded
type Options struct {
	Exclude      []string // doublestar patterns, matched on the relative path and the base name
	MaxFileBytes int64    // 0 means no limit
	UseGitignore bool
}

// DefaultOptions returns the options an index build starts from
func DefaultOptions() Options {
	return Options{
		MaxFileBytes: 1 << 20,
		UseGitignore: true,
	}
}

// Directories that never hold code worth indexing
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"venv":         true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"vector_store": true,
}

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".rst": true, ".csv": true,
	".go": true, ".py": true, ".js": true, ".mjs": true, ".cjs": true, ".ts": true, ".tsx": true, ".jsx": true,
	".java": true, ".kt": true, ".kts": true, ".scala": true, ".groovy": true,
	".c": true, ".h": true, ".cc": true, ".cpp": true, ".hpp": true, ".cs": true, ".m": true, ".mm": true,
	".rs": true, ".swift": true, ".rb": true, ".php": true, ".pl": true, ".pm": true, ".lua": true, ".r": true,
	".sh": true, ".bash": true, ".zsh": true, ".ps1": true, ".sql": true, ".proto": true, ".graphql": true,
	".html": true, ".htm": true, ".css": true, ".scss": true, ".less": true, ".vue": true, ".svelte": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".xml": true,
	".ex": true, ".exs": true, ".erl": true, ".hs": true, ".clj": true, ".dart": true, ".zig": true,
}

// Supported reports whether a file name has an extension the loader can read
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".pdf" {
		return true
	}
	switch filepath.Base(name) {
	case "Dockerfile", "Makefile":
		return true
	}
	return textExtensions[ext]
}

// Load walks root and returns documents sorted by source path
func Load(ctx context.Context, root string, opts Options) ([]Document, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	ignore := NewIgnoreMatcher()
	if opts.UseGitignore {
		if err := ignore.LoadGitignore(filepath.Join(absRoot, ".gitignore")); err != nil {
			return nil, fmt.Errorf("load .gitignore: %w", err)
		}
	}

	var docs []Document
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logging.Warn("skipping unreadable path", logging.Fields{"path": path, "error": walkErr})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == absRoot {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, ".") || skipDirs[name] || ignore.Match(rel, true) || excluded(opts.Exclude, rel) {
				logging.Debug("directory skipped", logging.Fields{"path": rel})
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") || !Supported(d.Name()) {
			return nil
		}
		if ignore.Match(rel, false) || excluded(opts.Exclude, rel) {
			logging.Debug("file excluded", logging.Fields{"path": rel})
			return nil
		}

		doc, ok, err := loadFile(path, rel, opts.MaxFileBytes)
		if err != nil {
			logging.Warn("failed to load file", logging.Fields{"path": rel, "error": err})
			return nil
		}
		if ok {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	logging.Info("documents loaded", logging.Fields{"root": absRoot, "count": len(docs)})
	return docs, nil
}

func excluded(patterns []string, rel string) bool {
	base := filepath.Base(rel)
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func loadFile(path, rel string, maxBytes int64) (Document, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, false, err
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		logging.Debug("file too large", logging.Fields{"path": rel, "size": info.Size()})
		return Document{}, false, nil
	}

	var content string
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		content, err = readPDF(path)
		if err != nil {
			return Document{}, false, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return Document{}, false, err
		}
		if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
			logging.Debug("binary file skipped", logging.Fields{"path": rel})
			return Document{}, false, nil
		}
		content = string(data)
	}

	if strings.TrimSpace(content) == "" {
		return Document{}, false, nil
	}
	return Document{Path: path, Source: rel, Content: content}, true, nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, text); err != nil {
		return "", fmt.Errorf("read pdf buffer: %w", err)
	}
	return buf.String(), nil
}
