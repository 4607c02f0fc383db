package loader

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreRule is a single parsed .gitignore line
type IgnoreRule struct {
	Pattern string
	IsDir   bool
	Negated bool
}

// IgnoreMatcher evaluates .gitignore rules against root-relative paths.
// Later rules override earlier ones, as git does.
type IgnoreMatcher struct {
	rules []IgnoreRule
}

func NewIgnoreMatcher() *IgnoreMatcher {
	return &IgnoreMatcher{}
}

// LoadGitignore adds rules from a .gitignore file; a missing file is not an error
func (m *IgnoreMatcher) LoadGitignore(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return m.Parse(content)
}

func (m *IgnoreMatcher) Parse(content []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.AddPattern(line)
	}
	return scanner.Err()
}

func (m *IgnoreMatcher) AddPattern(pattern string) {
	rule := IgnoreRule{Pattern: pattern}

	if strings.HasPrefix(rule.Pattern, "!") {
		rule.Negated = true
		rule.Pattern = strings.TrimPrefix(rule.Pattern, "!")
	}
	if strings.HasSuffix(rule.Pattern, "/") {
		rule.IsDir = true
		rule.Pattern = strings.TrimSuffix(rule.Pattern, "/")
	}
	if rule.Pattern == "" {
		return
	}
	m.rules = append(m.rules, rule)
}

// Match reports whether relPath is ignored
func (m *IgnoreMatcher) Match(relPath string, isDir bool) bool {
	path := filepath.ToSlash(relPath)

	excluded := false
	for _, rule := range m.rules {
		if rule.IsDir && !isDir {
			continue
		}
		if rule.matches(path) {
			excluded = !rule.Negated
		}
	}
	return excluded
}

func (r IgnoreRule) matches(path string) bool {
	// Anchored patterns only match from the root.
	if strings.HasPrefix(r.Pattern, "/") {
		matched, _ := doublestar.Match(strings.TrimPrefix(r.Pattern, "/"), path)
		return matched
	}
	if matched, _ := doublestar.Match(r.Pattern, path); matched {
		return true
	}
	matched, _ := doublestar.Match("**/"+r.Pattern, path)
	return matched
}
