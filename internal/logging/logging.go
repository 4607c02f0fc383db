// Package logging writes a per-run log file for talk-codebase.
//
// Until Setup is called every helper is a no-op, so library packages can log
// freely without forcing a log file on tests.
package logging

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Fields is an alias so callers don't import logrus directly
type Fields = logrus.Fields

var (
	mu      sync.Mutex
	logger  = newDiscardLogger()
	logFile *os.File
)

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Setup opens a log file under dir named after the subcommand and the
// repository root, and routes all helpers to it.
func Setup(dir, subcommand, repoRoot string, verbose bool) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}

	repoName := SanitizeName(filepath.Base(repoRoot))
	hash := sha1.Sum([]byte(repoRoot))
	suffix := hex.EncodeToString(hash[:])[:8]
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("talk-codebase-%s-%s-%s-%s.log", subcommand, repoName, timestamp, suffix)
	logPath := filepath.Join(dir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}

	l := logrus.New()
	l.SetOutput(file)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	l.SetLevel(logrus.InfoLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}

	mu.Lock()
	prev := logFile
	logger = l
	logFile = file
	mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	Info("logger initialized", Fields{
		"subcommand": subcommand,
		"repo_root":  repoRoot,
		"log_file":   logPath,
	})
	return logPath, nil
}

// SetOutput routes log output to w. Useful for testing.
func SetOutput(w io.Writer, level logrus.Level) {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})

	mu.Lock()
	logger = l
	mu.Unlock()
}

// Close flushes and closes the log file, reverting to a discard logger
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	logger = newDiscardLogger()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func current() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func Info(message string, fields Fields) {
	current().WithFields(fields).Info(message)
}

func Warn(message string, fields Fields) {
	current().WithFields(fields).Warn(message)
}

func Error(message string, fields Fields) {
	current().WithFields(fields).Error(message)
}

func Debug(message string, fields Fields) {
	current().WithFields(fields).Debug(message)
}

// SanitizeName replaces characters that are unsafe in file names.
func SanitizeName(name string) string {
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "repo"
	}
	b := make([]byte, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-' {
			b = append(b, byte(r))
			continue
		}
		b = append(b, '_')
	}
	return string(b)
}
