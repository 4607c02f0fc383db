package internal

import (
	"github.com/DreamCats/talk-codebase/internal/logging"
)

// SetupLogging opens the per-run log file for subcommand and root.
func SetupLogging(subcommand, root string, verbose bool) (string, error) {
	logDir, err := LogDir()
	if err != nil {
		return "", err
	}
	return logging.Setup(logDir, subcommand, root, verbose)
}
