package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errReported marks errors that were already shown to the user
var errReported = errors.New("error already reported")

func reported(err error) error {
	return fmt.Errorf("%w: %w", errReported, err)
}

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "talk-codebase",
	Short: "Chat with your codebase",
	Long: `talk-codebase indexes the files of a directory into an embedding index and
answers questions about them with an OpenAI chat model.

Run "talk-codebase configure" once to store your API key, then
"talk-codebase chat <root_dir>".`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.talk-codebase.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug level logging in the log file")
}
