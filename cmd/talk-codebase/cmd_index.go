package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DreamCats/talk-codebase/cmd/talk-codebase/internal"
	"github.com/DreamCats/talk-codebase/internal/embedding"
	"github.com/DreamCats/talk-codebase/internal/indexer"
	"github.com/DreamCats/talk-codebase/internal/logging"
	"github.com/DreamCats/talk-codebase/internal/progress"
	"github.com/DreamCats/talk-codebase/internal/prompt"
)

var indexFlags struct {
	force bool
	yes   bool
}

var indexCmd = &cobra.Command{
	Use:   "index <root_dir>",
	Short: "Build the index for root_dir without starting a chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexFlags.force, "force", false, "rebuild even if an index exists")
	indexCmd.Flags().BoolVarP(&indexFlags.yes, "yes", "y", false, "skip the cost confirmation")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	root, err := internal.ResolveRoot(args[0])
	if err != nil {
		return err
	}
	if _, err := internal.SetupLogging("index", root, verbose); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to initialize log file: %v\n", err)
	} else {
		defer logging.Close()
	}

	raw, _, err := internal.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg := raw.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	dir, err := internal.IndexDir(cfg, root)
	if err != nil {
		return err
	}

	if !indexFlags.force {
		existing, err := indexer.Open(dir, root)
		if err != nil {
			return err
		}
		if existing != nil {
			defer existing.Close()
			fmt.Fprintf(out, "Index for %s already exists (%d chunks, built %s). Use --force to rebuild.\n",
				root, existing.Meta.ChunkCount, existing.Meta.CreatedAt.Local().Format(time.DateTime))
			return nil
		}
	}

	embedder, err := embedding.NewService(cfg)
	if err != nil {
		return err
	}

	p := prompt.New(cmd.InOrStdin(), out)
	fmt.Fprintf(out, "🏗️  Building index for: %s\n", root)
	x := indexer.New(cfg, embedder, p,
		indexer.WithOutput(out),
		indexer.WithProgress(progress.New(progress.Enabled(), cmd.ErrOrStderr(), "Creating vector store")),
	)
	ix, err := x.Build(ctx, root, dir, indexFlags.yes)
	switch {
	case errors.Is(err, indexer.ErrNoDocuments):
		color.New(color.FgRed).Fprintln(out, "✘ No documents found")
		return nil
	case errors.Is(err, indexer.ErrDeclined), errors.Is(err, prompt.ErrInterrupted):
		return nil
	case err != nil:
		return err
	}
	defer ix.Close()

	fmt.Fprintf(out, "Index stored in %s\n", ix.Dir)
	return nil
}
