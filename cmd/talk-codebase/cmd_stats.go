package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DreamCats/talk-codebase/cmd/talk-codebase/internal"
	"github.com/DreamCats/talk-codebase/internal/indexer"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats <root_dir>",
	Short: "Show statistics about the index for root_dir",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	root, err := internal.ResolveRoot(args[0])
	if err != nil {
		return err
	}
	raw, _, err := internal.LoadConfig(configPath)
	if err != nil {
		return err
	}
	dir, err := internal.IndexDir(raw.WithDefaults(), root)
	if err != nil {
		return err
	}

	ix, err := indexer.Open(dir, root)
	if err != nil {
		return err
	}
	if ix == nil {
		fmt.Fprintf(out, "No index for %s. Run `talk-codebase index %s` to build one.\n", root, args[0])
		return nil
	}
	defer ix.Close()

	stats, err := ix.Stats()
	if err != nil {
		return err
	}

	if statsJSON {
		data, err := json.MarshalIndent(map[string]any{
			"root":            root,
			"dir":             ix.Dir,
			"db_path":         ix.DBPath(),
			"embedding_model": ix.Meta.EmbeddingModel,
			"chunk_size":      ix.Meta.ChunkSize,
			"chunk_overlap":   ix.Meta.ChunkOverlap,
			"created_at":      ix.Meta.CreatedAt.Format(time.RFC3339),
			"sources":         stats.SourceCount,
			"chunks":          stats.ChunkCount,
			"embeddings":      stats.VectorCount,
			"size_bytes":      stats.SizeBytes,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, "📊 Index Statistics")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Root:       %s\n", root)
	fmt.Fprintf(out, "Database:   %s\n", ix.DBPath())
	fmt.Fprintf(out, "Model:      %s\n", ix.Meta.EmbeddingModel)
	fmt.Fprintf(out, "Built:      %s\n", ix.Meta.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Files:      %6d\n", stats.SourceCount)
	fmt.Fprintf(out, "Chunks:     %6d\n", stats.ChunkCount)
	fmt.Fprintf(out, "Embeddings: %6d\n", stats.VectorCount)
	return nil
}
