package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DreamCats/talk-codebase/cmd/talk-codebase/internal"
	"github.com/DreamCats/talk-codebase/internal/chat"
	"github.com/DreamCats/talk-codebase/internal/config"
	"github.com/DreamCats/talk-codebase/internal/embedding"
	"github.com/DreamCats/talk-codebase/internal/indexer"
	"github.com/DreamCats/talk-codebase/internal/llm"
	"github.com/DreamCats/talk-codebase/internal/logging"
	"github.com/DreamCats/talk-codebase/internal/progress"
	"github.com/DreamCats/talk-codebase/internal/prompt"
)

var chatFlags struct {
	render    bool
	noSources bool
	topK      int
}

var chatCmd = &cobra.Command{
	Use:   "chat <root_dir>",
	Short: "Ask questions about the code under root_dir",
	Long: `Index the files under root_dir (or reuse an earlier index) and start an
interactive question and answer session.

Type "reset" to forget the conversation so far and "exit" to leave.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatFlags.render, "render", false, "render answers as markdown once complete")
	chatCmd.Flags().BoolVar(&chatFlags.noSources, "no-sources", false, "do not list the files an answer was based on")
	chatCmd.Flags().IntVar(&chatFlags.topK, "top-k", 0, "number of chunks retrieved per question (default from config)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := internal.ResolveRoot(args[0])
	if err != nil {
		return err
	}
	if logPath, err := internal.SetupLogging("chat", root, verbose); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to initialize log file: %v\n", err)
	} else {
		defer logging.Close()
		logging.Debug("log file ready", logging.Fields{"path": logPath})
	}

	out := cmd.OutOrStdout()
	p := prompt.New(cmd.InOrStdin(), out)

	for {
		err := chatSession(ctx, cmd, p, root)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, prompt.ErrInterrupted) || ctx.Err() != nil:
			fmt.Fprintln(out, "\n🤖 Bye!")
			return nil
		case errors.Is(err, llm.ErrUnauthorized):
			logging.Warn("credentials rejected", logging.Fields{"error": err})
			fmt.Fprintln(out, "🤖 Please configure your API key.")
			if err := configure(ctx, p, configPath); err != nil {
				if errors.Is(err, prompt.ErrInterrupted) {
					fmt.Fprintln(out, "\n🤖 Bye!")
					return nil
				}
				return err
			}
		case errors.Is(err, indexer.ErrNoDocuments):
			color.New(color.FgRed).Fprintln(out, "✘ No documents found")
			return nil
		case errors.Is(err, indexer.ErrDeclined):
			logging.Info("index build declined", nil)
			return nil
		default:
			logging.Error("chat failed", logging.Fields{
				"error": err,
				"chain": errorChain(err),
				"stack": string(debug.Stack()),
			})
			fmt.Fprintf(out, "\n🤖 Error: %v\n", err)
			return reported(err)
		}
	}
}

// chatSession runs one session from configuration to the end of the loop.
// Missing credentials are asked for first.
func chatSession(ctx context.Context, cmd *cobra.Command, p *prompt.Prompter, root string) error {
	raw, _, err := internal.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if !raw.IsComplete() {
		if err := configure(ctx, p, configPath); err != nil {
			return err
		}
		if raw, _, err = internal.LoadConfig(configPath); err != nil {
			return err
		}
	}

	cfg := applyChatFlags(raw.WithDefaults())
	if err := cfg.Validate(); err != nil {
		return err
	}

	embedder, err := embedding.NewService(cfg)
	if err != nil {
		return err
	}
	model, err := llm.NewClient(cfg.APIKey, cfg.BaseURL, cfg.ModelName)
	if err != nil {
		return err
	}

	ix, err := openIndex(ctx, cmd, p, cfg, embedder, root)
	if err != nil {
		return err
	}
	defer ix.Close()

	session, err := chat.NewSession(model, ix.Retriever(embedder, cfg.KeywordWeight()), root, chat.Options{
		TopK:           cfg.Retrieval.TopK,
		ShowSources:    cfg.ShowSources(),
		RenderMarkdown: cfg.Retrieval.RenderMarkdown,
		Spinner:        progress.Enabled(),
		Out:            p.Out(),
	})
	if err != nil {
		return err
	}

	logging.Info("chat session started", logging.Fields{
		"root":   root,
		"model":  cfg.ModelName,
		"chunks": ix.Meta.ChunkCount,
		"top_k":  cfg.Retrieval.TopK,
	})
	return session.Loop(ctx, p)
}

func openIndex(ctx context.Context, cmd *cobra.Command, p *prompt.Prompter, cfg *config.Config, embedder *embedding.Service, root string) (*indexer.Index, error) {
	dir, err := internal.IndexDir(cfg, root)
	if err != nil {
		return nil, err
	}
	x := indexer.New(cfg, embedder, p,
		indexer.WithOutput(p.Out()),
		indexer.WithProgress(progress.New(progress.Enabled(), cmd.ErrOrStderr(), "Creating vector store")),
	)
	return x.Ensure(ctx, root, dir)
}

// errorChain lists the message of err and of every error it wraps,
// outermost first.
func errorChain(err error) []string {
	var chain []string
	queue := []error{err}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if e == nil {
			continue
		}
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
		switch u := e.(type) {
		case interface{ Unwrap() error }:
			queue = append(queue, u.Unwrap())
		case interface{ Unwrap() []error }:
			queue = append(queue, u.Unwrap()...)
		}
	}
	return chain
}

func applyChatFlags(cfg *config.Config) *config.Config {
	if chatFlags.render {
		cfg.Retrieval.RenderMarkdown = true
	}
	if chatFlags.noSources {
		show := false
		cfg.Retrieval.ShowSources = &show
	}
	if chatFlags.topK > 0 {
		cfg.Retrieval.TopK = chatFlags.topK
	}
	return cfg
}
