package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DreamCats/talk-codebase/cmd/talk-codebase/internal"
	"github.com/DreamCats/talk-codebase/internal/config"
	"github.com/DreamCats/talk-codebase/internal/logging"
	"github.com/DreamCats/talk-codebase/internal/prompt"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store your OpenAI API key and chat model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p := prompt.New(cmd.InOrStdin(), cmd.OutOrStdout())
		err := configure(cmd.Context(), p, configPath)
		if errors.Is(err, prompt.ErrInterrupted) {
			fmt.Fprintln(cmd.OutOrStdout(), "\n🤖 Bye!")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

// configure asks for the API key and model name and merges them into the
// config file, leaving other settings alone.
func configure(ctx context.Context, p *prompt.Prompter, configPath string) error {
	cfg, path, err := internal.LoadConfig(configPath)
	if err != nil {
		return err
	}

	apiKey, err := p.AskSecret(ctx, "🤖 Enter your OpenAI API key: ")
	if err != nil {
		return err
	}
	modelName, err := p.Ask(ctx, fmt.Sprintf("🤖 Enter your model name (default: %s): ", config.DefaultModelName))
	if err != nil {
		return err
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = config.DefaultModelName
	}

	cfg.APIKey = strings.TrimSpace(apiKey)
	cfg.ModelName = strings.TrimSpace(modelName)
	if err := cfg.Save(path); err != nil {
		return err
	}
	logging.Info("configuration saved", logging.Fields{"path": path, "model_name": cfg.ModelName})
	return nil
}
