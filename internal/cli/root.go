// Package cli provides the command-line interface for seriesbot.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/seriesbot-go/internal/bot"
	"github.com/raphaelgruber/seriesbot-go/internal/client"
	"github.com/raphaelgruber/seriesbot-go/internal/config"
	"github.com/raphaelgruber/seriesbot-go/internal/llm"
	"github.com/raphaelgruber/seriesbot-go/internal/memory"
	"github.com/raphaelgruber/seriesbot-go/internal/tvdb"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// Global config
	cfg config.Config

	// Lazy-initialized local pipeline
	catalog      *tvdb.Client
	orchestrator *bot.Bot
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "seriesbot",
	Short: "Conversational TV series assistant",
	Long: `Seriesbot is a conversational assistant for exploring TV series.

It answers questions about shows by combining an LLM for understanding
your messages with the TVDB catalog for facts: search by title, series
details, similar shows and preference-based recommendations.

Run 'seriesbot chat' for an interactive session, or use the direct
catalog commands (search, details, similar) for one-off lookups.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		return nil
	},
}

// getCatalog returns the TVDB client, creating it on first use.
func getCatalog() (*tvdb.Client, error) {
	if catalog != nil {
		return catalog, nil
	}
	if cfg.TVDBAPIKey == "" {
		return nil, fmt.Errorf("TVDB_API_KEY is not set")
	}
	catalog = tvdb.NewClient(tvdb.Config{
		URL:    cfg.TVDBURL,
		APIKey: cfg.TVDBAPIKey,
		Pin:    cfg.TVDBPin,
	}, nil)
	return catalog, nil
}

// cliLogger keeps command output clean: warnings and errors only unless
// --verbose is set.
func cliLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// getBot assembles the full local pipeline: catalog, LLM, session store
// and orchestrator. Used by chat when no --server is given.
func getBot(ctx context.Context) (*bot.Bot, error) {
	if orchestrator != nil {
		return orchestrator, nil
	}

	cat, err := getCatalog()
	if err != nil {
		return nil, err
	}

	model, err := llm.NewModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}

	logger := cliLogger()
	store := memory.NewStore(cfg.SessionTTL, cfg.MaxSessions, logger)
	extractor := llm.NewExtractor(model, logger)
	composer := bot.NewComposer(model, logger)

	orchestrator = bot.New(cat, extractor, composer, store, nil, bot.Options{
		HistoryWindow:  cfg.HistoryWindow,
		SearchLimit:    cfg.SearchLimit,
		LLMTimeout:     cfg.LLMTimeout,
		CatalogTimeout: cfg.CatalogTimeout,
	}, logger)
	return orchestrator, nil
}

// getClient returns an API client for a running seriesbot server.
func getClient() *client.Client {
	return client.New(serverURL)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "use a running seriesbot server instead of the local pipeline")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(detailsCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(statsCmd)
}
