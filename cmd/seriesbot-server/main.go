// Package main provides the HTTP chat server for seriesbot.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/raphaelgruber/seriesbot-go/internal/bot"
	"github.com/raphaelgruber/seriesbot-go/internal/config"
	"github.com/raphaelgruber/seriesbot-go/internal/llm"
	"github.com/raphaelgruber/seriesbot-go/internal/memory"
	"github.com/raphaelgruber/seriesbot-go/internal/metrics"
	"github.com/raphaelgruber/seriesbot-go/internal/server"
	"github.com/raphaelgruber/seriesbot-go/internal/tvdb"
)

const sweepInterval = 5 * time.Minute

func main() {
	cfg := config.Load()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		if err := cleanup(); err != nil {
			logger.Error("failed to close log file", "error", err)
		}
	}()
	slog.SetDefault(logger)

	port, err := strconv.Atoi(cfg.ServerPort)
	if err != nil {
		logger.Error("invalid server port", "port", cfg.ServerPort, "error", err)
		os.Exit(1)
	}

	if cfg.TVDBAPIKey == "" {
		logger.Error("TVDB_API_KEY is not set")
		os.Exit(1)
	}

	logger.Info("starting seriesbot-server",
		"port", port, "provider", cfg.LLMProvider, "model", cfg.LLMModel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	model, err := llm.NewModel(initCtx, cfg)
	cancel()
	if err != nil {
		logger.Error("failed to create model", "error", err)
		os.Exit(1)
	}

	catalog := tvdb.NewClient(tvdb.Config{
		URL:    cfg.TVDBURL,
		APIKey: cfg.TVDBAPIKey,
		Pin:    cfg.TVDBPin,
	}, logger)

	store := memory.NewStore(cfg.SessionTTL, cfg.MaxSessions, logger)
	store.StartJanitor(ctx, sweepInterval)

	collector := metrics.NewCollector()
	extractor := llm.NewExtractor(model, logger)
	composer := bot.NewComposer(model, logger)

	b := bot.New(catalog, extractor, composer, store, collector, bot.Options{
		HistoryWindow:  cfg.HistoryWindow,
		SearchLimit:    cfg.SearchLimit,
		LLMTimeout:     cfg.LLMTimeout,
		CatalogTimeout: cfg.CatalogTimeout,
	}, logger)

	srv := server.New(b, store, collector, port, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
