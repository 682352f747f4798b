package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/blackmichael/streampulse/internal/config"
	"github.com/blackmichael/streampulse/internal/domain"
	"github.com/blackmichael/streampulse/internal/geo"
	"github.com/blackmichael/streampulse/internal/httpserver"
	"github.com/blackmichael/streampulse/internal/sentiment"
	"github.com/blackmichael/streampulse/internal/sqlite"
	"github.com/blackmichael/streampulse/internal/stream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repo, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer repo.Close()
	logger.Info("opened record store", "path", cfg.DatabasePath)

	// The geo index is loaded once and shared read-only for the process
	// lifetime.
	geoIndex, err := geo.Load(cfg.GeoDataPath)
	if err != nil {
		return fmt.Errorf("load geo index: %w", err)
	}
	logger.Info("loaded geo index", "names", geoIndex.Len())

	ingestor, err := domain.NewIngestor(domain.IngestorConfig{
		Keywords:       cfg.Keywords,
		Langs:          cfg.Langs,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
	}, repo, sentiment.New(), geoIndex, logger)
	if err != nil {
		return fmt.Errorf("create ingestor: %w", err)
	}

	stopwords, err := cfg.Stopwords()
	if err != nil {
		return fmt.Errorf("load stopwords: %w", err)
	}

	aggregator, err := domain.NewAggregator(domain.AggregatorConfig{
		WindowLength:  cfg.WindowLength,
		BucketWidth:   cfg.BucketWidth,
		TopK:          cfg.TopK,
		MinTermLength: cfg.MinTermLength,
		Stopwords:     stopwords,
	}, repo, logger)
	if err != nil {
		return fmt.Errorf("create aggregator: %w", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Bounded queue between the stream subscriber and the ingestor; a full
	// queue blocks the subscriber for backpressure.
	events := make(chan *domain.StreamPost, cfg.QueueDepth)

	subscriber := stream.NewSubscriber(cfg.StreamURL, cfg.Keywords, cfg.Langs, events, logger)
	go func() {
		if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("stream subscriber exited with error", "error", err)
		}
	}()

	go ingestor.Run(ctx, events)

	// Periodic aggregation trigger; runs are serialized and skip-if-busy.
	go aggregator.Start(ctx, cfg.TriggerInterval)

	server := httpserver.NewServer(cfg, aggregator, ingestor, repo, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "keywords", cfg.Keywords)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
