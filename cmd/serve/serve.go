// Package serve implements the serve command, which runs the HTTP API,
// the stage task consumer, and the stalled pipeline sweeper in one
// process.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rankforge/crawlpipe/internal/api"
	"github.com/rankforge/crawlpipe/internal/config"
	"github.com/rankforge/crawlpipe/internal/content"
	"github.com/rankforge/crawlpipe/internal/crawlrun"
	"github.com/rankforge/crawlpipe/internal/database"
	"github.com/rankforge/crawlpipe/internal/logger"
	"github.com/rankforge/crawlpipe/internal/metrics"
	"github.com/rankforge/crawlpipe/internal/pipeline"
	"github.com/rankforge/crawlpipe/internal/search"
	"github.com/rankforge/crawlpipe/internal/secrets"
	"github.com/rankforge/crawlpipe/internal/sitemap"
	"github.com/rankforge/crawlpipe/internal/tasks"
)

const shutdownTimeout = 30 * time.Second

// Command returns the serve command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline service",
		Long: `Run the pipeline service: the HTTP API with the crawl webhook,
the stage task consumer, and the stalled pipeline sweeper.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	log.Info("starting pipeline service",
		"environment", cfg.App.Environment, "address", cfg.Server.Address)

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	envelope, err := secrets.NewEnvelope(cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize credential envelope: %w", err)
	}

	streams, err := tasks.NewStreamsClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer streams.Close()

	producer := tasks.NewProducer(streams, tasks.ProducerConfig{})

	consumerID := cfg.Pipeline.ConsumerID
	if consumerID == "" {
		host, hostErr := os.Hostname()
		if hostErr != nil {
			host = "crawlpipe"
		}
		consumerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	consumer, err := tasks.NewConsumer(streams, tasks.ConsumerConfig{
		ConsumerID: consumerID,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Crawler.RequestTimeout}

	indexer, err := search.NewIndexer(cfg.Search, log)
	if err != nil {
		return fmt.Errorf("failed to create search indexer: %w", err)
	}

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewMetrics(registry)

	projectRepo := database.NewProjectRepository(db)
	pageRepo := database.NewPageRepository(db)
	sessionRepo := database.NewSessionRepository(db)
	credentialRepo := database.NewCredentialRepository(db)
	eventRepo := database.NewWebhookEventRepository(db)

	orchestrator := pipeline.New(
		pipeline.Config{CallbackURL: cfg.Crawler.CallbackURL},
		pipeline.Deps{
			Projects:    projectRepo,
			Pages:       pageRepo,
			Sessions:    sessionRepo,
			Credentials: credentialRepo,
			Events:      eventRepo,
			Discoverer:  sitemap.NewDiscoverer(httpClient, cfg.Crawler.UserAgent, log),
			Crawler:     crawlrun.NewClient(cfg.Crawler.BaseURL, httpClient, log),
			Envelope:    envelope,
			Extractor:   content.NewExtractor(),
			Indexer:     indexer,
			Queue:       producer,
			Metrics:     pipelineMetrics,
			Logger:      log,
		},
	)

	runner := tasks.NewRunner(consumer, orchestrator, log)

	sweeper := tasks.NewSweeper(
		projectRepo, producer, cfg.Pipeline.StallWindow, cfg.Pipeline.SweepSchedule, log)

	server := api.NewServer(
		cfg.Server,
		api.NewProjectsHandler(projectRepo, credentialRepo, envelope, producer, log),
		api.NewWebhookHandler(orchestrator, log),
		registry,
		log,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- runner.Run(runCtx)
	}()

	if err := sweeper.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			log.Error("http server failed", "error", err)
		}
	}

	cancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}

	if err := <-runnerDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Error("task runner exited with error", "error", err)
	}

	log.Info("pipeline service stopped")
	return nil
}
