package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dfennessey/book-recommender-indexer/internal/api"
	"github.com/dfennessey/book-recommender-indexer/internal/audit"
	"github.com/dfennessey/book-recommender-indexer/internal/catalog"
	"github.com/dfennessey/book-recommender-indexer/internal/config"
	"github.com/dfennessey/book-recommender-indexer/internal/indexer"
	"github.com/dfennessey/book-recommender-indexer/internal/ledger"
	"github.com/dfennessey/book-recommender-indexer/internal/logging"
	"github.com/dfennessey/book-recommender-indexer/internal/tasks"
	"github.com/dfennessey/book-recommender-indexer/internal/telemetry"
)

const shutdownGrace = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "indexer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional; env vars apply either way)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry.Init()

	if cfg.DB.DSN != "" {
		if err := ledger.Migrate(ctx, cfg.DB.DSN); err != nil {
			return fmt.Errorf("migrate ledger: %w", err)
		}
	}

	store, err := ledger.New(ctx, ledger.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Hour,
	})
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	catalogClient := catalog.New(catalog.Config{
		BaseURL:         cfg.Catalog.BaseURL,
		Timeout:         cfg.CatalogTimeout(),
		MaxRetries:      cfg.Catalog.MaxRetries,
		RetryBackoff:    cfg.CatalogBackoff(),
		CacheTTL:        cfg.CacheTTL(),
		PopularityLimit: cfg.Indexer.PopularityThreshold,
	}, logging.WithService(logger, "catalog"))

	taskClient, err := tasks.New(ctx, tasks.Config{
		ProjectID:       cfg.Tasks.ProjectID,
		Location:        cfg.Tasks.Location,
		Queue:           cfg.Tasks.Queue,
		ScraperBaseURL:  cfg.Tasks.ScraperBaseURL,
		EmulatorHost:    cfg.Tasks.EmulatorHost,
		BookTopic:       cfg.PubSub.BookTopic,
		UserReviewTopic: cfg.PubSub.UserReviewTopic,
	}, logging.WithService(logger, "tasks"))
	if err != nil {
		return fmt.Errorf("open tasks client: %w", err)
	}
	defer func() { _ = taskClient.Close() }()

	var hub *audit.Hub
	if cfg.Audit.Enabled {
		auditLogger := logging.WithService(logger, "audit")
		sinks := []audit.Sink{audit.NewLogSink(auditLogger)}
		pubsubSink, err := audit.NewPubSubSink(ctx, cfg.PubSub.ProjectID, audit.Topics{
			Book:       cfg.PubSub.BookAuditTopic,
			UserReview: cfg.PubSub.UserReviewAuditTopic,
			Profile:    cfg.PubSub.ProfileAuditTopic,
		}, auditLogger)
		if err != nil {
			// The indexer is useful without its audit stream; run degraded on
			// the log sink alone.
			auditLogger.Error("audit pubsub sink unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, pubsubSink)
		}
		hub = audit.NewHub(audit.Config{
			BufferSize:     cfg.Audit.BufferSize,
			MaxBatchEvents: cfg.Audit.MaxBatchEvents,
			MaxBatchWait:   cfg.BatchWait(),
			SinkTimeout:    cfg.SinkTimeout(),
			Logger:         auditLogger,
		}, sinks...)
	}

	var auditor audit.Emitter
	if hub != nil {
		auditor = hub
	}

	svcLogger := logging.WithService(logger, "indexer")
	enqueueSvc := indexer.NewEnqueueService(
		catalogClient, store, taskClient, cfg.Indexer.PopularityThreshold, svcLogger)
	deps := api.Deps{
		Books:    indexer.NewBookService(catalogClient, store, auditor, svcLogger),
		Reviews:  indexer.NewReviewService(catalogClient, store, enqueueSvc, auditor, svcLogger),
		Profiles: indexer.NewProfileService(taskClient, auditor, svcLogger),
		Enqueuer: enqueueSvc,
		Catalog:  catalogClient,
		Tasks:    taskClient,
		Ledger:   store,
	}

	server := api.NewServer(deps, cfg, logging.WithService(logger, "api"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	// Stop taking traffic first, then let the audit hub drain what the
	// in-flight handlers emitted.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if hub != nil {
		if err := hub.Close(shutdownCtx); err != nil {
			logger.Error("audit hub close failed", zap.Error(err))
		}
	}

	logger.Info("indexer stopped")
	return nil
}
