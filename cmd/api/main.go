package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/api/handlers"
	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/archive"
	"github.com/dvloznov/finance-assistant/internal/assistant"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/jobs/inmemory"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/dvloznov/finance-assistant/internal/vector"
)

func main() {
	cfg := config.Load()
	log := logger.New()

	ctx := context.Background()

	// Ledger store (authoritative).
	ledger, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open ledger store")
	}
	defer ledger.Close()

	// Semantic index (advisory). Pinecone when configured, in-memory otherwise.
	index := buildIndex(cfg, log)
	embedder := vector.NewHashEmbedder()

	// Generative backend. Startup proceeds without it; the pipeline then
	// runs on the deterministic fallbacks.
	var gen assistant.TextGenerator
	if gemini, err := assistant.NewGeminiGenerator(ctx, cfg.GeminiModel); err != nil {
		log.Warn().Err(err).Msg("Gemini unavailable - running with fallback classification and advice")
	} else {
		gen = gemini
	}

	svc := assistant.New(
		assistant.NewClassifier(gen, log),
		assistant.NewAdviceGenerator(gen, log),
		ledger,
		index,
		embedder,
		log,
	)

	// Optional analytics archive worker.
	publisher, stopWorker := startArchiveWorker(ctx, cfg, ledger, log)
	if stopWorker != nil {
		defer stopWorker()
	}

	financeHandler := handlers.NewFinanceHandler(svc, publisher, log)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/finance/process", financeHandler.Process)
	mux.HandleFunc("GET /api/v1/finance/summary/{user_id}", financeHandler.Summary)
	mux.HandleFunc("GET /api/v1/finance/history/{user_id}", financeHandler.History)
	mux.HandleFunc("GET /health", handlers.Health)
	mux.HandleFunc("GET /{$}", handlers.Root)

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}

func buildIndex(cfg *config.Config, log zerolog.Logger) vector.Index {
	if cfg.PineconeHost == "" {
		log.Info().Msg("No Pinecone host configured - using in-memory semantic index")
		return vector.NewInMemoryIndex()
	}

	index, err := vector.NewPineconeIndex(cfg.PineconeHost, cfg.PineconeAPIKey)
	if err != nil {
		log.Warn().Err(err).Msg("Pinecone configuration invalid - using in-memory semantic index")
		return vector.NewInMemoryIndex()
	}

	log.Info().Str("host", cfg.PineconeHost).Msg("Using Pinecone semantic index")
	return index
}

// startArchiveWorker wires the BigQuery export pipeline when a project is
// configured. Returns a nil publisher when the archive is disabled.
func startArchiveWorker(ctx context.Context, cfg *config.Config, ledger *store.Store, log zerolog.Logger) (jobs.Publisher, func()) {
	if cfg.BQProject == "" {
		log.Info().Msg("No BigQuery project configured - analytics archive disabled")
		return nil, nil
	}

	exporter, err := archive.NewExporter(ctx, cfg.BQProject, cfg.BQDataset, log)
	if err != nil {
		log.Warn().Err(err).Msg("Archive exporter unavailable - analytics archive disabled")
		return nil, nil
	}

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancel := context.WithCancel(ctx)

	handler := func(ctx context.Context, job jobs.Job) error {
		exportJob, ok := job.(*jobs.ExportEventJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		ev, err := ledger.GetEvent(ctx, exportJob.EventID)
		if err != nil {
			return err
		}
		return exporter.ExportEvent(ctx, ev)
	}

	go func() {
		log.Info().Str("project", cfg.BQProject).Str("dataset", cfg.BQDataset).Msg("Starting archive worker")
		if err := queue.Start(workerCtx, handler); err != nil {
			log.Error().Err(err).Msg("Archive worker stopped with error")
		}
	}()

	stop := func() {
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = queue.Stop(stopCtx)
		_ = exporter.Close()
	}

	return queue, stop
}
