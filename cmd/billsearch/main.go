package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/billsearch/internal/artifact"
	"github.com/kailas-cloud/billsearch/internal/bootstrap"
	"github.com/kailas-cloud/billsearch/internal/config"
	"github.com/kailas-cloud/billsearch/internal/docstore"
	"github.com/kailas-cloud/billsearch/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/billsearch/internal/logger"
	"github.com/kailas-cloud/billsearch/internal/metrics"
	chiTransport "github.com/kailas-cloud/billsearch/internal/transport/chi"
	answeruc "github.com/kailas-cloud/billsearch/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/billsearch/internal/usecase/health"
	profileuc "github.com/kailas-cloud/billsearch/internal/usecase/profile"
	"github.com/kailas-cloud/billsearch/internal/usecase/readiness"
	retrieveuc "github.com/kailas-cloud/billsearch/internal/usecase/retrieve"
	"github.com/kailas-cloud/billsearch/internal/version"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("failed to load .env: " + err.Error())
	}

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level, "server")
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting billsearch API server",
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Bool("strict_state", cfg.Readiness.Strict()),
		zap.String("documents", cfg.Documents.Source),
		zap.String("artifact_dir", cfg.Index.ArtifactDir),
	)

	ctx := context.Background()

	store, err := bootstrap.OpenKV(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open KV store", zap.Error(err))
	}
	defer store.Close()

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterGenerationMetrics()

	embedders := bootstrap.NewEmbedders(cfg.Embedding, store, cfg.Database.KeyPrefix, logger)
	generator := bootstrap.NewGenerator(cfg.Generation, logger)
	logger.Info("Providers created",
		zap.String("embedder", embedders.Identifier),
		zap.String("generation_model", generator.Model()),
	)

	gate := readiness.NewGate(logger)
	initDone := gate.InitializeAsync(ctx, readiness.Loader{
		Store: func(ctx context.Context) (*docstore.Store, error) {
			return docstore.Load(ctx, cfg.Documents.Source)
		},
		Artifact: func(ctx context.Context) (*artifact.Artifact, error) {
			return bootstrap.LoadArtifact(ctx, cfg.Index.ArtifactDir, cfg.ObjectStore, logger)
		},
		Embedder: func(context.Context) (readiness.EmbedderHandle, error) {
			return readiness.EmbedderHandle{Embedder: embedders.Query, Identifier: embedders.Identifier}, nil
		},
	})

	strict := cfg.Readiness.Strict()
	retriever := retrieveuc.New(gate, request.Limits{DefaultK: cfg.Index.DefaultK, MaxK: cfg.Index.MaxK}).
		WithStrictState(strict)
	answers := answeruc.New(generator).
		WithTimeout(time.Duration(cfg.Generation.TimeoutSec) * time.Second).
		WithSystemPrompt(cfg.Generation.SystemPrompt).
		WithExecStyle(cfg.Generation.Polished())
	profiles := profileuc.New(store, cfg.Database.KeyPrefix, time.Duration(cfg.Profiles.TTLHours)*time.Hour)
	healthSvc := healthuc.New(store, gate, embedders.Health, generator)

	server := chiTransport.NewServer(
		gate, retriever, answers, profiles, healthSvc, cfg.HTTP.MaxConcurrentQueries, logger,
	).WithStrictState(strict)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	exitCode := 0
	for waiting := true; waiting; {
		select {
		case err := <-initDone:
			initDone = nil
			if err != nil {
				// FAILED is terminal: stop serving instead of running degraded.
				logger.Error("Startup failed, shutting down", zap.Error(err))
				exitCode = 1
				waiting = false
			}
		case <-quit:
			logger.Info("Received shutdown signal")
			waiting = false
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped", zap.Int("exit_code", exitCode))
	if exitCode != 0 {
		cancel()
		_ = logger.Sync()
		store.Close()
		os.Exit(exitCode)
	}
}
