// Command billindex builds the vector index artifact from the bills table.
//
// Usage:
//
//	billindex -source data/bills.parquet -out data/index -publish
//
// Settings not given as flags come from config/<ENV>.yaml.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/billsearch/internal/bootstrap"
	"github.com/kailas-cloud/billsearch/internal/config"
	"github.com/kailas-cloud/billsearch/internal/docstore"
	logpkg "github.com/kailas-cloud/billsearch/internal/logger"
	"github.com/kailas-cloud/billsearch/internal/metrics"
	"github.com/kailas-cloud/billsearch/internal/usecase/build"
	"github.com/kailas-cloud/billsearch/internal/version"
)

type options struct {
	source      string
	out         string
	batchSize   int
	concurrency int
	publish     bool
	showVersion bool
}

func parseFlags() options {
	o := options{}
	flag.StringVar(&o.source, "source", "", "document table (.csv or .parquet); overrides documents.source")
	flag.StringVar(&o.out, "out", "", "artifact directory; overrides index.artifact_dir")
	flag.IntVar(&o.batchSize, "batch-size", 0, "texts per embedding call; overrides index.batch_size")
	flag.IntVar(&o.concurrency, "concurrency", 0, "parallel embedding calls; overrides index.concurrency")
	flag.BoolVar(&o.publish, "publish", false, "upload the artifact to the configured object store")
	flag.BoolVar(&o.showVersion, "version", false, "print version and exit")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()
	if opts.showVersion {
		fmt.Println(version.String())
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("failed to load .env: " + err.Error())
	}

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	applyOverrides(&cfg, opts)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level, "indexer")
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, opts.publish, logger); err != nil {
		cancel()
		logger.Fatal("Index build failed", zap.Error(err))
	}
}

func applyOverrides(cfg *config.Config, o options) {
	if o.source != "" {
		cfg.Documents.Source = o.source
	}
	if o.out != "" {
		cfg.Index.ArtifactDir = o.out
	}
	if o.batchSize > 0 {
		cfg.Index.BatchSize = o.batchSize
	}
	if o.concurrency > 0 {
		cfg.Index.Concurrency = o.concurrency
	}
}

func run(ctx context.Context, cfg config.Config, publish bool, logger *zap.Logger) error {
	start := time.Now()
	logger.Info("Building index",
		zap.String("source", cfg.Documents.Source),
		zap.String("artifact_dir", cfg.Index.ArtifactDir),
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
	)

	store, err := docstore.Load(ctx, cfg.Documents.Source)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	logger.Info("Documents loaded", zap.Int("count", store.Len()))

	kv, err := bootstrap.OpenKV(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open kv store: %w", err)
	}
	defer kv.Close()

	metrics.RegisterEmbeddingMetrics()
	embedders := bootstrap.NewEmbedders(cfg.Embedding, kv, cfg.Database.KeyPrefix, logger)

	art, err := build.New(embedders.Document, embedders.Identifier, logger).
		WithBatchSize(cfg.Index.BatchSize).
		WithConcurrency(cfg.Index.Concurrency).
		Build(ctx, store)
	if err != nil {
		return err //nolint:wrapcheck // already wrapped with ErrBuild
	}

	if err := art.Write(cfg.Index.ArtifactDir); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	logger.Info("Artifact written",
		zap.String("dir", cfg.Index.ArtifactDir),
		zap.Int("documents", art.Manifest.DocumentCount),
		zap.Int("dimensions", art.Manifest.Dimensionality),
		zap.String("embedder", art.Manifest.EmbedderIdentifier),
		zap.Uint32("checksum", art.Manifest.VectorsChecksum),
	)

	if publish {
		if !cfg.ObjectStore.Enabled() {
			return errors.New("-publish requires object_store.endpoint and object_store.bucket")
		}
		if _, err := bootstrap.PublishArtifact(ctx, cfg.Index.ArtifactDir, cfg.ObjectStore); err != nil {
			return err //nolint:wrapcheck // already wrapped
		}
		logger.Info("Artifact published",
			zap.String("bucket", cfg.ObjectStore.Bucket),
			zap.String("prefix", cfg.ObjectStore.Prefix),
		)
	}

	logger.Info("Index build complete", zap.Duration("elapsed", time.Since(start)))
	return nil
}
