// Package bootstrap assembles the components shared by the server and the index builder.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/billsearch/internal/config"
	"github.com/kailas-cloud/billsearch/internal/db"
	"github.com/kailas-cloud/billsearch/internal/db/memory"
	dbRedis "github.com/kailas-cloud/billsearch/internal/db/redis"
	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/embedding/hashvec"
	"github.com/kailas-cloud/billsearch/internal/metrics"
	"github.com/kailas-cloud/billsearch/internal/repository/embcache"
	openaiTransport "github.com/kailas-cloud/billsearch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/billsearch/internal/usecase/embedding"
)

// Embedders is the document/query pair built from one embedding configuration.
type Embedders struct {
	Document   domain.Embedder
	Query      domain.Embedder
	Health     domain.HealthChecker
	Identifier string
}

// OpenKV connects to Redis when addresses are configured and falls back to the
// process-local store otherwise.
func OpenKV(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (db.Store, error) {
	if len(cfg.Addrs) == 0 {
		logger.Info("Using in-memory KV store")
		return memory.NewStore(), nil
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:       cfg.Addrs,
		Password:    cfg.Password,
		DialTimeout: time.Duration(cfg.ReadinessTimeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	logger.Info("Connected to redis", zap.Strings("addrs", cfg.Addrs))
	return store, nil
}

// NewEmbedders builds the decorator chain provider -> cache -> instrumented -> instruction
// for documents and queries. kv may be nil to disable the cache.
func NewEmbedders(cfg config.EmbeddingConfig, kv db.KVStore, keyPrefix string, logger *zap.Logger) Embedders {
	id := embeddinguc.Identifier(
		cfg.Provider, cfg.Model, cfg.Dimensions, cfg.DocumentInstruction, cfg.QueryInstruction,
	)

	var base domain.Embedder
	var health domain.HealthChecker
	switch cfg.Provider {
	case config.ProviderLocal:
		h := hashvec.New(cfg.Dimensions)
		base, health = h, h
	default:
		o := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			MaxRetries: cfg.MaxRetries,
			Logger:     logger,
		})
		base, health = o, o
	}

	// Hashing is cheaper than a cache round trip.
	if kv != nil && cfg.Provider != config.ProviderLocal {
		base = embcache.New(base, kv, embcache.Config{
			KeyPrefix:   keyPrefix + "emb_cache:" + id + ":",
			TTL:         time.Duration(cfg.CacheTTLHours) * time.Hour,
			Dimensions:  cfg.Dimensions,
			CallTimeout: time.Duration(cfg.TimeoutSec) * time.Second,
			Lookups:     metrics.EmbeddingCacheTotal,
		}, logger)
	}

	instrumented := embeddinguc.NewInstrumentedEmbedder(base, embeddinguc.Options{
		Provider:      cfg.Provider,
		Model:         cfg.Model,
		Dimensions:    cfg.Dimensions,
		MaxInputChars: cfg.MaxInputChars,
		Timeout:       time.Duration(cfg.TimeoutSec) * time.Second,
	}, logger)

	return Embedders{
		Document:   withInstruction(instrumented, cfg.DocumentInstruction),
		Query:      withInstruction(instrumented, cfg.QueryInstruction),
		Health:     health,
		Identifier: id,
	}
}

func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}
