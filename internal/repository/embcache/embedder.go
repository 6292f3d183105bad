// Package embcache memoizes embeddings in the KV store. Repeated questions skip the
// provider, and concurrent misses for the same text share one provider call.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/billsearch/internal/db"
	"github.com/kailas-cloud/billsearch/internal/domain"
)

// Cache lookup outcomes used as the "result" metric label.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"
)

// defaultCallTimeout bounds a shared provider call when Config.CallTimeout is unset.
const defaultCallTimeout = 30 * time.Second

// entryHeader is the dimensionality prefix stored before the little-endian float32 values.
const entryHeader = 4

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config controls key scoping and expiry.
type Config struct {
	// KeyPrefix should include the embedder identifier so a model change never serves stale vectors.
	KeyPrefix string
	// TTL <= 0 keeps entries until evicted by the store.
	TTL time.Duration
	// Dimensions rejects cached vectors of another size when > 0.
	Dimensions int
	// CallTimeout bounds the provider call shared by concurrent misses.
	CallTimeout time.Duration
	// Lookups counts cache lookups by result; may be nil.
	Lookups *prometheus.CounterVec
}

// CachedEmbedder decorates an embedder with a KV-backed cache.
type CachedEmbedder struct {
	inner  domain.Embedder
	store  store
	cfg    Config
	flight singleflight.Group
	logger *zap.Logger
}

// New creates a caching decorator.
func New(inner domain.Embedder, s store, cfg Config, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{inner: inner, store: s, cfg: cfg, logger: logger}
}

// Embed returns a cached vector with zero token usage, or embeds and stores the text.
// Concurrent misses share one provider call; only the caller that issued it is billed.
// The shared call is detached from the issuing request, so one caller giving up does
// not fail the others.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	leader := false
	ch := c.flight.DoChan(key, func() (any, error) {
		leader = true
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout())
		defer cancel()

		res, err := c.inner.Embed(callCtx, text)
		if err != nil {
			return nil, err
		}
		c.save(callCtx, key, res.Embedding)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", r.Err)
		}
		res := r.Val.(domain.EmbeddingResult)
		if !leader {
			return domain.EmbeddingResult{Embedding: res.Embedding}, nil
		}
		return res, nil
	}
}

func (c *CachedEmbedder) callTimeout() time.Duration {
	if c.cfg.CallTimeout > 0 {
		return c.cfg.CallTimeout
	}
	return defaultCallTimeout
}

// BatchEmbed serves hits from the store and embeds the misses in a single batch.
// Output order matches input order.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missAt []int
	var missTexts []string
	for i, text := range texts {
		keys[i] = c.key(text)
		if vec, ok := c.lookup(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		missAt = append(missAt, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	res, err := domain.BatchEmbed(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed misses: %w", err)
	}
	if len(res.Embeddings) != len(missTexts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"%w: provider returned %d vectors for %d texts", domain.ErrEmbedding, len(res.Embeddings), len(missTexts))
	}

	for j, i := range missAt {
		out[i] = res.Embeddings[j]
		c.save(ctx, keys[i], res.Embeddings[j])
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.cfg.KeyPrefix + hex.EncodeToString(sum[:])
}

// lookup treats store failures and corrupt entries as misses.
func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		c.count(resultMiss)
		return nil, false
	case err != nil:
		c.count(resultError)
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	vec, err := decodeEntry(data, c.cfg.Dimensions)
	if err != nil {
		c.count(resultError)
		c.logger.Warn("Discarding cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	c.count(resultHit)
	return vec, true
}

func (c *CachedEmbedder) save(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, encodeEntry(vec), c.cfg.TTL); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.cfg.Lookups != nil {
		c.cfg.Lookups.WithLabelValues(result).Inc()
	}
}

func encodeEntry(v []float32) []byte {
	buf := make([]byte, entryHeader+len(v)*4)
	binary.LittleEndian.PutUint32(buf, uint32(len(v)))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[entryHeader+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEntry(data []byte, wantDims int) ([]float32, error) {
	if len(data) < entryHeader {
		return nil, fmt.Errorf("cache entry of %d bytes has no header", len(data))
	}
	dims := int(binary.LittleEndian.Uint32(data))
	if len(data) != entryHeader+dims*4 {
		return nil, fmt.Errorf("cache entry declares %d dims but holds %d bytes", dims, len(data)-entryHeader)
	}
	if dims == 0 || (wantDims > 0 && dims != wantDims) {
		return nil, fmt.Errorf("cache entry has %d dims, want %d", dims, wantDims)
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[entryHeader+i*4:]))
	}
	return vec, nil
}
