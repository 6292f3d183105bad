// Package hashvec is a deterministic local embedder based on feature hashing.
// It needs no network access, so the index can be built and served offline and in tests.
package hashvec

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/billsearch/internal/domain"
)

// Compile-time checks.
var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.BatchEmbedder = (*Embedder)(nil)
	_ domain.HealthChecker = (*Embedder)(nil)
)

// DefaultDimensions is the vector length used when none is configured.
const DefaultDimensions = 1024

const (
	termWeight    = 1.0
	trigramWeight = 0.25
)

// Embedder hashes stemmed terms and their character trigrams into a fixed number of
// buckets, applies sublinear term frequency and L2-normalizes the result.
type Embedder struct {
	dims int
}

// New creates a hashing embedder with the given dimensionality (DefaultDimensions when <= 0).
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dims: dims}
}

// Dimensions returns the vector length.
func (e *Embedder) Dimensions() int { return e.dims }

// Embed implements domain.Embedder. Token usage is reported as the number of terms.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("hashvec: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: empty input", domain.ErrEmbedding)
	}

	terms := tokens(text)
	if len(terms) == 0 {
		// only stopwords or punctuation: fall back to the raw text's trigrams
		terms = []string{strings.ToLower(strings.TrimSpace(text))}
	}

	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}

	vec := make([]float32, e.dims)
	for term, n := range tf {
		w := termWeight * (1 + math.Log(float64(n)))
		vec[e.bucket("w:"+term)] += float32(w)
		for _, g := range trigrams(term) {
			vec[e.bucket("g:"+g)] += float32(trigramWeight * w)
		}
	}
	normalize(vec)

	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: len(terms),
		TotalTokens:  len(terms),
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		res, err := e.Embed(ctx, t)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("text [%d]: %w", i, err)
		}
		out.Embeddings[i] = res.Embedding
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) bucket(feature string) int {
	return int(xxhash.Sum64String(feature) % uint64(e.dims))
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
