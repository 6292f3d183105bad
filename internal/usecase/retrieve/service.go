// Package retrieve turns a query into ranked, resolved documents.
package retrieve

import (
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
	"github.com/kailas-cloud/billsearch/internal/domain/search/hit"
	"github.com/kailas-cloud/billsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/billsearch/internal/domain/search/request"
	"github.com/kailas-cloud/billsearch/internal/logger"
	"github.com/kailas-cloud/billsearch/internal/metrics"
	"github.com/kailas-cloud/billsearch/internal/usecase/readiness"
)

// Query is an unvalidated retrieval request.
type Query struct {
	Text  string
	K     int
	Mode  mode.Mode
	State string
}

// Service retrieves documents in semantic, keyword or hybrid mode.
type Service struct {
	gate   Gate
	limits request.Limits
	strict bool
}

// New creates a retriever in strict mode.
func New(gate Gate, limits request.Limits) *Service {
	return &Service{gate: gate, limits: limits, strict: true}
}

// WithStrictState controls whether readiness is checked before validation.
func (s *Service) WithStrictState(strict bool) *Service {
	s.strict = strict
	return s
}

// Limits returns the configured k limits.
func (s *Service) Limits() request.Limits { return s.limits }

// Retrieve validates q and runs it. In strict mode a non-ready service is reported
// before any parameter error.
func (s *Service) Retrieve(ctx context.Context, q Query) ([]hit.Hit, error) {
	if s.strict {
		if err := s.gate.EnsureReady(); err != nil {
			return nil, err
		}
	}
	req, err := request.New(q.Text, q.K, q.Mode, q.State, s.limits)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, req)
}

// Search runs an already validated request against the current snapshot.
func (s *Service) Search(ctx context.Context, req request.Request) ([]hit.Hit, error) {
	snap, err := s.gate.Snapshot()
	if err != nil {
		return nil, err
	}

	switch req.Mode() {
	case mode.Semantic, mode.Keyword, mode.Hybrid:
	default:
		return nil, fmt.Errorf("%w: unsupported search mode %q", domain.ErrValidation, req.Mode())
	}

	start := time.Now()
	// Every mode embeds the query: hits carry cosine similarity for re-ranking.
	qv, err := embedQuery(ctx, snap, req.Query())
	if err != nil {
		return nil, err
	}

	var found []candidate
	switch req.Mode() {
	case mode.Keyword:
		found, err = s.keyword(ctx, snap, req)
	case mode.Hybrid:
		found, err = s.hybrid(ctx, snap, req, qv)
	default:
		found, err = s.semantic(snap, req, qv)
	}
	if err != nil {
		return nil, err
	}

	hits, err := resolve(snap, found, qv)
	if err != nil {
		return nil, err
	}

	label := string(req.Mode())
	metrics.RetrievalDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	metrics.RetrievalHits.WithLabelValues(label).Observe(float64(len(hits)))
	logger.FromContext(ctx).Debug("Retrieved",
		zap.String("mode", label),
		zap.Int("k", req.TopK()),
		zap.Bool("k_clamped", req.Clamped()),
		zap.String("state", req.State()),
		zap.Int("hits", len(hits)),
	)
	return hits, nil
}

// embedQuery vectorizes the query text and checks it against the artifact.
func embedQuery(ctx context.Context, snap *readiness.Snapshot, text string) ([]float32, error) {
	m := snap.Artifact.Manifest
	if snap.EmbedderID != m.EmbedderIdentifier {
		return nil, fmt.Errorf("%w: index built with %q, query embedder is %q",
			domain.ErrModelMismatch, m.EmbedderIdentifier, snap.EmbedderID)
	}

	res, err := snap.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	if len(res.Embedding) != m.Dimensionality {
		return nil, fmt.Errorf("%w: query vector has %d dims, index has %d",
			domain.ErrDimensionMismatch, len(res.Embedding), m.Dimensionality)
	}
	return res.Embedding, nil
}

func (s *Service) semantic(snap *readiness.Snapshot, req request.Request, qv []float32) ([]candidate, error) {
	allow := stateFilter(snap, req.State())
	results, err := snap.Artifact.Index.Search(qv, req.TopK(), allow)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	out := make([]candidate, len(results))
	for i, r := range results {
		out[i] = candidate{id: snap.Artifact.IDAt(r.Position), score: float64(r.Score)}
	}
	return out, nil
}

func (s *Service) keyword(ctx context.Context, snap *readiness.Snapshot, req request.Request) ([]candidate, error) {
	found, err := snap.Keyword.Search(ctx, req.Query(), req.TopK(), req.State())
	if err != nil {
		return nil, err
	}
	out := make([]candidate, len(found))
	for i, h := range found {
		out[i] = candidate{id: h.ID, score: h.Score}
	}
	return out, nil
}

func (s *Service) hybrid(
	ctx context.Context, snap *readiness.Snapshot, req request.Request, qv []float32,
) ([]candidate, error) {
	sem, err := s.semantic(snap, req, qv)
	if err != nil {
		return nil, err
	}
	kw, err := s.keyword(ctx, snap, req)
	if err != nil {
		return nil, err
	}
	return fuseRRF(sem, kw, req.TopK()), nil
}

// stateFilter returns the index positions of documents in the given jurisdiction,
// or nil when no filter applies.
func stateFilter(snap *readiness.Snapshot, state string) *roaring.Bitmap {
	if state == "" {
		return nil
	}
	allow := roaring.New()
	it := snap.Store.IDsWhere(document.MetaState, state).Iterator()
	for it.HasNext() {
		if pos, ok := snap.PositionOf(int64(it.Next())); ok {
			allow.Add(uint32(pos))
		}
	}
	return allow
}

// resolve maps ids to documents and attaches each document's cosine similarity to
// the query. A missing document or position means the index and store disagree and
// is reported, never skipped.
func resolve(snap *readiness.Snapshot, found []candidate, qv []float32) ([]hit.Hit, error) {
	docs := make([]document.Document, len(found))
	positions := make([]int, len(found))
	for i, c := range found {
		doc, err := snap.Store.Resolve(c.id)
		if err != nil {
			return nil, fmt.Errorf("resolve hit: %w", err)
		}
		pos, ok := snap.PositionOf(c.id)
		if !ok {
			return nil, fmt.Errorf("resolve hit: document %d is not indexed: %w", c.id, domain.ErrNotFound)
		}
		docs[i], positions[i] = doc, pos
	}

	sims, err := snap.Artifact.Index.Similarities(qv, positions)
	if err != nil {
		return nil, fmt.Errorf("score hits: %w", err)
	}

	hits := make([]hit.Hit, len(found))
	for i, c := range found {
		hits[i] = hit.New(docs[i], c.score, i+1).WithSimilarity(float64(sims[i]))
	}
	return hits, nil
}
