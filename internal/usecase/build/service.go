package build

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/billsearch/internal/artifact"
	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/vectorindex"
)

// Defaults for batching and parallelism.
const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// Service embeds a document source and produces an index artifact.
type Service struct {
	embed       Embedder
	embedderID  string
	batchSize   int
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

// New creates a build service. embedderID is recorded in the manifest and must match
// the identifier the server computes from the same configuration.
func New(embed Embedder, embedderID string, logger *zap.Logger) *Service {
	return &Service{
		embed:       embed,
		embedderID:  embedderID,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		logger:      logger,
	}
}

// WithBatchSize sets how many texts go into one embedding call.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// WithConcurrency sets how many embedding calls run at once.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Build embeds every document in source order. Index position i holds the i-th document.
// Any failure is returned wrapped in domain.ErrBuild.
func (s *Service) Build(ctx context.Context, src DocumentSource) (*artifact.Artifact, error) {
	docs := src.Documents()
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrBuild, domain.ErrEmptyIndex)
	}

	start := time.Now()
	ids := make([]int64, len(docs))
	texts := make([]string, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID()
		texts[i] = docs[i].Text()
	}

	vectors := make([][]float32, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for lo := 0; lo < len(texts); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(texts))
		g.Go(func() error {
			res, err := domain.BatchEmbed(gctx, s.embed, texts[lo:hi])
			if err != nil {
				return fmt.Errorf("embed documents %d..%d: %w", ids[lo], ids[hi-1], err)
			}
			copy(vectors[lo:hi], res.Embeddings)
			s.logger.Debug("Embedded batch", zap.Int("from", lo), zap.Int("to", hi))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBuild, err)
	}

	ix, err := vectorindex.Build(vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: build index: %w", domain.ErrBuild, err)
	}

	a, err := artifact.New(ix, ids, s.embedderID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBuild, err)
	}

	s.logger.Info("Index built",
		zap.Int("documents", ix.Len()),
		zap.Int("dimensions", ix.Dims()),
		zap.String("embedder", s.embedderID),
		zap.Duration("elapsed", time.Since(start)),
	)
	return a, nil
}
