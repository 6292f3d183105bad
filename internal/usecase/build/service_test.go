package build

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
	"github.com/kailas-cloud/billsearch/internal/embedding/hashvec"
)

type sliceSource []document.Document

func (s sliceSource) Documents() []document.Document { return s }

func testDocs(t *testing.T) sliceSource {
	t.Helper()
	texts := []string{
		"Requires impact assessments for automated employment decision tools.",
		"Creates an artificial intelligence task force for state agencies.",
		"Prohibits deceptive deepfake media in election campaigns.",
		"Regulates facial recognition technology used by law enforcement.",
		"Requires disclosure when consumers interact with a chatbot.",
	}
	docs := make(sliceSource, len(texts))
	for i, text := range texts {
		d, err := document.New(int64(100+i), text, nil)
		if err != nil {
			t.Fatalf("document.New: %v", err)
		}
		docs[i] = d
	}
	return docs
}

// countingEmbedder records BatchEmbed calls and optionally fails.
type countingEmbedder struct {
	inner   *hashvec.Embedder
	mu      sync.Mutex
	batches [][]string
	failOn  string
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	c.mu.Lock()
	c.batches = append(c.batches, texts)
	c.mu.Unlock()
	for _, t := range texts {
		if c.failOn != "" && t == c.failOn {
			return domain.BatchEmbeddingResult{}, errors.New("provider unavailable")
		}
	}
	return c.inner.BatchEmbed(ctx, texts)
}

func TestBuild(t *testing.T) {
	docs := testDocs(t)
	emb := &countingEmbedder{inner: hashvec.New(128)}

	a, err := New(emb, "local/hashvec@128", zap.NewNop()).WithBatchSize(2).WithConcurrency(2).Build(context.Background(), docs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	m := a.Manifest
	if m.DocumentCount != len(docs) || m.Dimensionality != 128 || m.EmbedderIdentifier != "local/hashvec@128" {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	for i, d := range docs {
		if m.Positions[i] != d.ID() {
			t.Errorf("position %d: expected id %d, got %d", i, d.ID(), m.Positions[i])
		}
	}
	if len(emb.batches) != 3 {
		t.Errorf("expected 3 batches for 5 docs with size 2, got %d", len(emb.batches))
	}

	// Each document retrieves itself first.
	for i, d := range docs {
		res, _ := emb.inner.Embed(context.Background(), d.Text())
		hits, err := a.Index.Search(res.Embedding, 1, nil)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if hits[0].Position != i {
			t.Errorf("doc %d: expected self at position %d, got %d", d.ID(), i, hits[0].Position)
		}
	}
}

func TestBuild_Idempotent(t *testing.T) {
	docs := testDocs(t)
	svc := New(hashvec.New(64), "local/hashvec@64", zap.NewNop()).WithBatchSize(3)

	a, err := svc.Build(context.Background(), docs)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	b, err := svc.Build(context.Background(), docs)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}

	if a.Manifest.DocumentCount != b.Manifest.DocumentCount ||
		a.Manifest.Dimensionality != b.Manifest.Dimensionality ||
		a.Manifest.VectorsChecksum != b.Manifest.VectorsChecksum {
		t.Fatalf("builds differ: %+v vs %+v", a.Manifest, b.Manifest)
	}

	q, _ := hashvec.New(64).Embed(context.Background(), "deepfake election ads")
	ra, _ := a.Index.Search(q.Embedding, 5, nil)
	rb, _ := b.Index.Search(q.Embedding, 5, nil)
	for i := range ra {
		if ra[i] != rb[i] {
			t.Fatalf("ranking differs at %d: %+v vs %+v", i, ra[i], rb[i])
		}
	}
}

func TestBuild_EmbedFailure(t *testing.T) {
	docs := testDocs(t)
	emb := &countingEmbedder{inner: hashvec.New(32), failOn: docs[3].Text()}

	_, err := New(emb, "x", zap.NewNop()).WithBatchSize(2).Build(context.Background(), docs)
	if !errors.Is(err, domain.ErrBuild) {
		t.Fatalf("expected ErrBuild, got %v", err)
	}
}

func TestBuild_Empty(t *testing.T) {
	_, err := New(hashvec.New(8), "x", zap.NewNop()).Build(context.Background(), sliceSource{})
	if !errors.Is(err, domain.ErrBuild) || !errors.Is(err, domain.ErrEmptyIndex) {
		t.Fatalf("expected ErrBuild wrapping ErrEmptyIndex, got %v", err)
	}
}

func TestBuild_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(hashvec.New(8), "x", zap.NewNop()).Build(ctx, testDocs(t))
	if !errors.Is(err, domain.ErrBuild) {
		t.Fatalf("expected ErrBuild, got %v", err)
	}
}
