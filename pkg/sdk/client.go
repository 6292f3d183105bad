package billsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/billsearch/internal/artifact"
	"github.com/kailas-cloud/billsearch/internal/docstore"
	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
	"github.com/kailas-cloud/billsearch/internal/domain/search/hit"
	"github.com/kailas-cloud/billsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/billsearch/internal/domain/search/request"
	"github.com/kailas-cloud/billsearch/internal/embedding/hashvec"
	answeruc "github.com/kailas-cloud/billsearch/internal/usecase/answer"
	"github.com/kailas-cloud/billsearch/internal/usecase/build"
	embeddinguc "github.com/kailas-cloud/billsearch/internal/usecase/embedding"
	"github.com/kailas-cloud/billsearch/internal/usecase/readiness"
	retrieveuc "github.com/kailas-cloud/billsearch/internal/usecase/retrieve"
)

const defaultGeneratorTimeout = 30 * time.Second

// Internal interfaces for substitution in tests.
type retrieveUseCase interface {
	Retrieve(ctx context.Context, q retrieveuc.Query) ([]hit.Hit, error)
}

type answerUseCase interface {
	Synthesize(ctx context.Context, question string, hits []hit.Hit) (answeruc.Answer, error)
}

// Client answers questions over a loaded index.
type Client struct {
	gate      *readiness.Gate
	retriever retrieveUseCase
	answers   answerUseCase
	obs       *observer
	defaultK  int
}

// Open loads the documents, the artifact and the embedder and verifies that they
// agree. It returns ErrLoad or ErrModelMismatch when they do not.
func Open(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := newConfig(opts)
	if cfg.documents == "" || cfg.artifactDir == "" {
		return nil, errors.New("billsearch: documents and artifact are required (use WithDocuments and WithArtifact)")
	}
	emb, id, err := cfg.domainEmbedder()
	if err != nil {
		return nil, err
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	gate := readiness.NewGate(zap.NewNop())
	err = gate.Initialize(ctx, readiness.Loader{
		Store: func(ctx context.Context) (*docstore.Store, error) {
			return docstore.Load(ctx, cfg.documents)
		},
		Artifact: func(context.Context) (*artifact.Artifact, error) {
			return artifact.Load(cfg.artifactDir)
		},
		Embedder: func(context.Context) (readiness.EmbedderHandle, error) {
			return readiness.EmbedderHandle{Embedder: emb, Identifier: id}, nil
		},
	})
	obs.observe("open", start, err)
	if err != nil {
		return nil, fmt.Errorf("billsearch: open: %w", err)
	}

	return wireClient(gate, cfg, obs), nil
}

func wireClient(gate *readiness.Gate, cfg *clientConfig, obs *observer) *Client {
	c := &Client{
		gate:      gate,
		retriever: retrieveuc.New(gate, request.Limits{DefaultK: cfg.defaultK, MaxK: cfg.maxK}),
		obs:       obs,
		defaultK:  cfg.defaultK,
	}
	if cfg.generator != nil {
		c.answers = answeruc.New(&generatorAdapter{inner: cfg.generator}).
			WithTimeout(cfg.generatorTimeout).
			WithSystemPrompt(cfg.systemPrompt).
			WithExecStyle(cfg.execStyle)
	}
	return c
}

// BuildIndex embeds every document and writes the artifact directory.
func BuildIndex(ctx context.Context, opts ...Option) (err error) {
	cfg := newConfig(opts)
	if cfg.documents == "" || cfg.artifactDir == "" {
		return errors.New("billsearch: documents and artifact are required (use WithDocuments and WithArtifact)")
	}
	emb, id, err := cfg.domainEmbedder()
	if err != nil {
		return err
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() { obs.observe("build", start, err) }()

	store, err := docstore.Load(ctx, cfg.documents)
	if err != nil {
		return fmt.Errorf("billsearch: load documents: %w", err)
	}
	a, err := build.New(emb, id, zap.NewNop()).
		WithBatchSize(cfg.batchSize).
		WithConcurrency(cfg.concurrency).
		Build(ctx, store)
	if err != nil {
		return fmt.Errorf("billsearch: %w", err)
	}
	if err := a.Write(cfg.artifactDir); err != nil {
		return fmt.Errorf("billsearch: write artifact: %w", err)
	}
	return nil
}

// Search retrieves the bills closest to query.
func (c *Client) Search(ctx context.Context, query string, opts ...SearchOption) (hits []Hit, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	found, err := c.retriever.Retrieve(ctx, c.query(query, opts))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return hitsFromDomain(found), nil
}

// Ask retrieves bills for question and generates an answer grounded on them.
func (c *Client) Ask(ctx context.Context, question string, opts ...SearchOption) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	if c.answers == nil {
		return Answer{}, errors.New("billsearch: ask requires a generator (use WithGenerator)")
	}

	found, err := c.retriever.Retrieve(ctx, c.query(question, opts))
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	a, err := c.answers.Synthesize(ctx, question, found)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return Answer{Text: a.Text, Citations: a.Citations, Hits: hitsFromDomain(found)}, nil
}

// Documents returns the number of indexed documents.
func (c *Client) Documents() int {
	snap, err := c.gate.Snapshot()
	if err != nil {
		return 0
	}
	return snap.Store.Len()
}

// EmbedderIdentifier returns the identifier recorded in the loaded artifact.
func (c *Client) EmbedderIdentifier() string {
	snap, err := c.gate.Snapshot()
	if err != nil {
		return ""
	}
	return snap.Artifact.Manifest.EmbedderIdentifier
}

func (c *Client) query(text string, opts []SearchOption) retrieveuc.Query {
	sc := searchConfig{topK: c.defaultK}
	for _, o := range opts {
		o(&sc)
	}
	return retrieveuc.Query{Text: text, K: sc.topK, Mode: mode.Mode(sc.mode), State: sc.state}
}

func newConfig(opts []Option) *clientConfig {
	cfg := &clientConfig{
		defaultK:         request.DefaultTopK,
		maxK:             request.MaxTopK,
		generatorTimeout: defaultGeneratorTimeout,
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	return cfg
}

func (c *clientConfig) domainEmbedder() (domain.Embedder, string, error) {
	switch {
	case c.embedder != nil:
		if c.embedderID == "" {
			return nil, "", errors.New("billsearch: embedder identifier is required")
		}
		return &embedderAdapter{inner: c.embedder}, c.embedderID, nil
	case c.localDims > 0:
		h := hashvec.New(c.localDims)
		return h, embeddinguc.Identifier("local", "hashvec", h.Dimensions(), "", ""), nil
	default:
		return nil, "", errors.New("billsearch: embedder required (use WithEmbedder or WithLocalEmbedder)")
	}
}

func hitsFromDomain(hits []hit.Hit) []Hit {
	out := make([]Hit, len(hits))
	for i := range hits {
		h := &hits[i]
		doc := h.Document()
		out[i] = Hit{
			ID:         h.DocumentID(),
			Score:      h.Score(),
			Rank:       h.Rank(),
			Title:      doc.Title(),
			State:      doc.State(),
			Date:       doc.Meta(document.MetaDate),
			URL:        doc.Meta(document.MetaURL),
			Categories: doc.Categories(),
			Snippet:    h.Snippet(),
			Metadata:   doc.Metadata(),
		}
	}
	return out
}
