// Package readiness owns the process lifecycle state and the loaded serving components.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/billsearch/internal/artifact"
	"github.com/kailas-cloud/billsearch/internal/docstore"
	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/lexical"
	"github.com/kailas-cloud/billsearch/internal/metrics"
)

// ErrAlreadyInitialized is returned when Initialize runs more than once.
var ErrAlreadyInitialized = errors.New("readiness gate already initialized")

// Snapshot is the immutable set of components published on READY.
type Snapshot struct {
	Store      *docstore.Store
	Artifact   *artifact.Artifact
	Embedder   domain.Embedder
	EmbedderID string
	Keyword    *lexical.Index
	positions  map[int64]int
}

// PositionOf returns the index position of a document id.
func (s *Snapshot) PositionOf(id int64) (int, bool) {
	pos, ok := s.positions[id]
	return pos, ok
}

// Gate is the readiness state machine. State and snapshot change together under one lock,
// so a reader sees either a non-ready state or a complete snapshot.
type Gate struct {
	mu     sync.RWMutex
	state  domain.ReadinessState
	cause  error
	snap   *Snapshot
	logger *zap.Logger
}

// NewGate creates a gate in UNINITIALIZED.
func NewGate(logger *zap.Logger) *Gate {
	g := &Gate{state: domain.StateUninitialized, logger: logger}
	metrics.ReadinessState.Set(float64(domain.StateUninitialized))
	return g
}

// State returns the current state and, when FAILED, the recorded cause.
func (g *Gate) State() (domain.ReadinessState, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state, g.cause
}

// EnsureReady returns nil in READY and a *domain.NotReadyError otherwise.
func (g *Gate) EnsureReady() error {
	_, err := g.Snapshot()
	return err
}

// Snapshot returns the published components, or a *domain.NotReadyError.
func (g *Gate) Snapshot() (*Snapshot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != domain.StateReady {
		return nil, domain.NewNotReady(g.state, g.cause)
	}
	return g.snap, nil
}

// Initialize loads the store, the artifact and the embedder in that order and checks
// that they agree. Any failure moves the gate to FAILED permanently.
func (g *Gate) Initialize(ctx context.Context, l Loader) error {
	g.mu.Lock()
	if g.state != domain.StateUninitialized {
		state := g.state
		g.mu.Unlock()
		return fmt.Errorf("%w: state is %s", ErrAlreadyInitialized, state)
	}
	g.state = domain.StateLoading
	g.mu.Unlock()
	metrics.ReadinessState.Set(float64(domain.StateLoading))

	start := time.Now()
	snap, err := load(ctx, l)
	if err != nil {
		g.fail(err)
		return err
	}

	g.mu.Lock()
	g.state = domain.StateReady
	g.snap = snap
	g.mu.Unlock()

	metrics.ReadinessState.Set(float64(domain.StateReady))
	metrics.IndexDocuments.Set(float64(snap.Artifact.Manifest.DocumentCount))
	g.logger.Info("Service ready",
		zap.Int("documents", snap.Store.Len()),
		zap.Int("dimensions", snap.Artifact.Manifest.Dimensionality),
		zap.String("embedder", snap.EmbedderID),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// InitializeAsync runs Initialize in the background. The channel receives its result.
func (g *Gate) InitializeAsync(ctx context.Context, l Loader) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- g.Initialize(ctx, l)
		close(done)
	}()
	return done
}

func (g *Gate) fail(err error) {
	g.mu.Lock()
	g.state = domain.StateFailed
	g.cause = err
	g.snap = nil
	g.mu.Unlock()

	metrics.ReadinessState.Set(float64(domain.StateFailed))
	g.logger.Error("Initialization failed", zap.Error(err))
}

func load(ctx context.Context, l Loader) (*Snapshot, error) {
	store, err := l.Store(ctx)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	art, err := l.Artifact(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	emb, err := l.Embedder(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	if err := verify(store, art, emb); err != nil {
		return nil, err
	}

	kw, err := lexical.Build(store.Documents())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLoad, err)
	}

	return &Snapshot{
		Store:      store,
		Artifact:   art,
		Embedder:   emb.Embedder,
		EmbedderID: emb.Identifier,
		Keyword:    kw,
		positions:  art.PositionsByID(),
	}, nil
}

// verify checks that the artifact describes exactly the loaded store and the configured embedder.
func verify(store *docstore.Store, art *artifact.Artifact, emb EmbedderHandle) error {
	m := art.Manifest
	if m.DocumentCount != store.Len() {
		return fmt.Errorf("%w: index has %d documents, store has %d", domain.ErrLoad, m.DocumentCount, store.Len())
	}
	for pos, id := range m.Positions {
		if !store.Contains(id) {
			return fmt.Errorf("%w: index position %d refers to unknown document %d", domain.ErrLoad, pos, id)
		}
	}
	if m.EmbedderIdentifier != emb.Identifier {
		return fmt.Errorf("%w: index built with %q, configured %q",
			domain.ErrModelMismatch, m.EmbedderIdentifier, emb.Identifier)
	}
	return nil
}
