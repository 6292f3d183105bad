// Package readinesstest builds READY gates over in-memory documents for tests.
package readinesstest

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/billsearch/internal/artifact"
	"github.com/kailas-cloud/billsearch/internal/docstore"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
	"github.com/kailas-cloud/billsearch/internal/embedding/hashvec"
	"github.com/kailas-cloud/billsearch/internal/usecase/build"
	embeddinguc "github.com/kailas-cloud/billsearch/internal/usecase/embedding"
	"github.com/kailas-cloud/billsearch/internal/usecase/readiness"
)

// Loader returns a loader that hands out already constructed components.
func Loader(store *docstore.Store, art *artifact.Artifact, emb readiness.EmbedderHandle) readiness.Loader {
	return readiness.Loader{
		Store:    func(context.Context) (*docstore.Store, error) { return store, nil },
		Artifact: func(context.Context) (*artifact.Artifact, error) { return art, nil },
		Embedder: func(context.Context) (readiness.EmbedderHandle, error) { return emb, nil },
	}
}

// NewReadyGate indexes docs with the local hashing embedder and returns a READY gate.
func NewReadyGate(ctx context.Context, docs []document.Document, dims int) (*readiness.Gate, error) {
	store, err := docstore.New(docs)
	if err != nil {
		return nil, err
	}
	emb := hashvec.New(dims)
	id := embeddinguc.Identifier("local", "hashvec", emb.Dimensions(), "", "")

	art, err := build.New(emb, id, zap.NewNop()).Build(ctx, store)
	if err != nil {
		return nil, err
	}

	g := readiness.NewGate(zap.NewNop())
	if err := g.Initialize(ctx, Loader(store, art, readiness.EmbedderHandle{Embedder: emb, Identifier: id})); err != nil {
		return nil, err
	}
	return g, nil
}
