package readiness

import (
	"context"

	"github.com/kailas-cloud/billsearch/internal/artifact"
	"github.com/kailas-cloud/billsearch/internal/docstore"
	"github.com/kailas-cloud/billsearch/internal/domain"
)

// Loader produces the serving components. Initialize calls the steps in field order.
type Loader struct {
	Store    func(ctx context.Context) (*docstore.Store, error)
	Artifact func(ctx context.Context) (*artifact.Artifact, error)
	Embedder func(ctx context.Context) (EmbedderHandle, error)
}

// EmbedderHandle is the query embedder with the identifier of its configuration.
type EmbedderHandle struct {
	Embedder   domain.Embedder
	Identifier string
}
