package build

import (
	"context"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
)

// DocumentSource lists the documents to index in a stable order.
type DocumentSource interface {
	Documents() []document.Document
}

// Embedder vectorizes document texts.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
