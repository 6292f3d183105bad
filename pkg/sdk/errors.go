package billsearch

import "github.com/kailas-cloud/billsearch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrLoad          = domain.ErrLoad
	ErrBuild         = domain.ErrBuild
	ErrEmptyIndex    = domain.ErrEmptyIndex
	ErrNotReady      = domain.ErrNotReady
	ErrModelMismatch = domain.ErrModelMismatch
	ErrNotFound      = domain.ErrNotFound
	ErrEmbedding     = domain.ErrEmbedding
	ErrValidation    = domain.ErrValidation
	ErrTimeout       = domain.ErrTimeout
	ErrGeneration    = domain.ErrGeneration
)
