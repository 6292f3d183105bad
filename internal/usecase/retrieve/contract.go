package retrieve

import "github.com/kailas-cloud/billsearch/internal/usecase/readiness"

// Gate exposes readiness and the loaded components.
type Gate interface {
	EnsureReady() error
	Snapshot() (*readiness.Snapshot, error)
}
