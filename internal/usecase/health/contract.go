package health

import (
	"context"

	"github.com/kailas-cloud/billsearch/internal/domain"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker checks availability of an external provider (embedding or generation).
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// StateReader reports the readiness gate state and, when FAILED, its cause.
type StateReader interface {
	State() (domain.ReadinessState, error)
}
