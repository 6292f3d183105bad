package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad signals malformed or missing source data at startup.
	ErrLoad = errors.New("load error")
	// ErrEmbedding signals bad input to the embedding function or a provider failure.
	ErrEmbedding = errors.New("embedding error")
	// ErrEmptyIndex signals an attempt to build an index with no vectors.
	ErrEmptyIndex = errors.New("empty index")
	// ErrBuild signals a failed index build.
	ErrBuild = errors.New("build error")
	// ErrNotReady signals that the service has not reached READY.
	ErrNotReady = errors.New("not ready")
	// ErrModelMismatch signals that the query-time embedder differs from the build-time one.
	ErrModelMismatch = errors.New("embedding model mismatch")
	// ErrNotFound signals a missing document or resource.
	ErrNotFound = errors.New("not found")
	// ErrTimeout signals an external call that exceeded its budget.
	ErrTimeout = errors.New("timeout")
	// ErrGeneration signals a failed answer generation call.
	ErrGeneration = errors.New("generation error")
	// ErrValidation signals invalid request parameters.
	ErrValidation = errors.New("validation failed")
	// ErrDimensionMismatch signals a vector whose length differs from the index dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// NotReadyError wraps ErrNotReady with the gate state observed by the caller.
type NotReadyError struct {
	State ReadinessState
	Cause error
}

func (e *NotReadyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: state is %s: %v", ErrNotReady.Error(), e.State, e.Cause)
	}
	return fmt.Sprintf("%s: state is %s", ErrNotReady.Error(), e.State)
}

func (e *NotReadyError) Unwrap() error { return ErrNotReady }

// NewNotReady creates a not-ready error for the given state.
func NewNotReady(state ReadinessState, cause error) error {
	return &NotReadyError{State: state, Cause: cause}
}
