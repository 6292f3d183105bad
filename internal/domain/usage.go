package domain

import "context"

type requestUsageKey struct{}

// RequestUsage collects token usage for a single HTTP request.
// The handler puts a mutable pointer into the context before calling the services;
// services add to it; the handler reads it for response headers.
type RequestUsage struct {
	EmbeddingTokens  int
	GenerationTokens int
	Embedded         bool // true if embedding was called, even on a cache hit with 0 tokens
	Generated        bool
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{}
	return context.WithValue(ctx, requestUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(requestUsageKey{}).(*RequestUsage)
	return u
}

// AddEmbeddingTokens records consumed embedding tokens. Safe on a nil receiver.
func (u *RequestUsage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.EmbeddingTokens += n
		u.Embedded = true
	}
}

// AddGenerationTokens records consumed completion tokens. Safe on a nil receiver.
func (u *RequestUsage) AddGenerationTokens(n int) {
	if u != nil {
		u.GenerationTokens += n
		u.Generated = true
	}
}
