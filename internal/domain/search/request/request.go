package request

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
	"github.com/kailas-cloud/billsearch/internal/domain/search/mode"
)

// Retrieval parameter limits.
const (
	// MaxQueryLength is the maximum allowed query length in characters.
	MaxQueryLength = 4096
	DefaultTopK    = 8
	MaxTopK        = 50
)

// Limits bounds the number of hits a caller may request.
type Limits struct {
	DefaultK int
	MaxK     int
}

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return Limits{DefaultK: DefaultTopK, MaxK: MaxTopK}
}

// Request is a validated retrieval query.
type Request struct {
	query      string
	topK       int
	searchMode mode.Mode
	state      string
	clamped    bool
}

// New validates and normalizes retrieval parameters.
// topK <= 0 is rejected; topK above limits.MaxK is clamped silently.
func New(query string, topK int, m mode.Mode, state string, limits Limits) (Request, error) {
	if strings.TrimSpace(query) == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrValidation, MaxQueryLength)
	}
	if topK <= 0 {
		return Request{}, fmt.Errorf("%w: k must be a positive integer, got %d", domain.ErrValidation, topK)
	}
	m = m.OrDefault()
	if !m.IsValid() {
		return Request{}, fmt.Errorf("%w: invalid search mode %q", domain.ErrValidation, m)
	}
	maxK := limits.MaxK
	if maxK <= 0 {
		maxK = MaxTopK
	}
	clamped := false
	if topK > maxK {
		topK = maxK
		clamped = true
	}

	return Request{
		query:      query,
		topK:       topK,
		searchMode: m,
		state:      document.NormalizeState(state),
		clamped:    clamped,
	}, nil
}

// Query returns the query text.
func (r *Request) Query() string { return r.query }

// TopK returns the effective number of hits to retrieve.
func (r *Request) TopK() int { return r.topK }

// Mode returns the retrieval strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// State returns the normalized jurisdiction filter ("" means no filter).
func (r *Request) State() string { return r.state }

// Clamped reports whether the requested k exceeded the maximum.
func (r *Request) Clamped() bool { return r.clamped }
