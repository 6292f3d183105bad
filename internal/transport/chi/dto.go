package chi

import (
	"github.com/kailas-cloud/billsearch/internal/domain/document"
	"github.com/kailas-cloud/billsearch/internal/domain/search/hit"
	profileuc "github.com/kailas-cloud/billsearch/internal/usecase/profile"
)

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question  string  `json:"question"`
	K         *int    `json:"k,omitempty"`
	SessionID *string `json:"session_id,omitempty"`
	Mode      *string `json:"mode,omitempty"`
	State     *string `json:"state,omitempty"`
}

// AskResponse is the reply of POST /ask.
type AskResponse struct {
	Answer    string      `json:"answer"`
	Citations []int64     `json:"citations"`
	Retrieved []SearchHit `json:"retrieved"`
}

// AskStreamParams are the query parameters of GET /ask/stream.
type AskStreamParams struct {
	Q         *string
	K         *int
	SessionID *string
	Mode      *string
	State     *string
}

// SearchParams are the query parameters of GET /search.
type SearchParams struct {
	Q     *string
	TopK  *int
	Mode  *string
	State *string
}

// SearchResponse is the reply of GET /search.
type SearchResponse struct {
	Items []SearchHit `json:"items"`
}

// SearchHit is one retrieved bill.
type SearchHit struct {
	ID         int64    `json:"id"`
	Score      float64  `json:"score"`
	Rank       int      `json:"rank"`
	Title      string   `json:"title,omitempty"`
	State      string   `json:"state,omitempty"`
	Status     string   `json:"status,omitempty"`
	Date       string   `json:"date,omitempty"`
	URL        string   `json:"url,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Snippet    string   `json:"snippet"`
}

// OnboardingRequest is the body of POST /onboarding.
type OnboardingRequest struct {
	CompanySize string   `json:"company_size"`
	Industry    string   `json:"industry"`
	State       string   `json:"state"`
	Categories  []string `json:"categories"`
}

// OnboardingResponse carries the new session id.
type OnboardingResponse struct {
	SessionID string `json:"session_id"`
}

// HealthResponse is the reply of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	State  string            `json:"state"`
	Checks map[string]string `json:"checks"`
}

// ReadyResponse is the reply of GET /ready.
type ReadyResponse struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

type sourcesPayload struct {
	Sources []SearchHit `json:"sources"`
}

func hitsToDTO(hits []hit.Hit) []SearchHit {
	out := make([]SearchHit, len(hits))
	for i := range hits {
		h := &hits[i]
		doc := h.Document()
		out[i] = SearchHit{
			ID:         h.DocumentID(),
			Score:      h.Score(),
			Rank:       h.Rank(),
			Title:      doc.Title(),
			State:      doc.State(),
			Status:     doc.Meta(document.MetaStatus),
			Date:       doc.Meta(document.MetaDate),
			URL:        doc.Meta(document.MetaURL),
			Categories: doc.Categories(),
			Snippet:    h.Snippet(),
		}
	}
	return out
}

func (r OnboardingRequest) toProfile() profileuc.Profile {
	return profileuc.Profile{
		CompanySize: r.CompanySize,
		Industry:    r.Industry,
		State:       r.State,
		Categories:  r.Categories,
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
