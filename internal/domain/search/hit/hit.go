package hit

import "github.com/kailas-cloud/billsearch/internal/domain/document"

// Hit is a single retrieval result: document id, ranking score and 1-based rank,
// plus the resolved document for downstream use. The score is on the scale of the
// mode that produced it. Similarity is always the query-document cosine.
type Hit struct {
	documentID int64
	score      float64
	similarity float64
	rank       int
	doc        document.Document
}

// New creates a hit for a resolved document. The similarity starts equal to score.
func New(doc document.Document, score float64, rank int) Hit {
	return Hit{documentID: doc.ID(), score: score, similarity: score, rank: rank, doc: doc}
}

// DocumentID returns the id of the matched document.
func (h *Hit) DocumentID() int64 { return h.documentID }

// Score returns the ranking score (higher is closer).
func (h *Hit) Score() float64 { return h.score }

// Similarity returns the cosine similarity between the query and the document.
func (h *Hit) Similarity() float64 { return h.similarity }

// Rank returns the 1-based position in the result list.
func (h *Hit) Rank() int { return h.rank }

// Document returns the resolved document.
func (h *Hit) Document() document.Document { return h.doc }

// Snippet returns the document text shortened for display and prompts.
func (h *Hit) Snippet() string { return document.Snippet(h.doc.Text(), document.DefaultSnippetChars) }

// WithScore returns a copy with a new score.
func (h Hit) WithScore(score float64) Hit {
	h.score = score
	return h
}

// WithSimilarity returns a copy with the cosine similarity set.
func (h Hit) WithSimilarity(sim float64) Hit {
	h.similarity = sim
	return h
}

// Renumber assigns 1-based ranks in slice order.
func Renumber(hits []Hit) {
	for i := range hits {
		hits[i].rank = i + 1
	}
}

// IDs returns the document ids in slice order.
func IDs(hits []Hit) []int64 {
	out := make([]int64, len(hits))
	for i := range hits {
		out[i] = hits[i].documentID
	}
	return out
}
