// Package lexical provides an in-memory BM25 keyword index over the document store.
package lexical

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
)

const (
	fieldTitle = "title"
	fieldText  = "text"
	fieldState = "state"
)

// batchSize bounds the number of documents per bleve batch.
const batchSize = 500

// Hit is a keyword match.
type Hit struct {
	ID    int64
	Score float64
}

// Index wraps a memory-only bleve index.
type Index struct {
	idx bleve.Index
	len int
}

func newMapping() *mapping.IndexMappingImpl {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = en.AnalyzerName

	stateField := bleve.NewTextFieldMapping()
	stateField.Analyzer = keyword.Name
	stateField.IncludeInAll = false

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(fieldTitle, textField)
	doc.AddFieldMappingsAt(fieldText, textField)
	doc.AddFieldMappingsAt(fieldState, stateField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = en.AnalyzerName
	return m
}

// Build indexes every document's title and text.
func Build(docs []document.Document) (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}

	b := idx.NewBatch()
	for i := range docs {
		d := &docs[i]
		if err := b.Index(strconv.FormatInt(d.ID(), 10), map[string]any{
			fieldTitle: d.Title(),
			fieldText:  d.Text(),
			fieldState: document.NormalizeState(d.State()),
		}); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("index document %d: %w", d.ID(), err)
		}
		if b.Size() >= batchSize {
			if err := idx.Batch(b); err != nil {
				_ = idx.Close()
				return nil, fmt.Errorf("flush keyword batch: %w", err)
			}
			b.Reset()
		}
	}
	if b.Size() > 0 {
		if err := idx.Batch(b); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("flush keyword batch: %w", err)
		}
	}

	return &Index{idx: idx, len: len(docs)}, nil
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return ix.len }

// Search returns up to k documents matching text, best first. A non-empty state
// restricts matches to documents with that normalized jurisdiction.
func (ix *Index) Search(ctx context.Context, text string, k int, state string) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrValidation, k)
	}

	title := bleve.NewMatchQuery(text)
	title.SetField(fieldTitle)
	body := bleve.NewMatchQuery(text)
	body.SetField(fieldText)

	var q query.Query = bleve.NewDisjunctionQuery(title, body)
	if state != "" {
		sq := bleve.NewTermQuery(document.NormalizeState(state))
		sq.SetField(fieldState)
		q = bleve.NewConjunctionQuery(q, sq)
	}

	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	res, err := ix.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("keyword search: bad document id %q", h.ID)
		}
		hits = append(hits, Hit{ID: id, Score: h.Score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	return hits, nil
}

// Close releases the index.
func (ix *Index) Close() error {
	return ix.idx.Close()
}
