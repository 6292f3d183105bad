// Package docstore holds the immutable document corpus loaded at startup.
package docstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
)

// Required source columns.
const (
	ColumnID   = "id"
	ColumnText = "text"
)

// indexedFields are the metadata fields with an inverted index.
var indexedFields = []string{document.MetaState, document.MetaCategory, document.MetaStatus}

// Store is a read-only, id-addressable document set in source order.
type Store struct {
	docs     []document.Document
	byID     map[int64]int
	postings map[string]*roaring64.Bitmap
}

// Load reads a .csv or .parquet source. Every failure wraps domain.ErrLoad.
func Load(ctx context.Context, source string) (*Store, error) {
	var (
		docs []document.Document
		err  error
	)
	switch strings.ToLower(filepath.Ext(source)) {
	case ".csv":
		docs, err = readCSV(ctx, source)
	case ".parquet":
		docs, err = readParquet(ctx, source)
	default:
		return nil, fmt.Errorf("%w: unsupported source format %q", domain.ErrLoad, source)
	}
	if err != nil {
		return nil, err
	}
	return New(docs)
}

// New builds a store from already parsed documents.
func New(docs []document.Document) (*Store, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents", domain.ErrLoad)
	}

	s := &Store{
		docs:     make([]document.Document, len(docs)),
		byID:     make(map[int64]int, len(docs)),
		postings: make(map[string]*roaring64.Bitmap),
	}
	copy(s.docs, docs)

	for i := range s.docs {
		d := &s.docs[i]
		if _, dup := s.byID[d.ID()]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", domain.ErrLoad, d.ID())
		}
		s.byID[d.ID()] = i
		s.indexDocument(d)
	}
	return s, nil
}

func (s *Store) indexDocument(d *document.Document) {
	for _, field := range indexedFields {
		for _, v := range fieldValues(d, field) {
			key := postingKey(field, v)
			bm, ok := s.postings[key]
			if !ok {
				bm = roaring64.New()
				s.postings[key] = bm
			}
			bm.Add(uint64(d.ID()))
		}
	}
}

// fieldValues returns the normalized values of a metadata field.
func fieldValues(d *document.Document, field string) []string {
	switch field {
	case document.MetaState:
		if st := document.NormalizeState(d.State()); st != "" {
			return []string{st}
		}
		return nil
	case document.MetaCategory:
		return d.Categories()
	default:
		if v := normalizeValue(d.Meta(field)); v != "" {
			return []string{v}
		}
		return nil
	}
}

func normalizeValue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func normalizeQuery(field, value string) string {
	if field == document.MetaState {
		return document.NormalizeState(value)
	}
	return normalizeValue(value)
}

func postingKey(field, value string) string {
	return field + "\x00" + value
}

// Resolve returns the document with the given id.
func (s *Store) Resolve(id int64) (document.Document, error) {
	i, ok := s.byID[id]
	if !ok {
		return document.Document{}, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return s.docs[i], nil
}

// Contains reports whether id is present.
func (s *Store) Contains(id int64) bool {
	_, ok := s.byID[id]
	return ok
}

// Documents returns the documents in source order. The slice is a copy.
func (s *Store) Documents() []document.Document {
	out := make([]document.Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Len returns the number of documents.
func (s *Store) Len() int { return len(s.docs) }

// IDsWhere returns the ids whose metadata field matches value after normalization.
// The result is a fresh bitmap owned by the caller; unknown values yield an empty one.
func (s *Store) IDsWhere(field, value string) *roaring64.Bitmap {
	bm, ok := s.postings[postingKey(field, normalizeQuery(field, value))]
	if !ok {
		return roaring64.New()
	}
	return bm.Clone()
}
