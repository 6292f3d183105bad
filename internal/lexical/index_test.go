package lexical

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
)

func mustDoc(t *testing.T, id int64, text string, meta map[string]string) document.Document {
	t.Helper()
	d, err := document.New(id, text, meta)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return d
}

func testIndex(t *testing.T) *Index {
	t.Helper()
	docs := []document.Document{
		mustDoc(t, 1, "Regulates facial recognition technology used by police.", map[string]string{"title": "Biometric Privacy", "state": "California"}),
		mustDoc(t, 2, "Requires disclosure when a chatbot interacts with consumers.", map[string]string{"title": "Chatbot Disclosure", "state": "UT"}),
		mustDoc(t, 3, "Bans facial recognition in public schools.", map[string]string{"title": "School Surveillance", "state": "NY"}),
	}
	ix, err := Build(docs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestSearch(t *testing.T) {
	ix := testIndex(t)
	if ix.Len() != 3 {
		t.Fatalf("expected 3 docs, got %d", ix.Len())
	}

	hits, err := ix.Search(context.Background(), "facial recognition", 10, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %+v", hits)
	}
	for _, h := range hits {
		if h.ID == 2 {
			t.Error("chatbot bill must not match facial recognition")
		}
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits not ordered by score")
	}
}

func TestSearch_TitleMatches(t *testing.T) {
	ix := testIndex(t)
	hits, err := ix.Search(context.Background(), "surveillance", 5, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != 3 {
		t.Fatalf("expected doc 3 from title, got %+v", hits)
	}
}

func TestSearch_StateFilter(t *testing.T) {
	ix := testIndex(t)
	hits, err := ix.Search(context.Background(), "facial recognition", 10, "new york")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != 3 {
		t.Fatalf("expected only doc 3, got %+v", hits)
	}
}

func TestSearch_Limit(t *testing.T) {
	ix := testIndex(t)
	hits, err := ix.Search(context.Background(), "facial recognition", 1, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}

	if _, err := ix.Search(context.Background(), "x", 0, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for k=0, got %v", err)
	}
}
