package rank

import (
	"math"
	"testing"
	"time"

	"github.com/kailas-cloud/billsearch/internal/domain/document"
	"github.com/kailas-cloud/billsearch/internal/domain/search/hit"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestRecency(t *testing.T) {
	tests := []struct {
		date string
		want float64
	}{
		{"", 0},
		{"not a date", 0},
		{"2026-06-01", 1},
		{"2027-01-01", 1},
		{"2025-01-01", math.Exp(-516.0 / 540.0)},
		{"2026-05-31T00:00:00Z", math.Exp(-1.0 / 540.0)},
	}
	for _, tt := range tests {
		if got := Recency(tt.date, now); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Recency(%q) = %f, want %f", tt.date, got, tt.want)
		}
	}
}

func TestScore(t *testing.T) {
	got := Score(0.8, true, false, "", now)
	if want := 0.45*0.8 + 0.40; math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %f, want %f", got, want)
	}
	full := Score(1, true, true, "2026-06-01", now)
	if math.Abs(full-1) > 1e-9 {
		t.Errorf("maximum score = %f, want 1", full)
	}
}

func TestPreferencesFor(t *testing.T) {
	p := PreferencesFor("california", nil, "Do we need a bias audit for hiring tools?")
	if p.State != "CA" {
		t.Errorf("state = %q", p.State)
	}
	if len(p.Categories) != 2 {
		t.Errorf("hiring query without categories should prefer employment, got %v", p.Categories)
	}

	p = PreferencesFor("", []string{" Healthcare "}, "hiring")
	if len(p.Categories) != 1 || p.Categories[0] != "healthcare" {
		t.Errorf("explicit categories must win, got %v", p.Categories)
	}

	if p := PreferencesFor("", nil, "deepfakes"); len(p.Categories) != 0 {
		t.Errorf("unexpected categories %v", p.Categories)
	}
}

func mkHit(t *testing.T, id int64, score float64, rank int, meta map[string]string) hit.Hit {
	t.Helper()
	d, err := document.New(id, "bill text", meta)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return hit.New(d, score, rank)
}

func TestRerank(t *testing.T) {
	hits := []hit.Hit{
		mkHit(t, 1, 0.90, 1, map[string]string{"state": "NY"}),
		mkHit(t, 2, 0.70, 2, map[string]string{"state": "California", "category": "Private Sector Use"}),
		mkHit(t, 3, 0.70, 3, map[string]string{"state": "TX"}),
		mkHit(t, 4, 0.70, 4, map[string]string{"state": "UT"}),
	}

	out := Rerank(hits, Preferences{State: "CA", Categories: []string{"private sector use"}}, now)

	if out[0].DocumentID() != 2 {
		t.Fatalf("in-state bill must rank first, got %d", out[0].DocumentID())
	}
	// 3 and 4 tie; original order is kept.
	if out[2].DocumentID() != 3 || out[3].DocumentID() != 4 {
		t.Errorf("ties must keep original order, got %v", hit.IDs(out))
	}
	for i := range out {
		if out[i].Rank() != i+1 {
			t.Errorf("rank %d at index %d", out[i].Rank(), i)
		}
	}
	if hits[0].DocumentID() != 1 || hits[0].Rank() != 1 {
		t.Error("input slice modified")
	}
}

func TestRerank_KeywordScoresUseSimilarity(t *testing.T) {
	// BM25 scores are unbounded; on that scale the state boost would be noise.
	hits := []hit.Hit{
		mkHit(t, 1, 6.0, 1, map[string]string{"state": "CA"}).WithSimilarity(0.62),
		mkHit(t, 2, 5.0, 2, map[string]string{"state": "NY"}).WithSimilarity(0.55),
	}

	out := Rerank(hits, PreferencesFor("New York", nil, "deepfake disclosure"), now)

	if out[0].DocumentID() != 2 {
		t.Fatalf("in-state bill must rank first, got %v", hit.IDs(out))
	}
	want := Score(0.55, true, false, "", now)
	if math.Abs(out[0].Score()-want) > 1e-9 {
		t.Errorf("score = %v, want %v", out[0].Score(), want)
	}
	if out[0].Similarity() != 0.55 {
		t.Errorf("similarity changed to %v", out[0].Similarity())
	}
}
