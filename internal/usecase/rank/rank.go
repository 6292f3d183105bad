// Package rank re-scores retrieved bills against a user's jurisdiction and interests.
package rank

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kailas-cloud/billsearch/internal/domain/document"
	"github.com/kailas-cloud/billsearch/internal/domain/search/hit"
)

// Score weights.
const (
	WeightSimilarity = 0.45
	WeightSameState  = 0.40
	WeightCategory   = 0.10
	WeightRecency    = 0.05
)

// RecencyScaleDays is the decay constant of the recency boost (about an 18 month half-life).
const RecencyScaleDays = 540.0

var hiringTerms = []string{"hiring", "employment", "aedt", "screening"}

var hiringCategories = []string{"effect on labor/employment", "private sector use"}

// Preferences describe what the asking user cares about.
type Preferences struct {
	State      string
	Categories []string
}

// Recency returns exp(-days/540) for an ISO date, 1 for future dates and 0 when
// the date is missing or unparseable.
func Recency(date string, now time.Time) float64 {
	date = strings.TrimSpace(date)
	if date == "" {
		return 0
	}
	var d time.Time
	var err error
	if len(date) > len(time.DateOnly) {
		d, err = time.Parse(time.RFC3339, date)
	} else {
		d, err = time.Parse(time.DateOnly, date)
	}
	if err != nil {
		return 0
	}
	days := math.Floor(now.Sub(d).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return math.Exp(-days / RecencyScaleDays)
}

// Score combines similarity with jurisdiction, category and recency signals.
func Score(sim float64, sameState, categoryMatch bool, date string, now time.Time) float64 {
	return WeightSimilarity*sim +
		WeightSameState*boolScore(sameState) +
		WeightCategory*boolScore(categoryMatch) +
		WeightRecency*Recency(date, now)
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// PreferencesFor builds preferences from a profile. A hiring-related query without
// explicit categories prefers employment bills.
func PreferencesFor(state string, categories []string, query string) Preferences {
	p := Preferences{State: document.NormalizeState(state)}
	for _, c := range categories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			p.Categories = append(p.Categories, c)
		}
	}
	if len(p.Categories) == 0 && isHiringQuery(query) {
		p.Categories = append(p.Categories, hiringCategories...)
	}
	return p
}

func isHiringQuery(q string) bool {
	q = strings.ToLower(q)
	for _, t := range hiringTerms {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

// Rerank re-scores hits from their cosine similarity, never from the mode score,
// so keyword and hybrid results weigh jurisdiction the same as semantic ones. It sorts them by the new score (ties keep the original order)
// and renumbers the ranks. The input slice is not modified.
func Rerank(hits []hit.Hit, p Preferences, now time.Time) []hit.Hit {
	preferred := make(map[string]struct{}, len(p.Categories))
	for _, c := range p.Categories {
		preferred[c] = struct{}{}
	}

	out := make([]hit.Hit, len(hits))
	for i, h := range hits {
		doc := h.Document()
		same := p.State != "" && document.NormalizeState(doc.State()) == p.State
		out[i] = h.WithScore(Score(h.Similarity(), same, matchesAny(doc.Categories(), preferred), doc.Meta(document.MetaDate), now))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score() > out[j].Score()
	})
	hit.Renumber(out)
	return out
}

func matchesAny(cats []string, preferred map[string]struct{}) bool {
	for _, c := range cats {
		if _, ok := preferred[c]; ok {
			return true
		}
	}
	return false
}
