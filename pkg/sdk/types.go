package billsearch

// SearchMode controls the retrieval algorithm.
type SearchMode string

// Search mode constants.
const (
	ModeSemantic SearchMode = "semantic"
	ModeKeyword  SearchMode = "keyword"
	ModeHybrid   SearchMode = "hybrid"
)

// Hit is one retrieved bill.
type Hit struct {
	ID         int64
	Score      float64
	Rank       int
	Title      string
	State      string
	Date       string
	URL        string
	Categories []string
	Snippet    string
	Metadata   map[string]string
}

// Answer is generated text grounded on the cited bills.
type Answer struct {
	Text      string
	Citations []int64
	Hits      []Hit
}
