package mode

// Mode is the retrieval strategy.
type Mode string

// Retrieval mode constants.
const (
	// Semantic ranks by embedding similarity (default).
	Semantic Mode = "semantic"
	// Keyword ranks by BM25 over document text.
	Keyword Mode = "keyword"
	// Hybrid fuses semantic and keyword rankings.
	Hybrid Mode = "hybrid"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Semantic || m == Keyword
}

// OrDefault returns Semantic for the empty mode.
func (m Mode) OrDefault() Mode {
	if m == "" {
		return Semantic
	}
	return m
}
