package retrieve

import "sort"

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// candidate is a ranked document id before resolution against the store.
type candidate struct {
	id    int64
	score float64
}

// fuseRRF merges semantic and keyword rankings via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
func fuseRRF(semantic, keyword []candidate, topK int) []candidate {
	merged := make(map[int64]float64, len(semantic)+len(keyword))

	for rank, c := range semantic {
		merged[c.id] += 1.0 / float64(rrfK+rank+1)
	}
	for rank, c := range keyword {
		merged[c.id] += 1.0 / float64(rrfK+rank+1)
	}

	results := make([]candidate, 0, len(merged))
	for id, score := range merged {
		results = append(results, candidate{id: id, score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results
}
