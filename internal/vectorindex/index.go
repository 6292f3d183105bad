// Package vectorindex is an exact (flat) nearest-neighbor index over L2-normalized vectors.
// Similarity is cosine, computed as the inner product of unit vectors.
package vectorindex

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kailas-cloud/billsearch/internal/domain"
)

// MetricCosine is the only supported metric; it is recorded in the artifact manifest.
const MetricCosine = "cosine"

// Index holds count vectors of dims float32 each, row-major, normalized at build time.
// It is immutable after Build or Read and safe for concurrent searches.
type Index struct {
	dims  int
	count int
	data  []float32
}

// Result is one nearest-neighbor match.
type Result struct {
	Position int
	Score    float32
}

// Build copies and normalizes the vectors. Positions follow input order.
func Build(vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, domain.ErrEmptyIndex
	}
	dims := len(vectors[0])
	if dims == 0 {
		return nil, fmt.Errorf("%w: zero-length vector at position 0", domain.ErrDimensionMismatch)
	}

	data := make([]float32, 0, dims*len(vectors))
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: vector %d has %d dims, want %d", domain.ErrDimensionMismatch, i, len(v), dims)
		}
		start := len(data)
		data = append(data, v...)
		normalize(data[start:])
	}

	return &Index{dims: dims, count: len(vectors), data: data}, nil
}

// Dims returns the vector dimensionality.
func (ix *Index) Dims() int { return ix.dims }

// Len returns the number of indexed vectors.
func (ix *Index) Len() int { return ix.count }

// Vector returns the stored (normalized) vector at pos. The slice must not be modified.
func (ix *Index) Vector(pos int) []float32 {
	return ix.data[pos*ix.dims : (pos+1)*ix.dims]
}

// Search returns up to k positions ordered by descending score, ties broken by ascending
// position. allow restricts the scan to the given positions; nil admits every position.
func (ix *Index) Search(query []float32, k int, allow *roaring.Bitmap) ([]Result, error) {
	if len(query) != ix.dims {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", domain.ErrDimensionMismatch, len(query), ix.dims)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrValidation, k)
	}

	q := unit(query)
	h := make(resultHeap, 0, min(k, ix.count))
	consider := func(pos int) {
		r := Result{Position: pos, Score: dot(q, ix.Vector(pos))}
		if len(h) < k {
			heap.Push(&h, r)
			return
		}
		if better(r, h[0]) {
			h[0] = r
			heap.Fix(&h, 0)
		}
	}

	if allow == nil {
		for pos := 0; pos < ix.count; pos++ {
			consider(pos)
		}
	} else {
		it := allow.Iterator()
		for it.HasNext() {
			pos := int(it.Next())
			if pos >= ix.count {
				break
			}
			consider(pos)
		}
	}

	out := []Result(h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out, nil
}

// Similarities returns the cosine similarity between query and the vectors at positions,
// in the order given.
func (ix *Index) Similarities(query []float32, positions []int) ([]float32, error) {
	if len(query) != ix.dims {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", domain.ErrDimensionMismatch, len(query), ix.dims)
	}
	q := unit(query)
	out := make([]float32, len(positions))
	for i, pos := range positions {
		if pos < 0 || pos >= ix.count {
			return nil, fmt.Errorf("%w: position %d outside index of %d", domain.ErrNotFound, pos, ix.count)
		}
		out[i] = dot(q, ix.Vector(pos))
	}
	return out, nil
}

// better reports whether a ranks ahead of b.
func better(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Position < b.Position
}

// resultHeap keeps the current worst result at the root.
type resultHeap []Result

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)        { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// unit returns a normalized copy of v.
func unit(v []float32) []float32 {
	q := make([]float32, len(v))
	copy(q, v)
	normalize(q)
	return q
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
