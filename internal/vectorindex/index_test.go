package vectorindex

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kailas-cloud/billsearch/internal/domain"
)

func randomVectors(n, dims int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dims)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}

func TestBuild_Errors(t *testing.T) {
	if _, err := Build(nil); !errors.Is(err, domain.ErrEmptyIndex) {
		t.Errorf("empty: expected ErrEmptyIndex, got %v", err)
	}
	if _, err := Build([][]float32{{}}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("zero dims: expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := Build([][]float32{{1, 2}, {1}}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("ragged: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestBuild_DoesNotAliasInput(t *testing.T) {
	in := [][]float32{{3, 4}}
	ix, err := Build(in)
	if err != nil {
		t.Fatal(err)
	}
	if in[0][0] != 3 {
		t.Errorf("input mutated: %v", in[0])
	}
	if v := ix.Vector(0); v[0] != 0.6 || v[1] != 0.8 {
		t.Errorf("stored vector not normalized: %v", v)
	}
}

func TestSearch_SelfRetrieval(t *testing.T) {
	vecs := randomVectors(200, 16, 1)
	ix, err := Build(vecs)
	if err != nil {
		t.Fatal(err)
	}
	for pos, v := range vecs {
		res, err := ix.Search(v, 1, nil)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(res) != 1 || res[0].Position != pos {
			t.Fatalf("vector %d: top hit %+v", pos, res)
		}
	}
}

func TestSearch_OrderingAndTies(t *testing.T) {
	ix, err := Build([][]float32{
		{0, 1},  // 0: orthogonal
		{1, 0},  // 1: exact
		{2, 0},  // 2: exact after normalization, tie with 1
		{1, 1},  // 3: 45 degrees
		{-1, 0}, // 4: opposite
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := ix.Search([]float32{5, 0}, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 2, 3, 0, 4}
	if len(res) != len(want) {
		t.Fatalf("got %d results, want %d", len(res), len(want))
	}
	for i, pos := range want {
		if res[i].Position != pos {
			t.Errorf("res[%d].Position = %d, want %d (%+v)", i, res[i].Position, pos, res)
		}
	}
	for i := 1; i < len(res); i++ {
		if res[i].Score > res[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestSearch_KBounds(t *testing.T) {
	ix, _ := Build(randomVectors(5, 4, 2))
	q := []float32{1, 0, 0, 0}

	res, err := ix.Search(q, 3, nil)
	if err != nil || len(res) != 3 {
		t.Fatalf("k=3: len=%d err=%v", len(res), err)
	}
	res, err = ix.Search(q, 100, nil)
	if err != nil || len(res) != 5 {
		t.Fatalf("k=100: len=%d err=%v", len(res), err)
	}
	if _, err := ix.Search(q, 0, nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("k=0: expected ErrValidation, got %v", err)
	}
	if _, err := ix.Search([]float32{1}, 1, nil); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("wrong dims: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSearch_Filter(t *testing.T) {
	vecs := randomVectors(50, 8, 3)
	ix, _ := Build(vecs)

	allow := roaring.BitmapOf(7, 21, 40, 99) // 99 is out of range and ignored
	res, err := ix.Search(vecs[21], 10, allow)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3 filtered results, got %+v", res)
	}
	if res[0].Position != 21 {
		t.Errorf("expected 21 first, got %d", res[0].Position)
	}
	for _, r := range res {
		if !allow.Contains(uint32(r.Position)) {
			t.Errorf("position %d not in filter", r.Position)
		}
	}

	empty, err := ix.Search(vecs[0], 5, roaring.New())
	if err != nil || len(empty) != 0 {
		t.Errorf("empty filter: %+v, %v", empty, err)
	}
}

func TestRoundTrip_IdenticalResults(t *testing.T) {
	vecs := randomVectors(120, 32, 4)
	ix, _ := Build(vecs)

	var buf bytes.Buffer
	if _, err := ix.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	loaded, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if loaded.Dims() != ix.Dims() || loaded.Len() != ix.Len() {
		t.Fatalf("shape %dx%d, want %dx%d", loaded.Len(), loaded.Dims(), ix.Len(), ix.Dims())
	}
	if loaded.Checksum() != ix.Checksum() {
		t.Error("checksum changed after round trip")
	}

	for _, q := range randomVectors(10, 32, 5) {
		a, _ := ix.Search(q, 7, nil)
		b, _ := loaded.Search(q, 7, nil)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("result %d differs: %+v vs %+v", i, a[i], b[i])
			}
		}
	}
}

func TestRead_Corruption(t *testing.T) {
	ix, _ := Build(randomVectors(10, 4, 6))
	var buf bytes.Buffer
	_, _ = ix.WriteTo(&buf)
	good := buf.Bytes()

	badMagic := append([]byte(nil), good...)
	badMagic[0] ^= 0xFF
	if _, err := Unmarshal(badMagic); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("expected ErrInvalidMagic, got %v", err)
	}

	badVersion := append([]byte(nil), good...)
	badVersion[4] = 9
	if _, err := Unmarshal(badVersion); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}

	badSum := append([]byte(nil), good...)
	badSum[16] ^= 0xFF
	if _, err := Unmarshal(badSum); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}

	if _, err := Unmarshal(good[:headerSize+2]); err == nil {
		t.Error("expected error for truncated payload")
	}
	if _, err := Unmarshal(good[:10]); err == nil {
		t.Error("expected error for truncated header")
	}
}

func TestSimilarities(t *testing.T) {
	vecs := randomVectors(20, 8, 5)
	ix, _ := Build(vecs)

	query := vecs[4]
	res, err := ix.Search(query, 20, nil)
	if err != nil {
		t.Fatal(err)
	}
	positions := make([]int, len(res))
	for i, r := range res {
		positions[i] = r.Position
	}

	sims, err := ix.Similarities(query, positions)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range res {
		if sims[i] != r.Score {
			t.Errorf("position %d: similarity %v, search score %v", r.Position, sims[i], r.Score)
		}
	}

	if _, err := ix.Similarities(query[:3], positions); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("short query: %v", err)
	}
	if _, err := ix.Similarities(query, []int{20}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("position out of range: %v", err)
	}
}
