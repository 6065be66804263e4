// Package flat implements an exact (brute-force) nearest-neighbor index over
// dense float32 vectors using squared Euclidean distance.
//
// An Index is built once from a full set of vectors and is read-only
// afterwards; it is safe for concurrent searches.
package flat

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDimensionMismatch is returned when vectors of different dimensions
	// are mixed, or a query does not match the index dimension.
	ErrDimensionMismatch = errors.New("flat: vector dimension mismatch")

	// ErrNoVectors is returned when building from an empty vector set.
	ErrNoVectors = errors.New("flat: no vectors to index")
)

// Match is a single search hit. Position is the insertion order of the
// matched vector; Distance is the squared L2 distance to the query.
type Match struct {
	Position int
	Distance float32
}

// Index stores vectors row-major in one contiguous slice.
type Index struct {
	dim  int
	n    int
	data []float32
}

// Build stacks vectors into a new Index. The dimension is taken from the
// first vector and every other vector must match it.
func Build(vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, ErrNoVectors
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vector at position 0", ErrDimensionMismatch)
	}
	data := make([]float32, 0, dim*len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: position %d has %d dims, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		data = append(data, v...)
	}
	return &Index{dim: dim, n: len(vectors), data: data}, nil
}

// Dim returns the vector dimension.
func (x *Index) Dim() int { return x.dim }

// Len returns the number of indexed vectors.
func (x *Index) Len() int { return x.n }

// Vector returns a copy of the vector stored at position i.
func (x *Index) Vector(i int) []float32 {
	if i < 0 || i >= x.n {
		return nil
	}
	out := make([]float32, x.dim)
	copy(out, x.data[i*x.dim:(i+1)*x.dim])
	return out
}

// Search returns up to k nearest vectors by ascending squared L2 distance.
// Equal distances keep insertion order.
func (x *Index) Search(query []float32, k int) ([]Match, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", ErrDimensionMismatch, len(query), x.dim)
	}
	if k <= 0 || x.n == 0 {
		return nil, nil
	}
	matches := make([]Match, x.n)
	for i := 0; i < x.n; i++ {
		matches[i] = Match{Position: i, Distance: SquaredL2(query, x.data[i*x.dim:(i+1)*x.dim])}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// SquaredL2 returns the squared Euclidean distance between a and b, which
// must have the same length.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
