// Package vectorstore holds the searchable {documents, index} store: building
// it from paired embeddings, ranking chunks against a query, and saving it
// to a single artifact.
package vectorstore

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"textbook-rag/internal/domain"
	"textbook-rag/internal/vectorstore/flat"
)

var (
	// ErrEmptyStore is returned when searching a store with no index.
	ErrEmptyStore = errors.New("vectorstore: store is empty, add documents first")

	// ErrDimensionMismatch is returned when vectors of different sizes meet.
	ErrDimensionMismatch = flat.ErrDimensionMismatch

	// ErrInvalidK is returned for a non-positive result count.
	ErrInvalidK = errors.New("vectorstore: k must be positive")

	// ErrUnpaired is returned when documents and vectors differ in length.
	ErrUnpaired = errors.New("vectorstore: documents and embeddings differ in length")
)

// Store pairs document chunks with the index built over their embeddings.
// Index position i corresponds to Documents[i]. Index is nil when nothing
// has been embedded.
type Store struct {
	Documents []domain.DocumentChunk
	Index     *flat.Index
}

// Build stacks embeddings into a flat L2 index. With no embeddings it
// returns a store without an index.
func Build(documents []domain.DocumentChunk, embeddings [][]float32) (*Store, error) {
	if len(documents) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d documents, %d embeddings", ErrUnpaired, len(documents), len(embeddings))
	}
	if len(embeddings) == 0 {
		return &Store{Documents: documents}, nil
	}
	idx, err := flat.Build(embeddings)
	if err != nil {
		return nil, err
	}
	return &Store{Documents: documents, Index: idx}, nil
}

// HasIndex reports whether the store can be searched.
func (s *Store) HasIndex() bool {
	return s != nil && s.Index != nil && s.Index.Len() > 0
}

// Len returns the number of documents held by the store.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Documents)
}

// Dim returns the index dimension, or 0 without an index.
func (s *Store) Dim() int {
	if !s.HasIndex() {
		return 0
	}
	return s.Index.Dim()
}

// SearchVector ranks the store against a precomputed query vector.
// Each result carries a copy of the document and a score of 1/(1+d) where d
// is the squared L2 distance.
func (s *Store) SearchVector(query []float32, k int) ([]domain.SearchResult, error) {
	return s.search(query, k, zap.NewNop())
}

func (s *Store) search(query []float32, k int, logger *zap.Logger) ([]domain.SearchResult, error) {
	if !s.HasIndex() {
		return nil, ErrEmptyStore
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	matches, err := s.Index.Search(query, k)
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(matches))
	for _, m := range matches {
		if m.Position < 0 || m.Position >= len(s.Documents) {
			logger.Warn("skipping out-of-range match",
				zap.Int("position", m.Position),
				zap.Int("documents", len(s.Documents)))
			continue
		}
		results = append(results, domain.SearchResult{
			Chunk: s.Documents[m.Position],
			Score: Score(m.Distance),
		})
	}
	return results, nil
}
