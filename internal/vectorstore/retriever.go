package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"textbook-rag/internal/domain"
	"textbook-rag/internal/embedding"
)

// Retriever answers top-k queries against a Store. The embedder must be the
// same model the store was built with.
type Retriever struct {
	store    *Store
	embedder embedding.Embedder
	logger   *zap.Logger
}

var _ domain.Retriever = (*Retriever)(nil)

// NewRetriever creates a Retriever. A nil logger disables logging.
func NewRetriever(store *Store, embedder embedding.Embedder, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, embedder: embedder, logger: logger}
}

// Store returns the underlying store.
func (r *Retriever) Store() *Store { return r.store }

// Search embeds query and returns up to k results by descending score.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if !r.store.HasIndex() {
		return nil, ErrEmptyStore
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	if r.embedder == nil {
		return nil, fmt.Errorf("vectorstore: no embedder configured")
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: embed query: %w", err)
	}
	return r.store.search(vec, k, r.logger)
}

// Score maps a non-negative distance into (0, 1].
func Score(distance float32) float64 {
	d := float64(distance)
	if d < 0 {
		d = 0
	}
	return 1.0 / (1.0 + d)
}
