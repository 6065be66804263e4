// Package embedding defines the Embedder capability and the wrappers the
// pipeline and retriever compose around concrete backends.
package embedding

import (
	"context"
	"errors"
)

// ErrEmptyInput is returned when asked to embed empty text.
var ErrEmptyInput = errors.New("embedding: empty input")

// Embedder converts free text into a dense vector. Implementations are
// expected to be deterministic for a fixed model version.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}
