package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedDeterministicAndNormalized(t *testing.T) {
	e := NewEmbedder(64)
	a, err := e.Embed(context.Background(), "Photosynthesis converts light into chemical energy")
	require.NoError(t, err)
	b, err := NewEmbedder(64).Embed(context.Background(), "Photosynthesis converts light into chemical energy")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.Len(t, a, 64)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestEmbedIgnoresCaseAndStopwords(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	a, err := e.Embed(context.Background(), "The Mitochondria")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "mitochondria")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbedRejectsTokenlessText(t *testing.T) {
	e := NewEmbedder(16)
	_, err := e.Embed(context.Background(), "the of and")
	require.Error(t, err)
	_, err = e.Embed(context.Background(), "... !!!")
	require.Error(t, err)
}
