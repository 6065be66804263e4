package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	calls atomic.Int32
	delay time.Duration
	block bool
}

func (s *stubEmbedder) Name() string   { return "stub" }
func (s *stubEmbedder) Dimension() int { return 2 }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if s.block {
		select {}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if text == "" {
		return nil, ErrEmptyInput
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestWithTimeout(t *testing.T) {
	fast := WithTimeout(&stubEmbedder{}, time.Second)
	vec, err := fast.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1}, vec)

	hung := WithTimeout(&stubEmbedder{block: true}, 20*time.Millisecond)
	start := time.Now()
	_, err = hung.Embed(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, "stub", hung.Name())
}

func TestWithTimeoutDisabled(t *testing.T) {
	inner := &stubEmbedder{}
	assert.Same(t, Embedder(inner), WithTimeout(inner, 0))
}

func TestWithCache(t *testing.T) {
	inner := &stubEmbedder{}
	cached := WithCache(inner, 8, time.Minute)

	first, err := cached.Embed(context.Background(), "query")
	require.NoError(t, err)
	first[0] = 999 // callers may mutate their copy

	second, err := cached.Embed(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1}, second)
	assert.Equal(t, int32(1), inner.calls.Load())

	_, err = cached.Embed(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyInput)
	_, err = cached.Embed(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestWithRateLimitHonoursContext(t *testing.T) {
	limited := WithRateLimit(&stubEmbedder{}, 0.001, 1)
	_, err := limited.Embed(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.Embed(ctx, "second")
	require.Error(t, err)
}
