package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// WithTimeout bounds every Embed call to d. A call that does not return in
// time fails with an error wrapping context.DeadlineExceeded, even when the
// backend ignores its context.
func WithTimeout(e Embedder, d time.Duration) Embedder {
	if e == nil || d <= 0 {
		return e
	}
	return &timeoutEmbedder{next: e, timeout: d}
}

type timeoutEmbedder struct {
	next    Embedder
	timeout time.Duration
}

func (t *timeoutEmbedder) Name() string   { return t.next.Name() }
func (t *timeoutEmbedder) Dimension() int { return t.next.Dimension() }

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		vec []float32
		err error
	}
	done := make(chan result, 1)
	go func() {
		vec, err := t.next.Embed(ctx, text)
		done <- result{vec, err}
	}()
	select {
	case r := <-done:
		return r.vec, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("embedding: %s: %w", t.next.Name(), ctx.Err())
	}
}

// WithCache memoizes embeddings in an expiring LRU keyed by model and text.
// It is meant for query embeddings in interactive sessions.
func WithCache(e Embedder, size int, ttl time.Duration) Embedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &cachedEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type cachedEmbedder struct {
	next  Embedder
	cache *expirable.LRU[string, []float32]
}

func (c *cachedEmbedder) Name() string   { return c.next.Name() }
func (c *cachedEmbedder) Dimension() int { return c.next.Dimension() }

func (c *cachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.next.Name() + "\x00" + text
	if cached, ok := c.cache.Get(key); ok {
		return cloneVector(cached), nil
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneVector(vec))
	return vec, nil
}

// WithRateLimit paces calls to at most rps per second with the given burst.
func WithRateLimit(e Embedder, rps float64, burst int) Embedder {
	if e == nil || rps <= 0 {
		return e
	}
	if burst <= 0 {
		burst = 1
	}
	return &limitedEmbedder{next: e, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

type limitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

func (l *limitedEmbedder) Name() string   { return l.next.Name() }
func (l *limitedEmbedder) Dimension() int { return l.next.Dimension() }

func (l *limitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding: rate limit: %w", err)
	}
	return l.next.Embed(ctx, text)
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
