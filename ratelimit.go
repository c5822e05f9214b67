package loreforge

import (
	"context"
	"sync"
	"time"
)

// rateLimitEmbedding wraps an EmbeddingProvider with proactive rate
// limiting. Embedding during ingestion is the hottest call path against the
// provider's quota, so calls block until the rate budget allows them.
type rateLimitEmbedding struct {
	inner EmbeddingProvider
	mu    sync.Mutex

	// Sliding window of request timestamps.
	rpm       int
	rpmWindow []time.Time
}

// EmbedRateLimitOption configures a rate-limited embedding provider.
type EmbedRateLimitOption func(*rateLimitEmbedding)

// EmbedRPM sets the maximum embedding requests per minute.
func EmbedRPM(n int) EmbedRateLimitOption {
	return func(r *rateLimitEmbedding) { r.rpm = n }
}

// WithEmbedRateLimit wraps p with proactive rate limiting. Compose with
// other wrappers:
//
//	emb = loreforge.WithEmbedRateLimit(provider, loreforge.EmbedRPM(60))
//	emb = loreforge.WithEmbedRateLimit(loreforge.WithEmbeddingRetry(provider), loreforge.EmbedRPM(60))
func WithEmbedRateLimit(p EmbeddingProvider, opts ...EmbedRateLimitOption) EmbeddingProvider {
	r := &rateLimitEmbedding{inner: p}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *rateLimitEmbedding) Name() string    { return r.inner.Name() }
func (r *rateLimitEmbedding) Dimensions() int { return r.inner.Dimensions() }

func (r *rateLimitEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.waitForBudget(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

// waitForBudget blocks until the RPM budget allows a request. Returns
// ctx.Err() if the context is cancelled while waiting.
func (r *rateLimitEmbedding) waitForBudget(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-time.Minute)
		r.rpmWindow = pruneTime(r.rpmWindow, cutoff)

		if r.rpm <= 0 || len(r.rpmWindow) < r.rpm {
			if r.rpm > 0 {
				r.rpmWindow = append(r.rpmWindow, now)
			}
			r.mu.Unlock()
			return nil
		}

		// Wait until the oldest entry in the window expires.
		wait := r.rpmWindow[0].Add(time.Minute).Sub(now)
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// pruneTime removes entries older than cutoff from a sorted time slice.
func pruneTime(s []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(s) && s[i].Before(cutoff) {
		i++
	}
	return s[i:]
}

// compile-time check
var _ EmbeddingProvider = (*rateLimitEmbedding)(nil)
