package inference

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// rateLimiter implements a simple token bucket rate limiter.
type rateLimiter struct {
	lastRefill time.Time
	tokens     int
	capacity   int
	mu         sync.Mutex
}

// newRateLimiter creates a new rate limiter with the specified requests per minute.
func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}

	return &rateLimiter{
		tokens:     requestsPerMinute,
		capacity:   requestsPerMinute,
		lastRefill: time.Now(),
	}
}

// wait blocks until a token is available or the context is canceled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if rl.tryAcquire() {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// tryAcquire attempts to acquire a token without blocking, refilling
// the bucket proportionally to elapsed time.
func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	elapsed := time.Since(rl.lastRefill)
	refill := int(elapsed.Minutes() * float64(rl.capacity))
	if refill > 0 {
		rl.tokens += refill
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.lastRefill = time.Now()
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// ratedClient wraps a Client with a request rate limit.
type ratedClient struct {
	inner   Client
	limiter *rateLimiter
}

// Infer waits for rate-limit capacity before delegating.
func (c *ratedClient) Infer(ctx context.Context, req Request) (Result, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return Result{}, err
	}
	return c.inner.Infer(ctx, req)
}
