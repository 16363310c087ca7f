// Package ratelimit throttles a provider. The portfolio fans out every
// (instrument, date) pair at once with no backpressure of its own, so
// the only thing standing between a long lookback window and an
// upstream ban is the per-provider limiter configured here.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"livestock/internal/dates"
	"livestock/internal/provider"
)

// Bucket is a token bucket: rate tokens per second, up to burst held.
type Bucket struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func NewBucket(tokensPerSecond float64, burst int) *Bucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 1e-9
	}
	if burst <= 0 {
		burst = 1
	}
	return &Bucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst), // full bucket allows an initial burst
		last:     time.Now(),
	}
}

// Wait blocks until a token is available or the context is canceled.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := time.Now()
		if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
			b.tokens += elapsed * b.rate
			if b.tokens > b.capacity {
				b.tokens = b.capacity
			}
			b.last = now
		}
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		deficit := 1 - b.tokens
		b.mu.Unlock()

		wait := time.Duration(deficit / b.rate * float64(time.Second))
		if wait <= 0 {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Provider gates every FetchPrice on the bucket.
type Provider struct {
	P provider.Provider
	B *Bucket
}

func (p *Provider) Name() string { return p.P.Name() }

func (p *Provider) FetchPrice(ctx context.Context, symbol string, date dates.Date) (provider.Price, error) {
	if p.B != nil {
		if err := p.B.Wait(ctx); err != nil {
			return provider.Price{}, err
		}
	}
	return p.P.FetchPrice(ctx, symbol, date)
}
