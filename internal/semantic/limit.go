package semantic

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited caps how often the wrapped resolver is called across all
// scenarios sharing it.
type RateLimited struct {
	next    Resolver
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute calls per minute with a burst of one.
func NewRateLimited(next Resolver, perMinute int) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Resolve waits for a token, then delegates. Waiting honours ctx.
func (r *RateLimited) Resolve(ctx context.Context, req Request) (Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("semantic rate limit: %w", err)
	}
	return r.next.Resolve(ctx, req)
}
