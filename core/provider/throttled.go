package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/sushant-115/infinitygrid/core/datasource"
	"github.com/sushant-115/infinitygrid/core/span"
)

// Throttled limits how often the wrapped provider is called. Fetch blocks
// until the limiter admits the call or ctx is done.
type Throttled[T any] struct {
	next    datasource.Provider[T]
	limiter *rate.Limiter
}

// NewThrottled wraps next with a token bucket of perSecond calls and the
// given burst. perSecond <= 0 disables the limit.
func NewThrottled[T any](next datasource.Provider[T], perSecond float64, burst int) *Throttled[T] {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &Throttled[T]{next: next, limiter: rate.NewLimiter(limit, max(burst, 1))}
}

// Fetch implements datasource.Provider.
func (t *Throttled[T]) Fetch(ctx context.Context, r span.Range) (datasource.Page[T], error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return datasource.Page[T]{}, fmt.Errorf("throttled provider: %w", err)
	}
	return t.next.Fetch(ctx, r)
}
