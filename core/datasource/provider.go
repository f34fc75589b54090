package datasource

import (
	"context"

	"github.com/sushant-115/infinitygrid/core/span"
)

// Page is one provider response.
type Page[T any] struct {
	// TotalLength is the authoritative collection size at the time of the
	// call. It may grow or shrink between calls.
	TotalLength int `json:"total_length"`
	// Start is the absolute position of Data[0].
	Start int `json:"start"`
	// Data covers [Start, Start+len(Data)-1], some or all of the request.
	Data []T `json:"data"`
}

// NewPage builds a page whose data starts at the requested range's start, for
// providers that don't echo the start back.
func NewPage[T any](total int, requested span.Range, data []T) Page[T] {
	return Page[T]{TotalLength: total, Start: requested.Start, Data: data}
}

// Provider fetches rows for a range. Implementations may block; the data
// source always calls Fetch from its own goroutine and never cancels it.
type Provider[T any] interface {
	Fetch(ctx context.Context, r span.Range) (Page[T], error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc[T any] func(ctx context.Context, r span.Range) (Page[T], error)

// Fetch implements Provider.
func (f ProviderFunc[T]) Fetch(ctx context.Context, r span.Range) (Page[T], error) {
	return f(ctx, r)
}
