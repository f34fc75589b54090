package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sushant-115/infinitygrid/core/datasource"
	"github.com/sushant-115/infinitygrid/core/span"
)

// Slice serves rows from memory, optionally after a simulated latency. Its
// contents may be replaced at any time to make the collection grow or shrink
// between fetches.
type Slice[T any] struct {
	latency time.Duration

	mu   sync.RWMutex
	rows []T
}

var _ datasource.Provider[string] = (*Slice[string])(nil)

// NewSlice creates a Slice over rows. The slice is not copied.
func NewSlice[T any](rows []T, latency time.Duration) *Slice[T] {
	return &Slice[T]{rows: rows, latency: latency}
}

// Fetch implements datasource.Provider.
func (s *Slice[T]) Fetch(ctx context.Context, r span.Range) (datasource.Page[T], error) {
	if err := sleep(ctx, s.latency); err != nil {
		return datasource.Page[T]{}, fmt.Errorf("slice provider: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	total := len(s.rows)
	start, n := clip(r, total)
	data := make([]T, n)
	copy(data, s.rows[start:start+n])
	return datasource.Page[T]{TotalLength: total, Start: start, Data: data}, nil
}

// Len returns the current number of rows.
func (s *Slice[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Set replaces the rows.
func (s *Slice[T]) Set(rows []T) {
	s.mu.Lock()
	s.rows = rows
	s.mu.Unlock()
}

// Append adds rows at the end.
func (s *Slice[T]) Append(rows ...T) {
	s.mu.Lock()
	s.rows = append(s.rows, rows...)
	s.mu.Unlock()
}

// Generated serves a fixed-size collection whose rows are computed on demand,
// so a million-row collection costs nothing until it is scrolled.
type Generated[T any] struct {
	total   int
	gen     func(pos int) T
	latency time.Duration
}

var _ datasource.Provider[string] = (*Generated[string])(nil)

// NewGenerated creates a Generated provider of total rows.
func NewGenerated[T any](total int, gen func(pos int) T, latency time.Duration) *Generated[T] {
	return &Generated[T]{total: max(total, 0), gen: gen, latency: latency}
}

// Fetch implements datasource.Provider.
func (g *Generated[T]) Fetch(ctx context.Context, r span.Range) (datasource.Page[T], error) {
	if err := sleep(ctx, g.latency); err != nil {
		return datasource.Page[T]{}, fmt.Errorf("generated provider: %w", err)
	}
	start, n := clip(r, g.total)
	data := make([]T, n)
	for i := range data {
		data[i] = g.gen(start + i)
	}
	return datasource.Page[T]{TotalLength: g.total, Start: start, Data: data}, nil
}

// DemoRow names row pos the way the demo collections do.
func DemoRow(pos int) string {
	return fmt.Sprintf("test-%d", pos)
}
