package datasource

import (
	"iter"

	"github.com/sushant-115/infinitygrid/core/span"
)

// Row is one entry of an iterated window.
type Row[T any] struct {
	Position int
	// FirstPosition is the first position of the window the row belongs to.
	FirstPosition int
	Value         T
	// Present is false for positions that have not been fetched yet.
	Present bool
}

// Iterate returns the rows of the applied range, in order. The range is
// captured now; each row is read from the buffer when it is yielded, so a
// merge that lands mid-iteration is visible to the rows not yet yielded.
// Without an applied range the sequence is empty.
func (c *Coordinator[T]) Iterate() iter.Seq[Row[T]] {
	r, ok := c.Viewport()
	if !ok {
		return func(func(Row[T]) bool) {}
	}
	return c.IterateRange(r)
}

// IterateRange is Iterate over an arbitrary range. Rows at or beyond the
// current total length are not produced.
func (c *Coordinator[T]) IterateRange(r span.Range) iter.Seq[Row[T]] {
	r = span.New(r.Start, r.End)
	return func(yield func(Row[T]) bool) {
		for pos := max(r.Start, 0); pos <= r.End; pos++ {
			c.mu.Lock()
			length := c.buf.Len()
			v, present := c.buf.Get(pos)
			c.mu.Unlock()

			if pos >= length {
				return
			}
			if !yield(Row[T]{Position: pos, FirstPosition: r.Start, Value: v, Present: present}) {
				return
			}
		}
	}
}
