// Package provider holds ready-made datasource.Provider implementations: an
// in-memory slice, a generated collection, a SQLite table and a rate-limiting
// wrapper.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sushant-115/infinitygrid/core/span"
)

// ErrClosed is returned by providers used after Close.
var ErrClosed = errors.New("provider: closed")

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// clip returns the part of r inside a collection of total rows as a start
// position and a row count. start is kept inside [0, total] so an empty page
// still passes validation.
func clip(r span.Range, total int) (start, n int) {
	start = min(max(r.Start, 0), total)
	in, ok := r.Intersect(total)
	if !ok {
		return start, 0
	}
	return in.Start, in.Len()
}
