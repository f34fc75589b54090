package datasource

import (
	"iter"

	"github.com/sushant-115/infinitygrid/core/span"
)

// Source is what the rendering layer sees of a data source.
type Source[T any] interface {
	TotalLength() int
	IsFetched(r span.Range) bool
	IsPageReady(r span.Range) bool
	RequestRange(r span.Range) bool
	Ready() bool
	Viewport() (span.Range, bool)
	Iterate() iter.Seq[Row[T]]
	ClearAll()
}

var _ Source[string] = (*Coordinator[string])(nil)
