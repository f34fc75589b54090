// Package span defines the inclusive index interval shared by the buffer, the
// data source and the viewport calculator.
package span

import "fmt"

// Range is an inclusive [Start, End] interval of positions.
type Range struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// New returns the range [start, end], swapping the bounds if needed.
func New(start, end int) Range {
	if end < start {
		start, end = end, start
	}
	return Range{Start: start, End: end}
}

// Len is the number of positions in r.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether pos lies inside r.
func (r Range) Contains(pos int) bool {
	return pos >= r.Start && pos <= r.End
}

// Covers reports whether other lies entirely inside r.
func (r Range) Covers(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// Intersect clips r to [0, length). ok is false when nothing is left.
func (r Range) Intersect(length int) (Range, bool) {
	lo := max(r.Start, 0)
	hi := min(r.End, length-1)
	if lo > hi {
		return Range{}, false
	}
	return Range{Start: lo, End: hi}, true
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}
