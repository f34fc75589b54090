// Package buffer implements the sparse, resizable row store behind a windowed
// data source. Positions that were never fetched are Absent.
package buffer

import (
	"fmt"

	"github.com/sushant-115/infinitygrid/core/span"
)

// SparseBuffer maps positions in [0, Len()) to values or Absent.
//
// Storage is a page table: a position lives in page pos/pageSize, and a page
// is allocated the first time one of its slots is written. A buffer sized to a
// million rows with one window fetched therefore holds a handful of pages.
//
// SparseBuffer is not safe for concurrent use. Its owner serializes access.
type SparseBuffer[T any] struct {
	pageSize int
	length   int
	// sized is false until the first Resize after construction or Clear. An
	// unsized buffer has not learnt the collection size yet.
	sized   bool
	pages   map[int]*page[T]
	present int
}

// New creates an empty, unsized buffer. pageSize <= 0 selects DefaultPageSize.
func New[T any](pageSize int) *SparseBuffer[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &SparseBuffer[T]{
		pageSize: pageSize,
		pages:    make(map[int]*page[T]),
	}
}

// Len is the believed total size of the collection.
func (b *SparseBuffer[T]) Len() int { return b.length }

// Sized reports whether Resize has been called since construction or Clear.
func (b *SparseBuffer[T]) Sized() bool { return b.sized }

// PresentCount is the number of non-Absent positions.
func (b *SparseBuffer[T]) PresentCount() int { return b.present }

// PageCount is the number of allocated pages.
func (b *SparseBuffer[T]) PageCount() int { return len(b.pages) }

// Resize grows the buffer with Absent positions or truncates it, discarding
// every position >= n. Equal lengths are a no-op apart from marking the buffer
// sized.
func (b *SparseBuffer[T]) Resize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	b.sized = true
	if n >= b.length {
		b.length = n
		return nil
	}

	if n == 0 {
		b.pages = make(map[int]*page[T])
		b.present = 0
		b.length = 0
		return nil
	}

	lastPage := (n - 1) / b.pageSize
	for idx, p := range b.pages {
		switch {
		case idx > lastPage:
			b.present -= p.count
			delete(b.pages, idx)
		case idx == lastPage:
			b.present -= p.truncate(n - idx*b.pageSize)
			if p.count == 0 {
				delete(b.pages, idx)
			}
		}
	}
	b.length = n
	return nil
}

// Write stores values contiguously from start. The whole write must fit in
// [0, Len()); otherwise nothing is written and ErrRange is returned.
func (b *SparseBuffer[T]) Write(start int, values []T) error {
	if start < 0 || start+len(values) > b.length {
		return fmt.Errorf("%w: write [%d,%d) into length %d", ErrRange, start, start+len(values), b.length)
	}
	for i, v := range values {
		pos := start + i
		idx, slot := pos/b.pageSize, pos%b.pageSize
		p, ok := b.pages[idx]
		if !ok {
			p = newPage[T](b.pageSize)
			b.pages[idx] = p
		}
		before := p.count
		p.set(slot, v)
		b.present += p.count - before
	}
	return nil
}

// Get returns the value at pos and whether it is present.
func (b *SparseBuffer[T]) Get(pos int) (T, bool) {
	var zero T
	if pos < 0 || pos >= b.length {
		return zero, false
	}
	p, ok := b.pages[pos/b.pageSize]
	if !ok {
		return zero, false
	}
	slot := pos % b.pageSize
	if !p.has(slot) {
		return zero, false
	}
	return p.values[slot], true
}

// IsFilled reports whether every position of r ∩ [0, Len()) holds a value.
// An empty intersection is vacuously filled once the buffer is sized; an
// unsized buffer is never filled.
func (b *SparseBuffer[T]) IsFilled(r span.Range) bool {
	if !b.sized {
		return false
	}
	clipped, ok := r.Intersect(b.length)
	if !ok {
		return true
	}

	for pos := clipped.Start; pos <= clipped.End; {
		idx := pos / b.pageSize
		p, ok := b.pages[idx]
		if !ok {
			return false
		}
		pageEnd := min((idx+1)*b.pageSize-1, clipped.End)
		if !p.filled(pos-idx*b.pageSize, pageEnd-idx*b.pageSize) {
			return false
		}
		pos = pageEnd + 1
	}
	return true
}

// Clear drops all data and returns the buffer to its unsized, empty state.
func (b *SparseBuffer[T]) Clear() {
	b.pages = make(map[int]*page[T])
	b.length = 0
	b.present = 0
	b.sized = false
}
