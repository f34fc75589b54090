package buffer

import "math/bits"

// DefaultPageSize is the number of slots in one page.
const DefaultPageSize = 256

// page is a fixed-size block of slots plus a presence bitmap. Pages are only
// allocated once something is written into them.
type page[T any] struct {
	values  []T
	present []uint64
	count   int
}

func newPage[T any](size int) *page[T] {
	return &page[T]{
		values:  make([]T, size),
		present: make([]uint64, (size+63)/64),
	}
}

func (p *page[T]) has(slot int) bool {
	return p.present[slot>>6]&(1<<(uint(slot)&63)) != 0
}

func (p *page[T]) set(slot int, v T) {
	if !p.has(slot) {
		p.present[slot>>6] |= 1 << (uint(slot) & 63)
		p.count++
	}
	p.values[slot] = v
}

// truncate drops every slot at or after from and returns how many present
// slots were dropped.
func (p *page[T]) truncate(from int) int {
	var zero T
	dropped := 0
	for slot := from; slot < len(p.values); slot++ {
		if p.has(slot) {
			p.present[slot>>6] &^= 1 << (uint(slot) & 63)
			dropped++
		}
		p.values[slot] = zero
	}
	p.count -= dropped
	return dropped
}

// filled reports whether every slot in [from, to] is present.
func (p *page[T]) filled(from, to int) bool {
	if p.count == len(p.values) {
		return true
	}
	for slot := from; slot <= to; {
		word := slot >> 6
		bit := uint(slot) & 63
		// Whole-word fast path.
		if bit == 0 && slot+63 <= to {
			if p.present[word] != ^uint64(0) {
				return false
			}
			slot += 64
			continue
		}
		if p.present[word]&(1<<bit) == 0 {
			return false
		}
		slot++
	}
	return true
}

func (p *page[T]) popcount() int {
	n := 0
	for _, w := range p.present {
		n += bits.OnesCount64(w)
	}
	return n
}
