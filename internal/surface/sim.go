// Package surface provides a simulated scrollable surface for hosts that have
// no layout engine of their own (terminals, tests). It renders any requested
// height up to a platform limit, like a browser capping element heights.
package surface

import (
	"sync"

	"github.com/sushant-115/infinitygrid/core/viewport"
)

// Sim is a viewport.Surface with a configurable maximum height.
type Sim struct {
	mu        sync.Mutex
	offset    float64
	viewport  float64
	rowHeight float64
	maxHeight float64
	height    float64
}

var _ viewport.Surface = (*Sim)(nil)

// NewSim creates a surface. maxHeight <= 0 means unlimited.
func NewSim(viewportHeight, rowHeight, maxHeight float64) *Sim {
	return &Sim{viewport: viewportHeight, rowHeight: rowHeight, maxHeight: maxHeight}
}

func (s *Sim) ScrollOffset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

func (s *Sim) ViewportHeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

func (s *Sim) RowHeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowHeight
}

// SetSurfaceHeight renders min(h, maxHeight) and keeps the scroll offset
// inside the new surface.
func (s *Sim) SetSurfaceHeight(h float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxHeight > 0 && h > s.maxHeight {
		h = s.maxHeight
	}
	s.height = max(h, 0)
	s.offset = s.clampLocked(s.offset)
}

func (s *Sim) SurfaceHeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// ScrollTo moves the visible area, clamped to the surface.
func (s *Sim) ScrollTo(offset float64) {
	s.mu.Lock()
	s.offset = s.clampLocked(offset)
	s.mu.Unlock()
}

// ScrollBy moves the visible area by delta.
func (s *Sim) ScrollBy(delta float64) {
	s.mu.Lock()
	s.offset = s.clampLocked(s.offset + delta)
	s.mu.Unlock()
}

// ScrollToBottom puts the bottom of the visible area on the bottom of the
// surface.
func (s *Sim) ScrollToBottom() {
	s.mu.Lock()
	s.offset = s.clampLocked(s.height)
	s.mu.Unlock()
}

// Resize changes the visible height.
func (s *Sim) Resize(viewportHeight float64) {
	s.mu.Lock()
	s.viewport = max(viewportHeight, 0)
	s.offset = s.clampLocked(s.offset)
	s.mu.Unlock()
}

// SetRowHeight changes the measured row height.
func (s *Sim) SetRowHeight(h float64) {
	s.mu.Lock()
	s.rowHeight = h
	s.mu.Unlock()
}

func (s *Sim) clampLocked(offset float64) float64 {
	return min(max(offset, 0), max(s.height-s.viewport, 0))
}
