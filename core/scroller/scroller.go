// Package scroller is the host-side glue between scroll events, the viewport
// calculator and a data source. Geometry-changing events are debounced unless
// the target window is already cached.
package scroller

import (
	"iter"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sushant-115/infinitygrid/core/datasource"
	"github.com/sushant-115/infinitygrid/core/span"
	"github.com/sushant-115/infinitygrid/core/viewport"
	"github.com/sushant-115/infinitygrid/pkg/logger"
)

// DefaultDebounce is the quiet interval before a scroll triggers a fetch.
const DefaultDebounce = 100 * time.Millisecond

// Config tunes a Scroller.
type Config struct {
	Debounce time.Duration `yaml:"debounce"`
	// PreventInitialLoad stops Start from requesting the first window.
	PreventInitialLoad bool `yaml:"prevent_initial_load"`
}

// DefaultConfig returns a Config with DefaultDebounce.
func DefaultConfig() Config {
	return Config{Debounce: DefaultDebounce}
}

// Scroller drives a data source from a surface's scroll position.
type Scroller[T any] struct {
	source datasource.Source[T]
	calc   *viewport.Calculator
	cfg    Config
	logger *zap.Logger

	mu sync.Mutex
	// timer is the pending debounced update; seq lets a timer that fired
	// after being superseded recognise itself.
	timer       *time.Timer
	seq         uint64
	selected    int
	hasSelected bool
	closed      bool
}

// New creates a Scroller. A non-positive debounce selects DefaultDebounce.
func New[T any](source datasource.Source[T], calc *viewport.Calculator, cfg Config, l *zap.Logger) *Scroller[T] {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Scroller[T]{
		source: source,
		calc:   calc,
		cfg:    cfg,
		logger: logger.OrNop(l).Named("scroller"),
	}
}

// Start requests the first window unless PreventInitialLoad is set.
func (s *Scroller[T]) Start() {
	if s.cfg.PreventInitialLoad {
		s.logger.Debug("initial load prevented")
		return
	}
	s.apply()
}

// OnScroll handles a scroll event.
func (s *Scroller[T]) OnScroll() { s.launchUpdate() }

// OnResize handles a change of the visible area.
func (s *Scroller[T]) OnResize() { s.launchUpdate() }

func (s *Scroller[T]) launchUpdate() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()

	r := s.calc.VisibleRange(s.source.TotalLength())
	if s.source.IsFetched(r) {
		s.mu.Unlock()
		s.source.RequestRange(r)
		s.logger.Debug("window applied immediately", zap.Stringer("range", r))
		return
	}

	seq := s.seq
	s.timer = time.AfterFunc(s.cfg.Debounce, func() {
		s.mu.Lock()
		if s.closed || s.seq != seq {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		s.apply()
	})
	s.mu.Unlock()
}

// stopTimerLocked cancels the pending update. Must be called with s.mu held.
func (s *Scroller[T]) stopTimerLocked() {
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Flush runs a pending debounced update now. It reports whether one was
// pending.
func (s *Scroller[T]) Flush() bool {
	s.mu.Lock()
	if s.closed || s.timer == nil {
		s.mu.Unlock()
		return false
	}
	s.stopTimerLocked()
	s.mu.Unlock()
	s.apply()
	return true
}

func (s *Scroller[T]) apply() {
	r := s.calc.VisibleRange(s.source.TotalLength())
	if r.Len() == 0 {
		return
	}
	hit := s.source.RequestRange(r)
	s.logger.Debug("window requested", zap.Stringer("range", r), zap.Bool("cacheHit", hit))
}

// Window is the range the current scroll position maps to.
func (s *Scroller[T]) Window() span.Range {
	return s.calc.VisibleRange(s.source.TotalLength())
}

// Ready reports whether the data source is ready and no update is waiting
// out the debounce.
func (s *Scroller[T]) Ready() bool {
	s.mu.Lock()
	pending := s.timer != nil
	s.mu.Unlock()
	return !pending && s.source.Ready()
}

// Refresh re-derives the geometry for the data source's current length.
func (s *Scroller[T]) Refresh() viewport.Geometry {
	return s.calc.RefreshGeometry(s.source.TotalLength())
}

// RowTop is the offset of pos from the top of the rendered surface.
func (s *Scroller[T]) RowTop(pos int) float64 {
	return s.Refresh().RowTop(pos)
}

// SurfaceHeight is the height of the scrollable surface, never shorter than
// the visible area.
func (s *Scroller[T]) SurfaceHeight() float64 {
	g := s.Refresh()
	return max(g.RenderedHeight, s.calc.Surface().ViewportHeight())
}

// Rows iterates the applied window.
func (s *Scroller[T]) Rows() iter.Seq[datasource.Row[T]] {
	return s.source.Iterate()
}

// Select marks pos as the selected row.
func (s *Scroller[T]) Select(pos int) {
	s.mu.Lock()
	s.selected, s.hasSelected = pos, true
	s.mu.Unlock()
}

// IsSelected reports whether pos is the selected row.
func (s *Scroller[T]) IsSelected(pos int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasSelected && s.selected == pos
}

// Selected returns the selected row, if any.
func (s *Scroller[T]) Selected() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.hasSelected
}

// Close cancels any pending update. Later events are ignored.
func (s *Scroller[T]) Close() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.closed = true
	s.mu.Unlock()
}
