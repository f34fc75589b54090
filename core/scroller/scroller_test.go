package scroller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sushant-115/infinitygrid/core/datasource"
	"github.com/sushant-115/infinitygrid/core/span"
	"github.com/sushant-115/infinitygrid/core/viewport"
)

// --- Test Helpers ---

type testSurface struct {
	mu               sync.Mutex
	offset, viewport float64
	row, height      float64
}

func (s *testSurface) ScrollOffset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

func (s *testSurface) ViewportHeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

func (s *testSurface) RowHeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.row
}

func (s *testSurface) SetSurfaceHeight(h float64) {
	s.mu.Lock()
	s.height = h
	s.mu.Unlock()
}

func (s *testSurface) SurfaceHeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

func (s *testSurface) scrollTo(offset float64) {
	s.mu.Lock()
	s.offset = offset
	s.mu.Unlock()
}

// countingProvider serves total rows and records every requested range.
type countingProvider struct {
	total int
	calls atomic.Int32
	mu    sync.Mutex
	seen  []span.Range
}

func (p *countingProvider) Fetch(_ context.Context, r span.Range) (datasource.Page[string], error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.seen = append(p.seen, r)
	p.mu.Unlock()

	end := min(r.End, p.total-1)
	data := make([]string, 0, max(end-r.Start+1, 0))
	for i := r.Start; i <= end; i++ {
		data = append(data, fmt.Sprintf("row-%d", i))
	}
	return datasource.Page[string]{TotalLength: p.total, Start: r.Start, Data: data}, nil
}

func (p *countingProvider) last() span.Range {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen[len(p.seen)-1]
}

type fixture struct {
	surface  *testSurface
	provider *countingProvider
	source   *datasource.Coordinator[string]
	scroller *Scroller[string]
}

func newFixture(t *testing.T, total int, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		surface:  &testSurface{viewport: 400, row: 20},
		provider: &countingProvider{total: total},
	}
	src, err := datasource.New[string](f.provider, datasource.Config{}, datasource.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	f.source = src
	calc := viewport.NewCalculator(f.surface, viewport.DefaultConfig(), zaptest.NewLogger(t))
	f.scroller = New[string](src, calc, cfg, zaptest.NewLogger(t))
	t.Cleanup(func() {
		f.scroller.Close()
		src.Wait()
	})
	return f
}

func (f *fixture) waitReady(t *testing.T) {
	t.Helper()
	require.Eventually(t, f.scroller.Ready, 2*time.Second, 5*time.Millisecond)
}

// --- Test Cases ---

func TestScroller_StartLoadsFirstWindow(t *testing.T) {
	f := newFixture(t, 1000, DefaultConfig())
	require.False(t, f.scroller.Ready())

	f.scroller.Start()
	f.waitReady(t)

	require.Equal(t, int32(1), f.provider.calls.Load())
	require.Equal(t, span.New(0, 19), f.provider.last())
	require.Equal(t, 1000, f.source.TotalLength())

	var positions []int
	for row := range f.scroller.Rows() {
		require.True(t, row.Present)
		positions = append(positions, row.Position)
	}
	require.Len(t, positions, 20)
}

func TestScroller_PreventInitialLoad(t *testing.T) {
	f := newFixture(t, 1000, Config{PreventInitialLoad: true})
	f.scroller.Start()

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, f.provider.calls.Load())
	require.False(t, f.scroller.Ready())
}

func TestScroller_DebounceCoalescesScrolls(t *testing.T) {
	f := newFixture(t, 1000, Config{Debounce: 50 * time.Millisecond})
	f.scroller.Start()
	f.waitReady(t)

	for _, offset := range []float64{5000, 6000, 7000} {
		f.surface.scrollTo(offset)
		f.scroller.OnScroll()
	}
	require.False(t, f.scroller.Ready(), "an update is waiting out the debounce")

	f.waitReady(t)
	require.Equal(t, int32(2), f.provider.calls.Load())
	require.Equal(t, span.New(350, 369), f.provider.last())

	vp, ok := f.source.Viewport()
	require.True(t, ok)
	require.Equal(t, span.New(350, 369), vp)
}

func TestScroller_CacheHitAppliesImmediately(t *testing.T) {
	f := newFixture(t, 1000, Config{Debounce: time.Hour})
	f.scroller.Start()
	f.waitReady(t)

	f.surface.scrollTo(4000)
	f.scroller.OnScroll()
	require.True(t, f.scroller.Flush())
	f.waitReady(t)

	// Scroll away; with an hour-long debounce nothing is fetched.
	f.surface.scrollTo(10000)
	f.scroller.OnScroll()
	require.False(t, f.scroller.Ready())

	// Scrolling back over cached rows cancels the pending update.
	f.surface.scrollTo(0)
	f.scroller.OnScroll()
	require.True(t, f.scroller.Ready())

	vp, _ := f.source.Viewport()
	require.Equal(t, span.New(0, 19), vp)
	require.Equal(t, int32(2), f.provider.calls.Load())
	require.False(t, f.scroller.Flush(), "nothing is pending after a cache hit")
}

func TestScroller_Flush(t *testing.T) {
	f := newFixture(t, 1000, Config{Debounce: time.Hour})
	f.scroller.Start()
	f.waitReady(t)

	f.surface.scrollTo(4000)
	f.scroller.OnScroll()
	require.True(t, f.scroller.Flush())
	f.waitReady(t)
	require.Equal(t, span.New(200, 219), f.provider.last())
}

func TestScroller_CloseCancelsPendingUpdate(t *testing.T) {
	f := newFixture(t, 1000, Config{Debounce: 10 * time.Millisecond})
	f.scroller.Start()
	f.waitReady(t)

	f.surface.scrollTo(9000)
	f.scroller.OnScroll()
	f.scroller.Close()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), f.provider.calls.Load())

	f.scroller.OnScroll()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), f.provider.calls.Load())
}

func TestScroller_Geometry(t *testing.T) {
	f := newFixture(t, 5, DefaultConfig())
	f.scroller.Start()
	f.waitReady(t)

	// Five rows are shorter than the visible area.
	require.Equal(t, 400.0, f.scroller.SurfaceHeight())
	require.Equal(t, 60.0, f.scroller.RowTop(3))

	vp, _ := f.source.Viewport()
	require.Equal(t, span.New(0, 4), vp)
}

func TestScroller_Selection(t *testing.T) {
	f := newFixture(t, 10, DefaultConfig())

	_, ok := f.scroller.Selected()
	require.False(t, ok)
	require.False(t, f.scroller.IsSelected(0))

	f.scroller.Select(3)
	require.True(t, f.scroller.IsSelected(3))
	require.False(t, f.scroller.IsSelected(4))

	f.scroller.Select(4)
	require.False(t, f.scroller.IsSelected(3))
	pos, ok := f.scroller.Selected()
	require.True(t, ok)
	require.Equal(t, 4, pos)
}
