package viewport

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/sushant-115/infinitygrid/core/span"
	"github.com/sushant-115/infinitygrid/pkg/logger"
)

// DefaultSafeHeights are surface heights known to render on common hosts,
// tallest first.
var DefaultSafeHeights = []float64{20_000_000, 17_895_696, 1_533_917}

// Config tunes a Calculator.
type Config struct {
	// SafeHeights is the clamp ladder, tallest first.
	SafeHeights []float64 `yaml:"safe_heights"`
	// Tolerance is how far a measured height may be from the requested one
	// and still count as equal.
	Tolerance     float64 `yaml:"tolerance"`
	PrefetchNorth int     `yaml:"prefetch_north"`
	PrefetchSouth int     `yaml:"prefetch_south"`
}

// DefaultConfig returns the default ladder with a one-unit tolerance and no
// prefetch.
func DefaultConfig() Config {
	return Config{
		SafeHeights: append([]float64(nil), DefaultSafeHeights...),
		Tolerance:   1,
	}
}

// Calculator owns the geometry of one surface. Geometry is cached per
// (total length, row height) pair.
type Calculator struct {
	surface Surface
	cfg     Config
	logger  *zap.Logger

	mu    sync.Mutex
	geom  Geometry
	valid bool
}

// NewCalculator creates a Calculator for surface. An empty ladder selects
// DefaultSafeHeights.
func NewCalculator(surface Surface, cfg Config, l *zap.Logger) *Calculator {
	if len(cfg.SafeHeights) == 0 {
		cfg.SafeHeights = append([]float64(nil), DefaultSafeHeights...)
	}
	if cfg.Tolerance < 0 {
		cfg.Tolerance = 0
	}
	return &Calculator{
		surface: surface,
		cfg:     cfg,
		logger:  logger.OrNop(l).Named("viewport"),
	}
}

// Config returns the calculator's configuration.
func (c *Calculator) Config() Config { return c.cfg }

// Geometry returns the cached geometry, if any.
func (c *Calculator) Geometry() (Geometry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.geom, c.valid
}

// Invalidate forces the next RefreshGeometry to measure again.
func (c *Calculator) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// RefreshGeometry sizes the surface for totalLength rows and returns the
// resulting geometry. It only talks to the surface when totalLength or the
// surface's row height changed since the last call.
func (c *Calculator) RefreshGeometry(totalLength int) Geometry {
	rowHeight := c.surface.RowHeight()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.geom.TotalLength == totalLength && c.geom.RowHeight == rowHeight {
		return c.geom
	}
	c.geom = c.measure(totalLength, rowHeight)
	c.valid = true
	return c.geom
}

// measure runs the clamp ladder. When no safe height is honored it falls back
// to the smallest safe height even if that is taller than the ideal height;
// a short collection whose measurement fails therefore renders on a surface
// scaled up by smallest/ideal.
func (c *Calculator) measure(totalLength int, rowHeight float64) Geometry {
	ideal := float64(totalLength) * rowHeight
	g := Geometry{TotalLength: totalLength, RowHeight: rowHeight, IdealHeight: ideal, ScaleFactor: 1}
	if ideal <= 0 {
		c.surface.SetSurfaceHeight(0)
		return g
	}

	c.surface.SetSurfaceHeight(ideal)
	measured := c.surface.SurfaceHeight()
	if measured > 0 && c.equal(measured, ideal) {
		g.RenderedHeight = measured
		return g
	}

	requested, measured, ok := c.climbLadder(ideal)
	if !ok {
		requested = c.cfg.SafeHeights[len(c.cfg.SafeHeights)-1]
		c.surface.SetSurfaceHeight(requested)
		measured = c.surface.SurfaceHeight()
		c.logger.Warn("no safe surface height was honored, using the smallest",
			zap.Float64("idealHeight", ideal),
			zap.Float64("requested", requested),
			zap.Float64("measured", measured))
	}
	if measured <= 0 {
		measured = requested
	}

	g.RenderedHeight = measured
	g.ScaleFactor = measured / ideal
	g.NeedsClampCompensation = true
	c.logger.Info("surface height clamped",
		zap.Int("totalLength", totalLength),
		zap.Float64("idealHeight", ideal),
		zap.Float64("renderedHeight", measured),
		zap.Float64("scaleFactor", g.ScaleFactor))
	return g
}

// climbLadder tries every safe height below ideal, tallest first, and returns
// the first one the surface honors.
func (c *Calculator) climbLadder(ideal float64) (requested, measured float64, ok bool) {
	for _, h := range c.cfg.SafeHeights {
		if h >= ideal {
			continue
		}
		c.surface.SetSurfaceHeight(h)
		m := c.surface.SurfaceHeight()
		if m > 0 && c.equal(m, h) {
			return h, m, true
		}
		c.logger.Debug("safe height rejected", zap.Float64("requested", h), zap.Float64("measured", m))
	}
	return 0, 0, false
}

func (c *Calculator) equal(a, b float64) bool {
	return math.Abs(a-b) <= c.cfg.Tolerance
}

// VisibleRange refreshes the geometry for totalLength and computes the window
// for the surface's current scroll position.
func (c *Calculator) VisibleRange(totalLength int) span.Range {
	g := c.RefreshGeometry(totalLength)
	return g.VisibleRange(c.surface.ScrollOffset(), c.surface.ViewportHeight(), c.cfg.PrefetchNorth, c.cfg.PrefetchSouth)
}

// Surface returns the surface the calculator measures.
func (c *Calculator) Surface() Surface { return c.surface }
