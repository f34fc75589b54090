// Package viewport turns scroll geometry into the index range a host should
// render. It also compensates for hosts that cannot render a scrollable
// surface as tall as the collection needs.
package viewport

import (
	"math"

	"github.com/sushant-115/infinitygrid/core/span"
)

// Surface is the geometry source the host exposes. Heights and offsets are in
// the host's units (pixels, terminal lines).
type Surface interface {
	// ScrollOffset is the distance from the top of the scrollable surface to
	// the top of the visible area.
	ScrollOffset() float64
	// ViewportHeight is the height of the visible area.
	ViewportHeight() float64
	// RowHeight is the measured height of one row.
	RowHeight() float64
	// SetSurfaceHeight asks the host to make the scrollable surface h tall.
	SetSurfaceHeight(h float64)
	// SurfaceHeight is the height the host actually rendered, which may be
	// less than requested.
	SurfaceHeight() float64
}

// Geometry is the result of one RefreshGeometry pass.
type Geometry struct {
	TotalLength int
	RowHeight   float64
	// IdealHeight is TotalLength * RowHeight.
	IdealHeight float64
	// RenderedHeight is the surface height the host settled on.
	RenderedHeight float64
	// ScaleFactor maps ideal coordinates onto rendered ones: 1 unless
	// NeedsClampCompensation.
	ScaleFactor            float64
	NeedsClampCompensation bool
}

// EffectiveRowHeight is the height one row occupies on the rendered surface.
func (g Geometry) EffectiveRowHeight() float64 {
	return g.RowHeight * g.scale()
}

// RowTop is the offset of pos from the top of the rendered surface.
func (g Geometry) RowTop(pos int) float64 {
	return float64(pos) * g.EffectiveRowHeight()
}

func (g Geometry) scale() float64 {
	if g.ScaleFactor <= 0 {
		return 1
	}
	return g.ScaleFactor
}

// VisibleRange computes the window for a scroll position against g. north and
// south are the prefetch zones before and after the visible rows.
//
// The window is empty (End < Start) only when the row height is not positive.
func (g Geometry) VisibleRange(scrollOffset, viewportHeight float64, north, south int) span.Range {
	if g.RowHeight <= 0 {
		return span.Range{Start: 0, End: -1}
	}
	north, south = max(north, 0), max(south, 0)

	pageSize := max(int(math.Floor(viewportHeight/g.RowHeight)), 1) + north + south
	start := max(int(math.Floor(scrollOffset/g.EffectiveRowHeight()))-north, 0)
	end := start + pageSize - 1

	if g.NeedsClampCompensation && scrollOffset+viewportHeight >= g.RenderedHeight-viewportHeight {
		// Align the last row with the bottom of the surface; the scale factor
		// rounding would otherwise leave a gap there.
		end = max(g.TotalLength-1, end)
		if g.TotalLength > 0 {
			end = min(end, g.TotalLength-1)
		}
		start = max(end-pageSize+south, 0)
		return span.Range{Start: start, End: end}
	}

	// An unknown total (0) leaves end alone so the first fetch can learn it.
	if g.TotalLength > 0 {
		end = min(end, g.TotalLength-1)
		start = min(start, end)
	}
	return span.Range{Start: start, End: end}
}

// ComputeVisibleRange is VisibleRange for an unclamped surface.
func ComputeVisibleRange(scrollOffset, viewportHeight, rowHeight float64, totalLength, north, south int) span.Range {
	g := Geometry{
		TotalLength:    totalLength,
		RowHeight:      rowHeight,
		IdealHeight:    float64(totalLength) * rowHeight,
		RenderedHeight: float64(totalLength) * rowHeight,
		ScaleFactor:    1,
	}
	return g.VisibleRange(scrollOffset, viewportHeight, north, south)
}
