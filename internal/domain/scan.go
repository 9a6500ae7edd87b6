package domain

import (
	"fmt"
	"time"
)

// GridGeometry holds the projection parameters of an ABI fixed-grid product:
// the reference ellipsoid, the satellite's perspective point, and the scan
// angle coordinate vectors of the grid axes. Every scan of the same product
// carries the same geometry, which is what makes index pinning sound.
type GridGeometry struct {
	SemiMajorAxis     float64 // equatorial radius r_eq, meters
	SemiMinorAxis     float64 // polar radius r_pol, meters
	PerspectiveHeight float64 // satellite height above the ellipsoid, meters
	LonOrigin         float64 // longitude of projection origin, degrees

	// Scan-angle coordinates of the grid axes, radians. XCoords indexes
	// columns (east-west), YCoords indexes rows (north-south).
	XCoords []float64
	YCoords []float64
}

// GridIndex addresses one cell of a scan grid.
type GridIndex struct {
	Row int
	Col int
}

func (g GridIndex) String() string {
	return fmt.Sprintf("(%d, %d)", g.Row, g.Col)
}

// Grid is a scan's physical-value raster. Rows and Cols are always the full
// product dimensions; Data may hold only a row slab (starting at RowOffset)
// when the caller knows which window it needs, so bounds decisions are made
// against the real grid while only a handful of rows sit in memory.
// NaN cells mark sensor fill values.
type Grid struct {
	Rows      int
	Cols      int
	RowOffset int
	Data      [][]float64
}

// FullGrid wraps a completely materialized raster.
func FullGrid(data [][]float64) Grid {
	g := Grid{Rows: len(data), Data: data}
	if g.Rows > 0 {
		g.Cols = len(data[0])
	}
	return g
}

// At returns the cell value at the given full-grid index. The second return
// is false when the index lies outside the loaded slab.
func (g Grid) At(idx GridIndex) (float64, bool) {
	r := idx.Row - g.RowOffset
	if r < 0 || r >= len(g.Data) || idx.Col < 0 || idx.Col >= len(g.Data[r]) {
		return 0, false
	}
	return g.Data[r][idx.Col], true
}

// Scan is one satellite acquisition: a single channel's grid plus the
// metadata needed to place and time it. The grid is read-only once decoded
// and is not retained after its window is cut.
type Scan struct {
	Channel   string    // ABI channel identifier, e.g. "C01"
	Timestamp time.Time // scan start rounded to the product cadence, UTC
	Geometry  GridGeometry
	Grid      Grid
}
