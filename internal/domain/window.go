package domain

import "fmt"

// Reduction selects how an accepted pixel window becomes one record.
type Reduction string

const (
	// ReductionWindow keeps every pixel as its own column.
	ReductionWindow Reduction = "window"
	// ReductionMean averages the valid pixels; null when none are valid.
	ReductionMean Reduction = "mean"
	// ReductionCenter keeps only the station's own cell; null when it is fill.
	ReductionCenter Reduction = "center"
)

// ParseReduction validates a configured reduction policy.
func ParseReduction(s string) (Reduction, error) {
	switch Reduction(s) {
	case ReductionWindow, ReductionMean, ReductionCenter:
		return Reduction(s), nil
	default:
		return "", fmt.Errorf("unknown reduction policy %q (want window, mean or center)", s)
	}
}

// WindowBoundsError reports a pixel window that would cross the grid edge.
// The window is rejected whole, since clipping would shrink the physical
// footprint the record claims to cover, and the scan is counted as a
// missing timestamp, never as a pipeline failure.
type WindowBoundsError struct {
	Center GridIndex
	Radius int
	Rows   int
	Cols   int
}

func (e *WindowBoundsError) Error() string {
	return fmt.Sprintf("window radius %d around %s exceeds grid bounds %dx%d",
		e.Radius, e.Center, e.Rows, e.Cols)
}

// WindowRect is an inclusive index range inside a grid.
type WindowRect struct {
	RowLo, RowHi int
	ColLo, ColHi int
}

// WindowBounds computes the (2r+1)² index range centered on center inside a
// rows×cols grid, rejecting with a WindowBoundsError when any part of it
// falls outside. Adapters call this before decoding so they can read only
// the rows the window needs.
func WindowBounds(center GridIndex, radius, rows, cols int) (WindowRect, error) {
	if radius < 0 {
		return WindowRect{}, fmt.Errorf("window radius must be >= 0, got %d", radius)
	}
	rect := WindowRect{
		RowLo: center.Row - radius,
		RowHi: center.Row + radius,
		ColLo: center.Col - radius,
		ColHi: center.Col + radius,
	}
	if rect.RowLo < 0 || rect.ColLo < 0 || rect.RowHi >= rows || rect.ColHi >= cols {
		return WindowRect{}, &WindowBoundsError{Center: center, Radius: radius, Rows: rows, Cols: cols}
	}
	return rect, nil
}

// ExtractWindow cuts the pixel window centered on center out of the scan's
// grid and reduces it per policy. Fill cells become null readings. The scan
// grid is not referenced by the returned record, so the caller can release
// it immediately.
func ExtractWindow(scan *Scan, center GridIndex, radius int, policy Reduction) (ChannelRecord, error) {
	rect, err := WindowBounds(center, radius, scan.Grid.Rows, scan.Grid.Cols)
	if err != nil {
		return ChannelRecord{}, err
	}

	side := 2*radius + 1
	pixels := make([]Reading, 0, side*side)
	for row := rect.RowLo; row <= rect.RowHi; row++ {
		for col := rect.ColLo; col <= rect.ColHi; col++ {
			v, ok := scan.Grid.At(GridIndex{Row: row, Col: col})
			if !ok {
				return ChannelRecord{}, fmt.Errorf("window row %d not loaded in scan grid slab", row)
			}
			pixels = append(pixels, ReadingOf(v))
		}
	}

	record := ChannelRecord{
		Timestamp: scan.Timestamp,
		Channel:   scan.Channel,
	}
	switch policy {
	case ReductionMean:
		record.Pixels = []Reading{meanReading(pixels)}
	case ReductionCenter:
		record.Pixels = []Reading{pixels[len(pixels)/2]}
	default:
		record.Pixels = pixels
	}
	return record, nil
}

// meanReading averages the valid readings; null when every pixel is fill.
func meanReading(pixels []Reading) Reading {
	sum, n := 0.0, 0
	for _, p := range pixels {
		if p.Valid {
			sum += p.Value
			n++
		}
	}
	if n == 0 {
		return NullReading()
	}
	return Reading{Value: sum / float64(n), Valid: true}
}

// ColumnNames returns the value column names a window record produces under
// the given policy, in the same order ExtractWindow emits pixels. Window
// pixels use the historical radius={r}_{channel}_{row}{col} scheme with
// 1-based row and column.
func ColumnNames(radius int, channel string, policy Reduction) []string {
	switch policy {
	case ReductionMean:
		return []string{fmt.Sprintf("radius=%d_%s_mean", radius, channel)}
	case ReductionCenter:
		return []string{fmt.Sprintf("radius=%d_%s_center", radius, channel)}
	}
	side := 2*radius + 1
	cols := make([]string, 0, side*side)
	for row := 1; row <= side; row++ {
		for col := 1; col <= side; col++ {
			cols = append(cols, fmt.Sprintf("radius=%d_%s_%d%d", radius, channel, row, col))
		}
	}
	return cols
}
