package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goes16Geometry returns a geometry with the GOES-16 projection constants
// and a small symmetric scan-angle grid: 5 rows from +0.1 to -0.1 rad
// (north to south) and 5 columns from -0.1 to +0.1 rad (west to east),
// so the sub-satellite point lands exactly on the center cell.
func goes16Geometry() GridGeometry {
	return GridGeometry{
		SemiMajorAxis:     6378137.0,
		SemiMinorAxis:     6356752.31414,
		PerspectiveHeight: 35786023.0,
		LonOrigin:         -75.0,
		YCoords:           []float64{0.1, 0.05, 0.0, -0.05, -0.1},
		XCoords:           []float64{-0.1, -0.05, 0.0, 0.05, 0.1},
	}
}

func TestLocateIndex(t *testing.T) {
	geom := goes16Geometry()

	t.Run("sub-satellite point maps to grid center", func(t *testing.T) {
		// At (0, lon origin) the sight vector is purely radial: both scan
		// angles are exactly zero, the center of the synthetic grid.
		idx, err := LocateIndex(geom, 0, -75.0)
		require.NoError(t, err)
		assert.Equal(t, GridIndex{Row: 2, Col: 2}, idx)
	})

	t.Run("northern latitude moves the row north", func(t *testing.T) {
		// 30°N on the origin meridian: scan angle y ≈ 0.0862 rad, nearest
		// to the 0.1 entry; x stays exactly zero.
		idx, err := LocateIndex(geom, 30.0, -75.0)
		require.NoError(t, err)
		assert.Equal(t, GridIndex{Row: 0, Col: 2}, idx)
	})

	t.Run("deterministic and stable across calls", func(t *testing.T) {
		first, err := LocateIndex(geom, -15.60083, -47.71306)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := LocateIndex(geom, -15.60083, -47.71306)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})

	t.Run("far side of the Earth is rejected", func(t *testing.T) {
		_, err := LocateIndex(geom, 0, 105.0)
		require.Error(t, err)
		var notVisible *NotVisibleError
		require.ErrorAs(t, err, &notVisible)
		assert.Equal(t, 105.0, notVisible.Longitude)
		assert.Contains(t, err.Error(), "hidden behind the Earth")
	})

	t.Run("empty coordinate vectors are rejected", func(t *testing.T) {
		_, err := LocateIndex(GridGeometry{SemiMajorAxis: 6378137.0, SemiMinorAxis: 6356752.31414, PerspectiveHeight: 35786023.0}, 0, -75.0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty coordinate vectors")
	})
}

func TestNearestIndex(t *testing.T) {
	coords := []float64{0.1, 0.05, 0.0, -0.05, -0.1}

	tests := []struct {
		name   string
		target float64
		want   int
	}{
		{"exact match", 0.05, 1},
		{"closest above", 0.04, 1},
		{"closest below", 0.02, 2},
		{"beyond the end", -0.5, 4},
		{"beyond the start", 0.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nearestIndex(coords, tt.target))
		})
	}
}
