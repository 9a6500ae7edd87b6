package domain

import (
	"fmt"
	"math"
)

// NotVisibleError reports a coordinate on the far side of the Earth from the
// satellite: the line of sight never intersects the visible disk, so no grid
// cell exists for it. This is a configuration problem (wrong station for the
// satellite), not a per-scan condition.
type NotVisibleError struct {
	Latitude  float64
	Longitude float64
}

func (e *NotVisibleError) Error() string {
	return fmt.Sprintf("coordinate (%.5f, %.5f) is hidden behind the Earth from this satellite", e.Latitude, e.Longitude)
}

// LocateIndex maps a WGS84 coordinate to its nearest ABI fixed-grid cell
// using the inverse geostationary projection from the GOES-R PUG (volume 3,
// section 5.1.2.8): geodetic latitude is converted to geocentric on the
// ellipsoid, the sight vector from the satellite is formed, checked for
// visibility, and converted to the scan angles the grid axes are expressed
// in. The nearest entries of the coordinate vectors give the cell.
//
// The mapping is deterministic: identical geometry and coordinates always
// yield the identical index, so one resolution per channel can be pinned for
// a whole run.
func LocateIndex(geom GridGeometry, lat, lon float64) (GridIndex, error) {
	if len(geom.XCoords) == 0 || len(geom.YCoords) == 0 {
		return GridIndex{}, fmt.Errorf("locate index: geometry has empty coordinate vectors")
	}

	rEq := geom.SemiMajorAxis
	rPol := geom.SemiMinorAxis
	H := rEq + geom.PerspectiveHeight
	lambda0 := geom.LonOrigin * (math.Pi / 180.0)

	latRad := lat * (math.Pi / 180.0)
	lonRad := lon * (math.Pi / 180.0)

	// Geocentric latitude and radius at the surface point.
	eSq := 1.0 - (rPol*rPol)/(rEq*rEq)
	phiC := math.Atan((rPol * rPol) / (rEq * rEq) * math.Tan(latRad))
	rC := rPol / math.Sqrt(1.0-eSq*math.Cos(phiC)*math.Cos(phiC))

	// Sight vector from the satellite to the surface point.
	sx := H - rC*math.Cos(phiC)*math.Cos(lonRad-lambda0)
	sy := -rC * math.Cos(phiC) * math.Sin(lonRad-lambda0)
	sz := rC * math.Sin(phiC)

	if H*(H-sx) < sy*sy+(rEq*rEq)/(rPol*rPol)*sz*sz {
		return GridIndex{}, &NotVisibleError{Latitude: lat, Longitude: lon}
	}

	targetX := math.Asin(-sy / math.Sqrt(sx*sx+sy*sy+sz*sz))
	targetY := math.Atan(sz / sx)

	return GridIndex{
		Row: nearestIndex(geom.YCoords, targetY),
		Col: nearestIndex(geom.XCoords, targetX),
	}, nil
}

// nearestIndex returns the index of the coordinate entry closest to target.
// Handles ascending and descending vectors alike; ABI y coordinates descend.
func nearestIndex(coords []float64, target float64) int {
	best := 0
	bestDist := math.Abs(coords[0] - target)
	for i := 1; i < len(coords); i++ {
		if d := math.Abs(coords[i] - target); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
