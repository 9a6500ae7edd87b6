package domain

import "math"

// Reading is one nullable measurement: a sensor fill value, a saturated
// pixel, or a missing archive slot all surface as an invalid Reading rather
// than a magic number. The zero value is null.
type Reading struct {
	Value float64
	Valid bool
}

// ReadingOf returns a valid Reading, or a null one when v is NaN.
func ReadingOf(v float64) Reading {
	if math.IsNaN(v) {
		return Reading{}
	}
	return Reading{Value: v, Valid: true}
}

// NullReading is the explicit missing measurement.
func NullReading() Reading {
	return Reading{}
}
