package netcdf

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// unknownChannel is reported when dataset_name does not carry a channel token.
const unknownChannel = "UNK"

// scanCadence is the fixed full-disk cadence; coverage timestamps are rounded
// to it so scans from different channels line up on shared slots.
const scanCadence = 10 * time.Minute

// channelFromDatasetName pulls the ABI channel id out of a dataset_name
// attribute such as
// OR_ABI-L1b-RadF-M6C13_G16_s20240011200203_e20240011209511_c20240011209550.nc.
// The second underscore field ends in the mode+channel token (M6C13); the
// last three characters are the channel id.
func channelFromDatasetName(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return unknownChannel
	}
	segments := strings.Split(parts[1], "-")
	token := segments[len(segments)-1]
	if len(token) < 3 {
		return unknownChannel
	}
	return token[len(token)-3:]
}

// parseCoverageTime parses a time_coverage_start attribute and rounds it to
// the scan cadence in UTC.
func parseCoverageTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable time_coverage_start %q: %w", s, err)
	}
	return t.UTC().Round(scanCadence), nil
}

// toFloat64 coerces an attribute value to float64. NetCDF readers surface
// attributes as scalars or single-element slices depending on the file
// flavor, so both shapes are accepted.
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case int16:
		return float64(val), true
	case int8:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int:
		return float64(val), true
	case []float64:
		if len(val) == 1 {
			return val[0], true
		}
	case []float32:
		if len(val) == 1 {
			return float64(val[0]), true
		}
	case []int64:
		if len(val) == 1 {
			return float64(val[0]), true
		}
	case []int32:
		if len(val) == 1 {
			return float64(val[0]), true
		}
	case []int16:
		if len(val) == 1 {
			return float64(val[0]), true
		}
	case []int8:
		if len(val) == 1 {
			return float64(val[0]), true
		}
	}
	return 0, false
}

// toString coerces an attribute value to a string, accepting the same
// scalar-or-single-element-slice shapes as toFloat64.
func toString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []string:
		if len(val) == 1 {
			return val[0], true
		}
	}
	return "", false
}

// scaleVector applies scale/offset packing to a coordinate vector.
func scaleVector(raw interface{}, scale, offset float64) ([]float64, error) {
	switch vec := raw.(type) {
	case []int16:
		out := make([]float64, len(vec))
		for i, v := range vec {
			out[i] = float64(v)*scale + offset
		}
		return out, nil
	case []int32:
		out := make([]float64, len(vec))
		for i, v := range vec {
			out[i] = float64(v)*scale + offset
		}
		return out, nil
	case []float32:
		out := make([]float64, len(vec))
		for i, v := range vec {
			out[i] = float64(v)*scale + offset
		}
		return out, nil
	case []float64:
		out := make([]float64, len(vec))
		for i, v := range vec {
			out[i] = v*scale + offset
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported coordinate type %T", raw)
	}
}

// scaleRows applies scale/offset packing to a 2-D data slab and turns fill
// values into NaN so downstream code sees nulls uniformly.
func scaleRows(raw interface{}, scale, offset, fill float64, hasFill bool) ([][]float64, error) {
	switch rows := raw.(type) {
	case [][]int16:
		out := make([][]float64, len(rows))
		for r, row := range rows {
			out[r] = make([]float64, len(row))
			for c, v := range row {
				out[r][c] = unpack(float64(v), scale, offset, fill, hasFill)
			}
		}
		return out, nil
	case [][]int32:
		out := make([][]float64, len(rows))
		for r, row := range rows {
			out[r] = make([]float64, len(row))
			for c, v := range row {
				out[r][c] = unpack(float64(v), scale, offset, fill, hasFill)
			}
		}
		return out, nil
	case [][]float32:
		out := make([][]float64, len(rows))
		for r, row := range rows {
			out[r] = make([]float64, len(row))
			for c, v := range row {
				out[r][c] = unpack(float64(v), scale, offset, fill, hasFill)
			}
		}
		return out, nil
	case [][]float64:
		out := make([][]float64, len(rows))
		for r, row := range rows {
			out[r] = make([]float64, len(row))
			for c, v := range row {
				out[r][c] = unpack(v, scale, offset, fill, hasFill)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported grid type %T", raw)
	}
}

// unpack compares against the fill value before scaling; the fill marker is
// stored in packed units.
func unpack(packed, scale, offset, fill float64, hasFill bool) float64 {
	if hasFill && packed == fill {
		return math.NaN()
	}
	if math.IsNaN(packed) {
		return math.NaN()
	}
	return packed*scale + offset
}
