// Package netcdf decodes ABI L1b radiance files into domain scans.
//
// Files are opened from local paths after download. Steady-state reads pull
// only the row slab covering the pinned pixel window; the full grid decode
// exists for first-file pinning and ad hoc inspection.
package netcdf

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/JvCastelo/masters-project/internal/domain"
)

// Attribute and variable names fixed by the ABI file format.
const (
	attrScale     = "scale_factor"
	attrOffset    = "add_offset"
	attrFill      = "_FillValue"
	projectionVar = "goes_imager_projection"
)

// ScanInfo describes a scan file without decoding its radiance grid. It is
// what index pinning needs: the fixed-grid geometry and the full dimensions.
type ScanInfo struct {
	Channel   string
	Timestamp time.Time
	Geometry  domain.GridGeometry
	Rows      int
	Cols      int
}

// Decoder reads ABI scan files for one radiance variable.
type Decoder struct {
	variable string
	logger   *slog.Logger
}

// NewDecoder creates a decoder for the named grid variable (Rad for L1b).
func NewDecoder(variable string, logger *slog.Logger) *Decoder {
	return &Decoder{variable: variable, logger: logger}
}

// ReadInfo decodes scan identity, geometry, and dimensions only.
func (d *Decoder) ReadInfo(path string) (ScanInfo, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return ScanInfo{}, fmt.Errorf("open scan %s: %w", path, err)
	}
	defer g.Close()

	return d.readInfo(g, path)
}

// ReadScan decodes the whole radiance grid.
func (d *Decoder) ReadScan(path string) (*domain.Scan, error) {
	return d.read(path, 0, -1)
}

// ReadSlab decodes only grid rows rowLo through rowHi inclusive. The
// returned scan keeps the full grid dimensions so window bounds checks see
// the real grid, with Grid.RowOffset marking where the slab starts.
func (d *Decoder) ReadSlab(path string, rowLo, rowHi int) (*domain.Scan, error) {
	if rowLo < 0 || rowHi < rowLo {
		return nil, fmt.Errorf("invalid slab rows [%d, %d]", rowLo, rowHi)
	}
	return d.read(path, rowLo, rowHi)
}

// read decodes rows [rowLo, rowHi]; rowHi < 0 means the whole grid.
func (d *Decoder) read(path string, rowLo, rowHi int) (*domain.Scan, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scan %s: %w", path, err)
	}
	defer g.Close()

	info, err := d.readInfo(g, path)
	if err != nil {
		return nil, err
	}

	vg, err := g.GetVarGetter(d.variable)
	if err != nil {
		return nil, fmt.Errorf("scan %s: variable %s: %w", path, d.variable, err)
	}

	rows := int(vg.Len())
	if rowHi < 0 {
		rowHi = rows - 1
	}
	if rowHi >= rows {
		return nil, fmt.Errorf("scan %s has %d rows, slab wants [%d, %d]", path, rows, rowLo, rowHi)
	}

	attrs := vg.Attributes()
	scale := attrFloatDefault(attrs, attrScale, 1)
	offset := attrFloatDefault(attrs, attrOffset, 0)
	fill, hasFill := attrFloatOptional(attrs, attrFill)

	raw, err := vg.GetSlice(int64(rowLo), int64(rowHi+1))
	if err != nil {
		return nil, fmt.Errorf("scan %s: read rows [%d, %d]: %w", path, rowLo, rowHi, err)
	}
	data, err := scaleRows(raw, scale, offset, fill, hasFill)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	d.logger.Debug("decoded scan",
		"file", filepath.Base(path),
		"channel", info.Channel,
		"timestamp", info.Timestamp,
		"rows", len(data),
	)

	return &domain.Scan{
		Channel:   info.Channel,
		Timestamp: info.Timestamp,
		Geometry:  info.Geometry,
		Grid: domain.Grid{
			Rows:      info.Rows,
			Cols:      info.Cols,
			RowOffset: rowLo,
			Data:      data,
		},
	}, nil
}

func (d *Decoder) readInfo(g api.Group, path string) (ScanInfo, error) {
	channel, ts, err := readIdentity(g)
	if err != nil {
		return ScanInfo{}, fmt.Errorf("scan %s: %w", path, err)
	}
	geom, err := readGeometry(g)
	if err != nil {
		return ScanInfo{}, fmt.Errorf("scan %s: %w", path, err)
	}
	return ScanInfo{
		Channel:   channel,
		Timestamp: ts,
		Geometry:  geom,
		Rows:      len(geom.YCoords),
		Cols:      len(geom.XCoords),
	}, nil
}

// readIdentity parses channel and slot timestamp from the global attributes.
// A missing channel token degrades to UNK; a missing or malformed coverage
// time makes the scan unusable.
func readIdentity(g api.Group) (string, time.Time, error) {
	attrs := g.Attributes()

	channel := unknownChannel
	if raw, ok := attrs.Get("dataset_name"); ok {
		if name, ok := toString(raw); ok {
			channel = channelFromDatasetName(name)
		}
	}

	raw, ok := attrs.Get("time_coverage_start")
	if !ok {
		return "", time.Time{}, fmt.Errorf("missing time_coverage_start attribute")
	}
	s, ok := toString(raw)
	if !ok {
		return "", time.Time{}, fmt.Errorf("time_coverage_start has unsupported type %T", raw)
	}
	ts, err := parseCoverageTime(s)
	if err != nil {
		return "", time.Time{}, err
	}
	return channel, ts, nil
}

// readGeometry assembles the fixed-grid geometry from the projection
// variable's attributes and the x/y scan-angle vectors.
func readGeometry(g api.Group) (domain.GridGeometry, error) {
	proj, err := g.GetVariable(projectionVar)
	if err != nil {
		return domain.GridGeometry{}, fmt.Errorf("variable %s: %w", projectionVar, err)
	}

	geom := domain.GridGeometry{}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"semi_major_axis", &geom.SemiMajorAxis},
		{"semi_minor_axis", &geom.SemiMinorAxis},
		{"perspective_point_height", &geom.PerspectiveHeight},
		{"longitude_of_projection_origin", &geom.LonOrigin},
	} {
		v, err := attrFloat(proj.Attributes, f.name)
		if err != nil {
			return domain.GridGeometry{}, fmt.Errorf("%s: %w", projectionVar, err)
		}
		*f.dst = v
	}

	if geom.XCoords, err = readCoords(g, "x"); err != nil {
		return domain.GridGeometry{}, err
	}
	if geom.YCoords, err = readCoords(g, "y"); err != nil {
		return domain.GridGeometry{}, err
	}
	return geom, nil
}

// readCoords loads a packed scan-angle vector and applies its scale/offset.
func readCoords(g api.Group, name string) ([]float64, error) {
	v, err := g.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	scale := attrFloatDefault(v.Attributes, attrScale, 1)
	offset := attrFloatDefault(v.Attributes, attrOffset, 0)
	coords, err := scaleVector(v.Values, scale, offset)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	return coords, nil
}

func attrFloat(attrs api.AttributeMap, key string) (float64, error) {
	raw, ok := attrs.Get(key)
	if !ok {
		return 0, fmt.Errorf("missing attribute %s", key)
	}
	v, ok := toFloat64(raw)
	if !ok {
		return 0, fmt.Errorf("attribute %s has unsupported type %T", key, raw)
	}
	return v, nil
}

func attrFloatDefault(attrs api.AttributeMap, key string, def float64) float64 {
	if v, err := attrFloat(attrs, key); err == nil {
		return v
	}
	return def
}

func attrFloatOptional(attrs api.AttributeMap, key string) (float64, bool) {
	v, err := attrFloat(attrs, key)
	return v, err == nil
}
