package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawRecord is one un-interpreted row of a ground archive: the timestamp
// still a string, every field still a string. Interpretation, including
// the decision of what is structural versus merely malformed, belongs to
// NormalizeSeries, not the archive decoder.
type RawRecord struct {
	Timestamp string
	Fields    map[string]string
}

// RawArchive is a decoded ground archive: the column set the source
// declared plus its raw records, in file order.
type RawArchive struct {
	Columns []string
	Records []RawRecord
}

// SeriesSpec fixes the shape of a normalized ground series: the closed
// timestamp range, the station's sampling interval, and the variables the
// run declares it needs.
type SeriesSpec struct {
	Start     time.Time
	End       time.Time
	Interval  time.Duration
	Variables []string
}

// NormalizeStats counts the raw records that did not land in a slot. These
// are data-quality observations, not failures; callers log and audit them.
type NormalizeStats struct {
	Assigned   int // records that filled a slot
	Duplicates int // later records for an already-filled slot (first wins)
	OffGrid    int // timestamps not on the sampling grid
	OutOfRange int // timestamps outside [Start, End]
}

// SchemaError reports a declared variable column the archive no longer
// provides. This is a source-format change: normalization must stop rather
// than silently produce a series with a hole where a variable used to be.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("declared column %q missing from archive", e.Column)
}

// RecordError reports a raw record whose timestamp cannot be interpreted.
// One unreadable timestamp means the format assumption is broken for the
// whole archive, so this too aborts normalization.
type RecordError struct {
	Index int
	Value string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: unparseable timestamp %q", e.Index, e.Value)
}

// groundTimeLayouts are the timestamp shapes SONDA archives have used.
// Naive timestamps are interpreted as UTC, matching the network's own
// convention.
var groundTimeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
}

// ParseGroundTime interprets a raw archive timestamp as UTC.
func ParseGroundTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range groundTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

// NormalizeSeries builds the complete regular series for spec from an
// archive's raw records. Every slot of the grid exists exactly once in the
// output: slots with no record, and individual malformed values, become
// nulls; structural problems (missing declared column, unreadable record
// timestamp) abort with a SchemaError or RecordError. Pure: same archive
// and spec always yield the same series.
func NormalizeSeries(archive RawArchive, spec SeriesSpec) (GroundSeries, NormalizeStats, error) {
	if spec.Interval <= 0 {
		return GroundSeries{}, NormalizeStats{}, fmt.Errorf("sampling interval must be positive, got %s", spec.Interval)
	}
	if spec.End.Before(spec.Start) {
		return GroundSeries{}, NormalizeStats{}, fmt.Errorf("series range ends (%s) before it starts (%s)", spec.End, spec.Start)
	}
	if len(spec.Variables) == 0 {
		return GroundSeries{}, NormalizeStats{}, fmt.Errorf("no ground variables declared")
	}

	declared := make(map[string]bool, len(archive.Columns))
	for _, col := range archive.Columns {
		declared[col] = true
	}
	for _, v := range spec.Variables {
		if !declared[v] {
			return GroundSeries{}, NormalizeStats{}, &SchemaError{Column: v}
		}
	}

	start := spec.Start.UTC()
	slots := int(spec.End.Sub(spec.Start)/spec.Interval) + 1
	series := GroundSeries{
		Variables: append([]string(nil), spec.Variables...),
		Interval:  spec.Interval,
		Samples:   make([]GroundSample, slots),
	}
	for i := range series.Samples {
		series.Samples[i] = GroundSample{
			Timestamp: start.Add(time.Duration(i) * spec.Interval),
			Values:    make([]Reading, len(spec.Variables)),
		}
	}

	var stats NormalizeStats
	filled := make([]bool, slots)
	for i, rec := range archive.Records {
		ts, err := ParseGroundTime(rec.Timestamp)
		if err != nil {
			return GroundSeries{}, NormalizeStats{}, &RecordError{Index: i, Value: rec.Timestamp}
		}
		offset := ts.Sub(start)
		if offset < 0 || ts.After(spec.End) {
			stats.OutOfRange++
			continue
		}
		if offset%spec.Interval != 0 {
			stats.OffGrid++
			continue
		}
		slot := int(offset / spec.Interval)
		if filled[slot] {
			stats.Duplicates++
			continue
		}
		filled[slot] = true
		stats.Assigned++
		for vi, name := range spec.Variables {
			series.Samples[slot].Values[vi] = parseReadingField(rec.Fields[name])
		}
	}

	return series, stats, nil
}

// parseReadingField coerces a raw field to a Reading: absent or non-numeric
// values are null, the row is otherwise kept. This is the principled line
// between a schema change (fatal above) and a bad sensor value (null here).
func parseReadingField(raw string) Reading {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NullReading()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return NullReading()
	}
	return Reading{Value: v, Valid: true}
}
