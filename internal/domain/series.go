package domain

import (
	"sort"
	"time"
)

// ChannelRecord is one scan's contribution to a channel series: the window
// pixels (or the single reduced value) observed at one timestamp.
type ChannelRecord struct {
	Timestamp time.Time
	Channel   string
	Pixels    []Reading
}

// ChannelSeries is the ordered per-channel sequence collected across a run.
// Records are ascending by timestamp and timestamps are unique; Columns
// names the value columns in pixel order.
type ChannelSeries struct {
	Channel string
	Columns []string
	Records []ChannelRecord
}

// SortRecords orders the series ascending by timestamp, keeping the first
// occurrence of any duplicate slot, and returns the number of duplicates
// removed. Worker pools deliver records out of order; concurrency must not
// leak into series ordering.
func (s *ChannelSeries) SortRecords() int {
	sort.SliceStable(s.Records, func(i, j int) bool {
		return s.Records[i].Timestamp.Before(s.Records[j].Timestamp)
	})
	deduped := s.Records[:0]
	dropped := 0
	for _, rec := range s.Records {
		if n := len(deduped); n > 0 && deduped[n-1].Timestamp.Equal(rec.Timestamp) {
			dropped++
			continue
		}
		deduped = append(deduped, rec)
	}
	s.Records = deduped
	return dropped
}

// GroundSample is one slot of the regular ground series: one Reading per
// declared variable, in GroundSeries.Variables order. A slot with no source
// record carries all-null readings, never goes missing.
type GroundSample struct {
	Timestamp time.Time
	Values    []Reading
}

// GroundSeries is a fully regular time series over a station's sampling
// grid: Samples[i].Timestamp == Start + i*Interval for the whole range.
type GroundSeries struct {
	Variables []string
	Interval  time.Duration
	Samples   []GroundSample
}

// FeatureRow is one fully observed, timestamp-aligned combination of
// channel and ground values. Constructed once by the merger, never mutated.
type FeatureRow struct {
	Timestamp time.Time
	Values    []float64
}

// FeatureTable is the merger's output: rows ascending by timestamp, one
// value per column per row, no nulls anywhere by construction.
type FeatureTable struct {
	Columns []string
	Rows    []FeatureRow
}

// DropCounts is the data-quality side channel: how many timestamps each
// stage refused, by reason. Extraction contributes OutOfBounds; the merger
// contributes the other two. Counts reduce coverage, they are never errors.
type DropCounts struct {
	OutOfBounds    int
	MissingChannel int
	MissingGround  int
}

// Total returns the number of dropped timestamps across all reasons.
func (d DropCounts) Total() int {
	return d.OutOfBounds + d.MissingChannel + d.MissingGround
}

// Add accumulates counts from another stage of the same run.
func (d DropCounts) Add(other DropCounts) DropCounts {
	return DropCounts{
		OutOfBounds:    d.OutOfBounds + other.OutOfBounds,
		MissingChannel: d.MissingChannel + other.MissingChannel,
		MissingGround:  d.MissingGround + other.MissingGround,
	}
}
