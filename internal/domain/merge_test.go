package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanTime(hour, min int) time.Time {
	return time.Date(2023, 1, 1, hour, min, 0, 0, time.UTC)
}

// channelSeries builds a single-pixel series for channel at the given
// timestamps, valued 10*slot for recognizability.
func channelSeries(channel string, times ...time.Time) ChannelSeries {
	cs := ChannelSeries{Channel: channel, Columns: ColumnNames(0, channel, ReductionWindow)}
	for i, ts := range times {
		cs.Records = append(cs.Records, ChannelRecord{
			Timestamp: ts,
			Channel:   channel,
			Pixels:    []Reading{{Value: float64(10 * (i + 1)), Valid: true}},
		})
	}
	return cs
}

// groundSeries builds a glo_avg series at 10-minute cadence from readings,
// where a nil entry marks a null slot.
func groundSeries(start time.Time, readings ...*float64) GroundSeries {
	gs := GroundSeries{Variables: []string{"glo_avg"}, Interval: 10 * time.Minute}
	for i, r := range readings {
		sample := GroundSample{Timestamp: start.Add(time.Duration(i) * 10 * time.Minute), Values: []Reading{{}}}
		if r != nil {
			sample.Values[0] = Reading{Value: *r, Valid: true}
		}
		gs.Samples = append(gs.Samples, sample)
	}
	return gs
}

func ptr(v float64) *float64 { return &v }

func TestMergeSeries(t *testing.T) {
	t.Run("round trip with one ground gap", func(t *testing.T) {
		// Three scans at 10:00, 10:10, 10:20; the ground series is null at
		// 10:10. Exactly the 10:00 and 10:20 rows survive and the gap is
		// reported as one missing-ground drop.
		channels := []ChannelSeries{channelSeries("C01", scanTime(10, 0), scanTime(10, 10), scanTime(10, 20))}
		ground := groundSeries(scanTime(10, 0), ptr(480.0), nil, ptr(520.0))

		table, drops := MergeSeries(channels, ground)

		require.Len(t, table.Rows, 2)
		assert.Equal(t, scanTime(10, 0), table.Rows[0].Timestamp)
		assert.Equal(t, scanTime(10, 20), table.Rows[1].Timestamp)
		assert.Equal(t, []float64{10, 480}, table.Rows[0].Values)
		assert.Equal(t, []float64{30, 520}, table.Rows[1].Values)
		assert.Equal(t, DropCounts{MissingGround: 1}, drops)
	})

	t.Run("column order is channels sorted then ground declared", func(t *testing.T) {
		channels := []ChannelSeries{
			channelSeries("C13", scanTime(10, 0)),
			channelSeries("C01", scanTime(10, 0)),
		}
		ground := groundSeries(scanTime(10, 0), ptr(480.0))

		table, _ := MergeSeries(channels, ground)
		assert.Equal(t, []string{"radius=0_C01_11", "radius=0_C13_11", "glo_avg"}, table.Columns)
	})

	t.Run("independent of channel input order", func(t *testing.T) {
		a := channelSeries("C01", scanTime(10, 0), scanTime(10, 10))
		b := channelSeries("C02", scanTime(10, 0), scanTime(10, 10))
		c := channelSeries("C13", scanTime(10, 0), scanTime(10, 10))
		ground := groundSeries(scanTime(10, 0), ptr(480.0), ptr(500.0))

		first, firstDrops := MergeSeries([]ChannelSeries{a, b, c}, ground)
		second, secondDrops := MergeSeries([]ChannelSeries{c, a, b}, ground)

		assert.Empty(t, cmp.Diff(first, second))
		assert.Equal(t, firstDrops, secondDrops)
	})

	t.Run("idempotent", func(t *testing.T) {
		channels := []ChannelSeries{channelSeries("C01", scanTime(10, 0))}
		ground := groundSeries(scanTime(10, 0), ptr(480.0))

		first, _ := MergeSeries(channels, ground)
		second, _ := MergeSeries(channels, ground)
		assert.Empty(t, cmp.Diff(first, second))
	})

	t.Run("timestamp absent from one channel drops the row", func(t *testing.T) {
		channels := []ChannelSeries{
			channelSeries("C01", scanTime(10, 0), scanTime(10, 10)),
			channelSeries("C02", scanTime(10, 0)),
		}
		ground := groundSeries(scanTime(10, 0), ptr(480.0), ptr(500.0))

		table, drops := MergeSeries(channels, ground)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, DropCounts{MissingChannel: 1}, drops)
	})

	t.Run("null pixel drops the row as missing channel", func(t *testing.T) {
		cs := channelSeries("C01", scanTime(10, 0), scanTime(10, 10))
		cs.Records[1].Pixels[0] = NullReading()
		ground := groundSeries(scanTime(10, 0), ptr(480.0), ptr(500.0))

		table, drops := MergeSeries([]ChannelSeries{cs}, ground)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, scanTime(10, 0), table.Rows[0].Timestamp)
		assert.Equal(t, DropCounts{MissingChannel: 1}, drops)
	})

	t.Run("scan with no ground slot drops as missing ground", func(t *testing.T) {
		channels := []ChannelSeries{channelSeries("C01", scanTime(10, 0), scanTime(12, 0))}
		ground := groundSeries(scanTime(10, 0), ptr(480.0))

		table, drops := MergeSeries(channels, ground)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, DropCounts{MissingGround: 1}, drops)
	})

	t.Run("ground-only slots are never candidates", func(t *testing.T) {
		// The ground grid is denser than the scan cadence; its extra slots
		// must not inflate the drop counts.
		channels := []ChannelSeries{channelSeries("C01", scanTime(10, 0))}
		ground := groundSeries(scanTime(10, 0), ptr(480.0), ptr(490.0), ptr(500.0), ptr(510.0))

		table, drops := MergeSeries(channels, ground)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, DropCounts{}, drops)
	})

	t.Run("rows ascend regardless of record order", func(t *testing.T) {
		cs := ChannelSeries{Channel: "C01", Columns: ColumnNames(0, "C01", ReductionWindow)}
		for _, ts := range []time.Time{scanTime(10, 20), scanTime(10, 0), scanTime(10, 10)} {
			cs.Records = append(cs.Records, ChannelRecord{Timestamp: ts, Channel: "C01", Pixels: []Reading{{Value: 1, Valid: true}}})
		}
		ground := groundSeries(scanTime(10, 0), ptr(1.0), ptr(2.0), ptr(3.0))

		table, _ := MergeSeries([]ChannelSeries{cs}, ground)
		require.Len(t, table.Rows, 3)
		assert.True(t, table.Rows[0].Timestamp.Before(table.Rows[1].Timestamp))
		assert.True(t, table.Rows[1].Timestamp.Before(table.Rows[2].Timestamp))
	})

	t.Run("empty inputs produce an empty table", func(t *testing.T) {
		table, drops := MergeSeries(nil, GroundSeries{Variables: []string{"glo_avg"}})
		assert.Empty(t, table.Rows)
		assert.Equal(t, []string{"glo_avg"}, table.Columns)
		assert.Equal(t, DropCounts{}, drops)
	})
}

func TestDropCounts(t *testing.T) {
	a := DropCounts{OutOfBounds: 1, MissingChannel: 2, MissingGround: 3}
	b := DropCounts{OutOfBounds: 10}

	assert.Equal(t, 6, a.Total())
	assert.Equal(t, DropCounts{OutOfBounds: 11, MissingChannel: 2, MissingGround: 3}, a.Add(b))
}

func TestChannelSeriesSortRecords(t *testing.T) {
	cs := ChannelSeries{Channel: "C01"}
	times := []time.Time{scanTime(10, 20), scanTime(10, 0), scanTime(10, 10), scanTime(10, 0)}
	for i, ts := range times {
		cs.Records = append(cs.Records, ChannelRecord{Timestamp: ts, Pixels: []Reading{{Value: float64(i), Valid: true}}})
	}

	dropped := cs.SortRecords()

	assert.Equal(t, 1, dropped)
	require.Len(t, cs.Records, 3)
	assert.Equal(t, scanTime(10, 0), cs.Records[0].Timestamp)
	assert.Equal(t, scanTime(10, 10), cs.Records[1].Timestamp)
	assert.Equal(t, scanTime(10, 20), cs.Records[2].Timestamp)
	// Stable sort keeps the earlier-appended record for the duplicate slot.
	assert.Equal(t, 1.0, cs.Records[0].Pixels[0].Value)
}
