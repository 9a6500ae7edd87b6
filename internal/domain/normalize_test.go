package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minuteSpec(start, end time.Time) SeriesSpec {
	return SeriesSpec{Start: start, End: end, Interval: time.Minute, Variables: []string{"glo_avg"}}
}

func groundRecord(ts, glo string) RawRecord {
	return RawRecord{Timestamp: ts, Fields: map[string]string{"glo_avg": glo}}
}

func TestNormalizeSeries(t *testing.T) {
	start := time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 1, 10, 4, 0, 0, time.UTC)
	columns := []string{"timestamp", "glo_avg", "dir_avg"}

	t.Run("every slot exists exactly once", func(t *testing.T) {
		archive := RawArchive{
			Columns: columns,
			Records: []RawRecord{
				groundRecord("2023-01-01 10:00:00", "100.5"),
				groundRecord("2023-01-01 10:02:00", "102.5"),
			},
		}

		series, stats, err := NormalizeSeries(archive, minuteSpec(start, end))
		require.NoError(t, err)
		require.Len(t, series.Samples, 5)
		assert.Equal(t, 2, stats.Assigned)

		for i, sample := range series.Samples {
			assert.Equal(t, start.Add(time.Duration(i)*time.Minute), sample.Timestamp)
			require.Len(t, sample.Values, 1)
		}
		assert.Equal(t, Reading{Value: 100.5, Valid: true}, series.Samples[0].Values[0])
		assert.False(t, series.Samples[1].Values[0].Valid, "gap slot must be null, not missing")
		assert.Equal(t, Reading{Value: 102.5, Valid: true}, series.Samples[2].Values[0])
		assert.False(t, series.Samples[3].Values[0].Valid)
		assert.False(t, series.Samples[4].Values[0].Valid)
	})

	t.Run("missing declared column aborts naming it", func(t *testing.T) {
		archive := RawArchive{
			Columns: []string{"timestamp", "dir_avg"},
			Records: []RawRecord{groundRecord("2023-01-01 10:00:00", "100.5")},
		}

		_, _, err := NormalizeSeries(archive, minuteSpec(start, end))
		var schema *SchemaError
		require.ErrorAs(t, err, &schema)
		assert.Equal(t, "glo_avg", schema.Column)
	})

	t.Run("unparseable timestamp aborts naming the record", func(t *testing.T) {
		archive := RawArchive{
			Columns: columns,
			Records: []RawRecord{
				groundRecord("2023-01-01 10:00:00", "100.5"),
				groundRecord("not-a-time", "101.5"),
			},
		}

		_, _, err := NormalizeSeries(archive, minuteSpec(start, end))
		var record *RecordError
		require.ErrorAs(t, err, &record)
		assert.Equal(t, 1, record.Index)
		assert.Equal(t, "not-a-time", record.Value)
	})

	t.Run("malformed value becomes null with the row kept", func(t *testing.T) {
		archive := RawArchive{
			Columns: columns,
			Records: []RawRecord{groundRecord("2023-01-01 10:01:00", "N/A")},
		}

		series, stats, err := NormalizeSeries(archive, minuteSpec(start, end))
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Assigned)
		assert.False(t, series.Samples[1].Values[0].Valid)
	})

	t.Run("duplicate slots keep the first record", func(t *testing.T) {
		archive := RawArchive{
			Columns: columns,
			Records: []RawRecord{
				groundRecord("2023-01-01 10:00:00", "100.0"),
				groundRecord("2023-01-01 10:00:00", "999.0"),
			},
		}

		series, stats, err := NormalizeSeries(archive, minuteSpec(start, end))
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Duplicates)
		assert.Equal(t, 100.0, series.Samples[0].Values[0].Value)
	})

	t.Run("off-grid and out-of-range records are counted, not fatal", func(t *testing.T) {
		archive := RawArchive{
			Columns: columns,
			Records: []RawRecord{
				groundRecord("2023-01-01 10:00:30", "50.0"),
				groundRecord("2023-01-01 09:59:00", "51.0"),
				groundRecord("2023-01-01 10:05:00", "52.0"),
			},
		}

		series, stats, err := NormalizeSeries(archive, minuteSpec(start, end))
		require.NoError(t, err)
		assert.Equal(t, NormalizeStats{OffGrid: 1, OutOfRange: 2}, stats)
		for _, sample := range series.Samples {
			assert.False(t, sample.Values[0].Valid)
		}
	})

	t.Run("pure: identical input yields identical output", func(t *testing.T) {
		archive := RawArchive{
			Columns: columns,
			Records: []RawRecord{
				groundRecord("2023-01-01 10:00:00", "100.5"),
				groundRecord("2023-01-01 10:03:00", "bad"),
			},
		}

		first, firstStats, err := NormalizeSeries(archive, minuteSpec(start, end))
		require.NoError(t, err)
		second, secondStats, err := NormalizeSeries(archive, minuteSpec(start, end))
		require.NoError(t, err)

		assert.Empty(t, cmp.Diff(first, second))
		assert.Equal(t, firstStats, secondStats)
	})

	t.Run("spec validation", func(t *testing.T) {
		archive := RawArchive{Columns: columns}

		_, _, err := NormalizeSeries(archive, SeriesSpec{Start: start, End: end, Variables: []string{"glo_avg"}})
		assert.ErrorContains(t, err, "interval must be positive")

		_, _, err = NormalizeSeries(archive, SeriesSpec{Start: end, End: start, Interval: time.Minute, Variables: []string{"glo_avg"}})
		assert.ErrorContains(t, err, "before it starts")

		_, _, err = NormalizeSeries(archive, SeriesSpec{Start: start, End: end, Interval: time.Minute})
		assert.ErrorContains(t, err, "no ground variables")
	})
}

func TestParseGroundTime(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
		bad   bool
	}{
		{"archive layout", "2023-06-15 12:30:00", time.Date(2023, 6, 15, 12, 30, 0, 0, time.UTC), false},
		{"rfc3339", "2023-06-15T12:30:00Z", time.Date(2023, 6, 15, 12, 30, 0, 0, time.UTC), false},
		{"no seconds", "2023-06-15 12:30", time.Date(2023, 6, 15, 12, 30, 0, 0, time.UTC), false},
		{"surrounding spaces", "  2023-06-15 12:30:00  ", time.Date(2023, 6, 15, 12, 30, 0, 0, time.UTC), false},
		{"garbage", "15/06/2023", time.Time{}, true},
		{"empty", "", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGroundTime(tt.value)
			if tt.bad {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s", got)
		})
	}
}
