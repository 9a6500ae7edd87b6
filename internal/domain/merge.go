package domain

import (
	"sort"
	"time"
)

// MergeSeries joins the per-channel satellite series with the ground series
// on exact timestamp equality and applies the completeness filter: a
// timestamp becomes a FeatureRow only when every channel contributes a
// fully valid record and every declared ground variable is observed there.
//
// The candidate set is the union of timestamps across the channel series:
// the satellite cadence is the coarser grid, so ground slots with no scan
// are not drops, they are simply never candidates. A candidate missing any
// channel (or carrying a null pixel) counts as MissingChannel; one whose
// ground slot is absent or partly null counts as MissingGround.
//
// Output is deterministic and independent of the order channels are passed
// in: columns are the channels sorted by name followed by the ground
// variables in declared order, rows ascend by timestamp. MergeSeries is
// total. An empty table is a result, not an error; whether it is fatal is
// the caller's policy.
func MergeSeries(channels []ChannelSeries, ground GroundSeries) (FeatureTable, DropCounts) {
	ordered := make([]ChannelSeries, len(channels))
	copy(ordered, channels)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Channel < ordered[j].Channel })

	table := FeatureTable{}
	for _, cs := range ordered {
		table.Columns = append(table.Columns, cs.Columns...)
	}
	table.Columns = append(table.Columns, ground.Variables...)

	byChannel := make([]map[int64]ChannelRecord, len(ordered))
	candidates := make(map[int64]time.Time)
	for i, cs := range ordered {
		byChannel[i] = make(map[int64]ChannelRecord, len(cs.Records))
		for _, rec := range cs.Records {
			key := rec.Timestamp.UnixNano()
			byChannel[i][key] = rec
			candidates[key] = rec.Timestamp
		}
	}

	groundAt := make(map[int64]GroundSample, len(ground.Samples))
	for _, s := range ground.Samples {
		groundAt[s.Timestamp.UnixNano()] = s
	}

	var drops DropCounts
	width := len(table.Columns)
	for key, ts := range candidates {
		row := FeatureRow{Timestamp: ts, Values: make([]float64, 0, width)}

		complete := true
		for i, cs := range ordered {
			rec, ok := byChannel[i][key]
			if !ok || len(rec.Pixels) != len(cs.Columns) {
				complete = false
				break
			}
			for _, px := range rec.Pixels {
				if !px.Valid {
					complete = false
					break
				}
				row.Values = append(row.Values, px.Value)
			}
			if !complete {
				break
			}
		}
		if !complete {
			drops.MissingChannel++
			continue
		}

		sample, ok := groundAt[key]
		if !ok || len(sample.Values) != len(ground.Variables) {
			drops.MissingGround++
			continue
		}
		for _, r := range sample.Values {
			if !r.Valid {
				complete = false
				break
			}
			row.Values = append(row.Values, r.Value)
		}
		if !complete {
			drops.MissingGround++
			continue
		}

		table.Rows = append(table.Rows, row)
	}

	sort.Slice(table.Rows, func(i, j int) bool {
		return table.Rows[i].Timestamp.Before(table.Rows[j].Timestamp)
	})
	return table, drops
}
