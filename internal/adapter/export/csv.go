package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/JvCastelo/masters-project/internal/domain"
)

// Timestamps are serialized as RFC 3339 UTC. Null readings are empty cells;
// everything else round-trips through strconv at full float64 precision.

// WriteChannelCSV writes one satellite channel series: a timestamp column
// followed by the series' pixel columns, one row per scan.
func WriteChannelCSV(path string, series domain.ChannelSeries) error {
	rows := make([][]string, 0, len(series.Records)+1)
	rows = append(rows, append([]string{"timestamp"}, series.Columns...))

	for _, rec := range series.Records {
		row := make([]string, 0, len(series.Columns)+1)
		row = append(row, rec.Timestamp.UTC().Format(time.RFC3339))
		for _, px := range rec.Pixels {
			row = append(row, formatReading(px))
		}
		rows = append(rows, row)
	}
	return writeCSV(path, rows)
}

// ReadChannelCSV rebuilds a channel series from its CSV. The channel id is
// not stored in the file, so the caller supplies it.
func ReadChannelCSV(path, channel string) (domain.ChannelSeries, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return domain.ChannelSeries{}, err
	}
	if len(header) < 2 || header[0] != "timestamp" {
		return domain.ChannelSeries{}, fmt.Errorf("%s: not a channel series file", path)
	}

	series := domain.ChannelSeries{
		Channel: channel,
		Columns: append([]string(nil), header[1:]...),
		Records: make([]domain.ChannelRecord, 0, len(rows)),
	}
	for i, row := range rows {
		ts, values, err := parseRow(row, len(series.Columns))
		if err != nil {
			return domain.ChannelSeries{}, fmt.Errorf("%s: row %d: %w", path, i+1, err)
		}
		series.Records = append(series.Records, domain.ChannelRecord{
			Timestamp: ts,
			Channel:   channel,
			Pixels:    values,
		})
	}
	return series, nil
}

// WriteGroundCSV writes the normalized ground series: a timestamp column
// followed by the declared variables, one row per slot, nulls included.
func WriteGroundCSV(path string, series domain.GroundSeries) error {
	rows := make([][]string, 0, len(series.Samples)+1)
	rows = append(rows, append([]string{"timestamp"}, series.Variables...))

	for _, s := range series.Samples {
		row := make([]string, 0, len(series.Variables)+1)
		row = append(row, s.Timestamp.UTC().Format(time.RFC3339))
		for _, r := range s.Values {
			row = append(row, formatReading(r))
		}
		rows = append(rows, row)
	}
	return writeCSV(path, rows)
}

// ReadGroundCSV rebuilds a ground series from its CSV. The interval is
// inferred from the first two slots; a single-slot series leaves it zero.
func ReadGroundCSV(path string) (domain.GroundSeries, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return domain.GroundSeries{}, err
	}
	if len(header) < 2 || header[0] != "timestamp" {
		return domain.GroundSeries{}, fmt.Errorf("%s: not a ground series file", path)
	}

	series := domain.GroundSeries{
		Variables: append([]string(nil), header[1:]...),
		Samples:   make([]domain.GroundSample, 0, len(rows)),
	}
	for i, row := range rows {
		ts, values, err := parseRow(row, len(series.Variables))
		if err != nil {
			return domain.GroundSeries{}, fmt.Errorf("%s: row %d: %w", path, i+1, err)
		}
		series.Samples = append(series.Samples, domain.GroundSample{Timestamp: ts, Values: values})
	}
	if len(series.Samples) >= 2 {
		series.Interval = series.Samples[1].Timestamp.Sub(series.Samples[0].Timestamp)
	}
	return series, nil
}

// WriteFeatureCSV writes the merged feature table. Every value is concrete
// after the completeness filter, so no cell is ever empty.
func WriteFeatureCSV(path string, table domain.FeatureTable) error {
	rows := make([][]string, 0, len(table.Rows)+1)
	rows = append(rows, append([]string{"timestamp"}, table.Columns...))

	for _, fr := range table.Rows {
		row := make([]string, 0, len(table.Columns)+1)
		row = append(row, fr.Timestamp.UTC().Format(time.RFC3339))
		for _, v := range fr.Values {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		rows = append(rows, row)
	}
	return writeCSV(path, rows)
}

func formatReading(r domain.Reading) string {
	if !r.Valid {
		return ""
	}
	return strconv.FormatFloat(r.Value, 'g', -1, 64)
}

// parseRow splits a data row into its timestamp and readings. An empty cell
// is a null; a non-empty cell that does not parse is corruption, not data,
// and fails the read.
func parseRow(row []string, width int) (time.Time, []domain.Reading, error) {
	if len(row) != width+1 {
		return time.Time{}, nil, fmt.Errorf("expected %d cells, got %d", width+1, len(row))
	}
	ts, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("bad timestamp %q: %w", row[0], err)
	}

	values := make([]domain.Reading, width)
	for i, cell := range row[1:] {
		if cell == "" {
			values[i] = domain.NullReading()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("bad value %q: %w", cell, err)
		}
		values[i] = domain.Reading{Value: v, Valid: true}
	}
	return ts.UTC(), values, nil
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	err = w.WriteAll(rows)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: empty file", path)
	}
	return records[0], records[1:], nil
}
