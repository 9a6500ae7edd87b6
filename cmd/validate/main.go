// Command validate performs integrity checks over the tables a finished
// pipeline run leaves on disk: per-channel satellite series, the normalized
// ground series, and the merged feature table. It verifies column layouts,
// timestamp grids, cross-table alignment, and that the audit trail agrees
// with the files.
//
// Usage:
//
//	go run ./cmd/validate -config configs/pipeline.yaml
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/JvCastelo/masters-project/internal/adapter/export"
	"github.com/JvCastelo/masters-project/internal/audit"
	"github.com/JvCastelo/masters-project/internal/config"
	"github.com/JvCastelo/masters-project/internal/domain"
	"github.com/JvCastelo/masters-project/internal/observability"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	configPath := flag.String("config", "", "pipeline config file (default: CONFIG_PATH or configs/pipeline.yaml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	if code := run(cfg); code != 0 {
		os.Exit(code)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func run(cfg *config.Config) int {
	fmt.Println("=== Pipeline Output Validation ===")
	fmt.Printf("Station %s, %s to %s\n",
		cfg.Station, cfg.StartDate.Format(config.DateLayout), cfg.EndDate.Format(config.DateLayout))
	fmt.Println()

	art := loadArtifacts(cfg)

	phases := []*phase{
		validateChannelSeries(cfg, art),
		validateGroundSeries(cfg, art),
		validateFeatureTable(cfg, art),
		validateAuditTrail(cfg, art),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d scans across %d channel series, %d ground slots, %d feature rows\n",
		art.totalScans(), len(art.channels), art.groundSlots(), art.featureRows())

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// featureRecord is one parsed feature table row.
type featureRecord struct {
	lineNum int
	ts      time.Time
	values  []float64
}

// featureFile is the parsed feature table CSV.
type featureFile struct {
	columns []string
	rows    []featureRecord
}

// artifacts holds everything a run left on disk, loaded best-effort so each
// phase can report its own gaps.
type artifacts struct {
	channels    map[string]domain.ChannelSeries
	channelErrs map[string]error
	ground      *domain.GroundSeries
	groundErr   error
	features    *featureFile
	featuresErr error
	featurePath string
}

func loadArtifacts(cfg *config.Config) *artifacts {
	art := &artifacts{
		channels:    make(map[string]domain.ChannelSeries),
		channelErrs: make(map[string]error),
	}

	for _, ch := range cfg.Channels {
		path := filepath.Join(cfg.RawGoesDir(),
			export.ChannelCSVName(ch, cfg.StartDate, cfg.EndDate, cfg.Station.Name))
		series, err := export.ReadChannelCSV(path, ch)
		if err != nil {
			art.channelErrs[ch] = err
			continue
		}
		art.channels[ch] = series
	}

	groundPath := filepath.Join(cfg.RawSondaDir(),
		export.GroundCSVName(cfg.SondaDataType, cfg.StartDate, cfg.EndDate, cfg.Station.Name))
	ground, err := export.ReadGroundCSV(groundPath)
	if err != nil {
		art.groundErr = err
	} else {
		art.ground = &ground
	}

	art.featurePath = filepath.Join(cfg.ProcessedDir(),
		export.FeatureBaseName(cfg.StartDate, cfg.EndDate, cfg.Station.Name)) + ".csv"
	features, err := loadFeatureCSV(art.featurePath)
	if err != nil {
		art.featuresErr = err
	} else {
		art.features = features
	}

	return art
}

// loadFeatureCSV parses the feature table strictly: a feature table never
// holds an empty cell, so any null or malformed value is corruption.
func loadFeatureCSV(path string) (*featureFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}
	header := all[0]
	if len(header) < 2 || header[0] != "timestamp" {
		return nil, fmt.Errorf("%s: not a feature table", path)
	}

	ff := &featureFile{columns: header[1:]}
	for i, row := range all[1:] {
		lineNum := i + 2
		if len(row) != len(header) {
			return nil, fmt.Errorf("%s line %d: expected %d cells, got %d", path, lineNum, len(header), len(row))
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad timestamp %q", path, lineNum, row[0])
		}
		values := make([]float64, 0, len(row)-1)
		for j, cell := range row[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: column %q holds %q, not a number", path, lineNum, header[j+1], cell)
			}
			values = append(values, v)
		}
		ff.rows = append(ff.rows, featureRecord{lineNum: lineNum, ts: ts.UTC(), values: values})
	}
	return ff, nil
}

func (a *artifacts) totalScans() int {
	n := 0
	for _, s := range a.channels {
		n += len(s.Records)
	}
	return n
}

func (a *artifacts) groundSlots() int {
	if a.ground == nil {
		return 0
	}
	return len(a.ground.Samples)
}

func (a *artifacts) featureRows() int {
	if a.features == nil {
		return 0
	}
	return len(a.features.rows)
}

// ── Phase 1: Channel Series ──
// Validates each per-channel CSV: expected window columns, strictly
// ascending unique timestamps, every timestamp inside the configured range.

func validateChannelSeries(cfg *config.Config, art *artifacts) *phase {
	p := &phase{name: "Phase 1: Channel Series (window layout)"}

	for _, ch := range cfg.Channels {
		if err := art.channelErrs[ch]; err != nil {
			p.errorf("%s: %v", ch, err)
			continue
		}
		series := art.channels[ch]

		want := domain.ColumnNames(cfg.PixelRadius, ch, cfg.Reduction)
		if !slices.Equal(series.Columns, want) {
			p.errorf("%s: columns %v, want %v", ch, series.Columns, want)
		}

		for i, rec := range series.Records {
			if rec.Timestamp.Before(cfg.StartDate) || rec.Timestamp.After(cfg.RangeEnd()) {
				p.errorf("%s row %d: timestamp %s outside the configured range",
					ch, i+1, rec.Timestamp.Format(time.RFC3339))
			}
			if i > 0 && !series.Records[i-1].Timestamp.Before(rec.Timestamp) {
				p.errorf("%s row %d: timestamps not strictly ascending (%s then %s)",
					ch, i+1,
					series.Records[i-1].Timestamp.Format(time.RFC3339),
					rec.Timestamp.Format(time.RFC3339))
			}
		}
	}
	return p
}

// ── Phase 2: Ground Series ──
// Validates the normalized series is fully regular: declared variables,
// configured interval, one slot per grid point from start to range end.

func validateGroundSeries(cfg *config.Config, art *artifacts) *phase {
	p := &phase{name: "Phase 2: Ground Series (sampling grid)"}

	if art.groundErr != nil {
		p.errorf("%v", art.groundErr)
		return p
	}
	g := art.ground

	if !slices.Equal(g.Variables, cfg.GroundVariables) {
		p.errorf("variables %v, want %v", g.Variables, cfg.GroundVariables)
	}

	wantSlots := int(cfg.RangeEnd().Sub(cfg.StartDate)/cfg.GroundInterval) + 1
	if len(g.Samples) != wantSlots {
		p.errorf("%d slots, want %d for %s at %s intervals",
			len(g.Samples), wantSlots,
			cfg.StartDate.Format(config.DateLayout), cfg.GroundInterval)
	}

	offGrid, firstOff := 0, -1
	for i, s := range g.Samples {
		want := cfg.StartDate.Add(time.Duration(i) * cfg.GroundInterval)
		if !s.Timestamp.Equal(want) {
			offGrid++
			if firstOff < 0 {
				firstOff = i
			}
		}
	}
	if offGrid > 0 {
		p.errorf("%d of %d slots off the sampling grid (first at slot %d: %s)",
			offGrid, len(g.Samples), firstOff,
			g.Samples[firstOff].Timestamp.Format(time.RFC3339))
	}
	return p
}

// ── Phase 3: Feature Table ──
// Validates the merged table against the series it was built from: column
// union, per-row values matching the source cells, and the inner join
// reproduced exactly (no extra rows, no rows missing).

func validateFeatureTable(cfg *config.Config, art *artifacts) *phase {
	p := &phase{name: "Phase 3: Feature Table (join alignment)"}

	if art.featuresErr != nil {
		p.errorf("%v", art.featuresErr)
		return p
	}
	f := art.features

	if _, err := os.Stat(featureParquetPath(art.featurePath)); err != nil {
		p.errorf("parquet twin missing: %v", err)
	}

	// Columns: channels sorted by name, then ground variables.
	present := make([]string, 0, len(art.channels))
	for ch := range art.channels {
		present = append(present, ch)
	}
	slices.Sort(present)

	var wantCols []string
	for _, ch := range present {
		wantCols = append(wantCols, art.channels[ch].Columns...)
	}
	wantCols = append(wantCols, cfg.GroundVariables...)
	if !slices.Equal(f.columns, wantCols) {
		p.errorf("columns %v, want %v", f.columns, wantCols)
	}

	if art.ground == nil {
		p.errorf("ground series unavailable, cannot check the join")
		return p
	}

	// Rebuild the join from the series on disk and compare row for row.
	channels := make([]domain.ChannelSeries, 0, len(present))
	for _, ch := range present {
		channels = append(channels, art.channels[ch])
	}
	expected, _ := domain.MergeSeries(channels, *art.ground)

	expectedAt := make(map[int64]domain.FeatureRow, len(expected.Rows))
	for _, row := range expected.Rows {
		expectedAt[row.Timestamp.UnixNano()] = row
	}

	seen := make(map[int64]bool, len(f.rows))
	for _, row := range f.rows {
		key := row.ts.UnixNano()
		if seen[key] {
			p.errorf("line %d: duplicate timestamp %s", row.lineNum, row.ts.Format(time.RFC3339))
			continue
		}
		seen[key] = true

		want, ok := expectedAt[key]
		if !ok {
			p.errorf("line %d: %s is not a complete timestamp in the source series",
				row.lineNum, row.ts.Format(time.RFC3339))
			continue
		}
		if len(row.values) != len(want.Values) {
			p.errorf("line %d: %d values, want %d", row.lineNum, len(row.values), len(want.Values))
			continue
		}
		for j := range row.values {
			if !floatEq(row.values[j], want.Values[j]) {
				p.errorf("line %d: column %q: table has %g, series have %g",
					row.lineNum, f.columns[j], row.values[j], want.Values[j])
			}
		}
	}

	for _, row := range expected.Rows {
		if !seen[row.Timestamp.UnixNano()] {
			p.errorf("complete timestamp %s missing from the feature table",
				row.Timestamp.Format(time.RFC3339))
		}
	}
	return p
}

func featureParquetPath(csvPath string) string {
	return csvPath[:len(csvPath)-len(".csv")] + ".parquet"
}

// ── Phase 4: Audit Trail ──
// Validates the newest recorded run of each kind against the files: row
// counts match, recorded output paths still exist.

func validateAuditTrail(cfg *config.Config, art *artifacts) *phase {
	p := &phase{name: "Phase 4: Audit Trail (run history)"}

	if _, err := os.Stat(cfg.AuditDB); err != nil {
		p.errorf("audit database: %v", err)
		return p
	}

	logger := observability.NewLogger("error", "text")
	store := audit.Open(cfg.AuditDB, logger)
	defer store.Close() //nolint:errcheck // read-only usage

	ctx := context.Background()

	satRuns, err := store.RunHistory(ctx, audit.KindSatellite, cfg.Station.Name, 50)
	if err != nil {
		p.errorf("satellite history: %v", err)
	}
	for _, ch := range cfg.Channels {
		series, ok := art.channels[ch]
		if !ok {
			continue
		}
		run := newestForChannel(satRuns, ch)
		if run == nil {
			p.errorf("%s: no satellite run recorded", ch)
			continue
		}
		if int(run.Rows) != len(series.Records) {
			p.errorf("%s: audit says %d rows, series file has %d", ch, run.Rows, len(series.Records))
		}
		checkOutputPath(p, ch, run.OutputPath)
	}

	if art.ground != nil {
		run, err := newestRun(ctx, store, audit.KindGround, cfg.Station.Name)
		switch {
		case err != nil:
			p.errorf("ground history: %v", err)
		case run == nil:
			p.errorf("no ground run recorded")
		default:
			if int(run.Rows) != len(art.ground.Samples) {
				p.errorf("ground: audit says %d rows, series file has %d", run.Rows, len(art.ground.Samples))
			}
			checkOutputPath(p, "ground", run.OutputPath)
		}
	}

	if art.features != nil {
		run, err := newestRun(ctx, store, audit.KindFeatures, cfg.Station.Name)
		switch {
		case err != nil:
			p.errorf("feature history: %v", err)
		case run == nil:
			p.errorf("no feature run recorded")
		default:
			if int(run.Rows) != len(art.features.rows) {
				p.errorf("features: audit says %d rows, table has %d", run.Rows, len(art.features.rows))
			}
			checkOutputPath(p, "features", run.OutputPath)
		}
	}
	return p
}

func newestRun(ctx context.Context, store *audit.Store, kind, station string) (*audit.Run, error) {
	runs, err := store.RunHistory(ctx, kind, station, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// newestForChannel returns the most recent run for one channel; history is
// already newest-first.
func newestForChannel(runs []audit.Run, channel string) *audit.Run {
	for i := range runs {
		if runs[i].Channel == channel {
			return &runs[i]
		}
	}
	return nil
}

func checkOutputPath(p *phase, label, path string) {
	if path == "" {
		p.errorf("%s: run recorded without an output path", label)
		return
	}
	if _, err := os.Stat(path); err != nil {
		p.errorf("%s: recorded output missing: %v", label, err)
	}
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
