// Command genmock fabricates a complete set of pipeline outputs for local
// development: per-channel satellite series, a normalized ground series,
// the merged feature table, and matching audit records. Synthetic scans and
// archive rows run through the actual extraction, normalization, and merge
// code, so the generated tables behave exactly like a live run's.
//
// Usage:
//
//	go run ./cmd/genmock -config configs/pipeline.yaml -scan-interval 10m
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/JvCastelo/masters-project/internal/adapter/export"
	"github.com/JvCastelo/masters-project/internal/audit"
	"github.com/JvCastelo/masters-project/internal/config"
	"github.com/JvCastelo/masters-project/internal/domain"
	"github.com/JvCastelo/masters-project/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "pipeline config file (default: CONFIG_PATH or configs/pipeline.yaml)")
	scanEvery := flag.Duration("scan-interval", 10*time.Minute, "synthetic scan cadence")
	seed := flag.Int64("seed", 42, "noise seed, fixed for reproducible fixtures")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFile(*configPath)
	}
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed)) //nolint:gosec // fixtures, not secrets

	store := audit.Open(cfg.AuditDB, observability.NewLogger("error", "text"))
	defer store.Close() //nolint:errcheck // fixture generation
	ctx := context.Background()
	now := domain.Now()

	// ── Satellite series ──
	channels, err := synthChannels(cfg, *scanEvery, rng)
	if err != nil {
		return err
	}
	for _, s := range channels {
		path := filepath.Join(cfg.RawGoesDir(),
			export.ChannelCSVName(s.Channel, cfg.StartDate, cfg.EndDate, cfg.Station.Name))
		if err := export.WriteChannelCSV(path, s); err != nil {
			return err
		}
		log.Printf("%s: %d scans", s.Channel, len(s.Records))

		if _, err := store.RecordRun(ctx, audit.Run{
			Kind: audit.KindSatellite, Station: cfg.Station.Name,
			RangeStart: cfg.StartDate, RangeEnd: cfg.RangeEnd(),
			Channel: s.Channel, StartedAt: now, FinishedAt: now,
			Rows: int64(len(s.Records)), OutputPath: path,
		}); err != nil {
			return fmt.Errorf("record %s run: %w", s.Channel, err)
		}
	}

	// ── Ground series ──
	archive := synthArchive(cfg, rng)
	ground, stats, err := domain.NormalizeSeries(archive, domain.SeriesSpec{
		Start:     cfg.StartDate,
		End:       cfg.RangeEnd(),
		Interval:  cfg.GroundInterval,
		Variables: cfg.GroundVariables,
	})
	if err != nil {
		return fmt.Errorf("normalize synthetic archive: %w", err)
	}
	groundPath := filepath.Join(cfg.RawSondaDir(),
		export.GroundCSVName(cfg.SondaDataType, cfg.StartDate, cfg.EndDate, cfg.Station.Name))
	if err := export.WriteGroundCSV(groundPath, ground); err != nil {
		return err
	}
	log.Printf("ground: %d slots", len(ground.Samples))

	if _, err := store.RecordRun(ctx, audit.Run{
		Kind: audit.KindGround, Station: cfg.Station.Name,
		RangeStart: cfg.StartDate, RangeEnd: cfg.RangeEnd(),
		StartedAt: now, FinishedAt: now,
		Rows:       int64(len(ground.Samples)),
		Duplicates: int64(stats.Duplicates), OffGrid: int64(stats.OffGrid),
		OutOfRange: int64(stats.OutOfRange), OutputPath: groundPath,
	}); err != nil {
		return fmt.Errorf("record ground run: %w", err)
	}

	// ── Feature table ──
	table, drops := domain.MergeSeries(channels, ground)
	base := filepath.Join(cfg.ProcessedDir(),
		export.FeatureBaseName(cfg.StartDate, cfg.EndDate, cfg.Station.Name))
	if err := export.WriteFeatureCSV(base+".csv", table); err != nil {
		return err
	}
	if err := export.WriteFeatureParquet(base+".parquet", table); err != nil {
		return err
	}
	log.Printf("features: %d rows", len(table.Rows))

	if _, err := store.RecordRun(ctx, audit.Run{
		Kind: audit.KindFeatures, Station: cfg.Station.Name,
		RangeStart: cfg.StartDate, RangeEnd: cfg.RangeEnd(),
		StartedAt: now, FinishedAt: now,
		Rows:                  int64(len(table.Rows)),
		DroppedMissingChannel: int64(drops.MissingChannel),
		DroppedMissingGround:  int64(drops.MissingGround),
		OutputPath:            base + ".csv",
	}); err != nil {
		return fmt.Errorf("record feature run: %w", err)
	}

	printStats(channels, ground, stats, table, drops)
	return nil
}

// synthChannels builds one series per configured channel by cutting windows
// out of fabricated scan rasters.
func synthChannels(cfg *config.Config, scanEvery time.Duration, rng *rand.Rand) ([]domain.ChannelSeries, error) {
	side := 2*cfg.PixelRadius + 3
	center := domain.GridIndex{Row: cfg.PixelRadius + 1, Col: cfg.PixelRadius + 1}

	series := make([]domain.ChannelSeries, 0, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		s := domain.ChannelSeries{
			Channel: ch,
			Columns: domain.ColumnNames(cfg.PixelRadius, ch, cfg.Reduction),
		}
		for ts := cfg.StartDate; !ts.After(cfg.RangeEnd()); ts = ts.Add(scanEvery) {
			scan := &domain.Scan{
				Channel:   ch,
				Timestamp: ts,
				Grid:      domain.FullGrid(synthGrid(ts, side, i, rng)),
			}
			rec, err := domain.ExtractWindow(scan, center, cfg.PixelRadius, cfg.Reduction)
			if err != nil {
				return nil, fmt.Errorf("extract %s window at %s: %w", ch, ts.Format(time.RFC3339), err)
			}
			s.Records = append(s.Records, rec)
		}
		series = append(series, s)
	}
	return series, nil
}

// synthGrid builds one scan's raster: a diurnal radiance curve with
// per-pixel noise, occasional cloud attenuation, and sparse fill cells.
func synthGrid(ts time.Time, side, channelIdx int, rng *rand.Rand) [][]float64 {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60
	elevation := math.Sin(math.Pi * (hour - 6) / 12)

	base := 0.0
	if elevation > 0 {
		base = 520 * elevation * (1 + 0.1*float64(channelIdx))
	}
	if rng.Float64() < 0.15 {
		base *= 0.3 // cloud over the window
	}

	data := make([][]float64, side)
	for r := range data {
		row := make([]float64, side)
		for c := range row {
			v := base * (0.95 + 0.1*rng.Float64())
			if rng.Float64() < 0.01 {
				v = math.NaN() // fill cell
			}
			row[c] = v
		}
		data[r] = row
	}
	return data
}

// synthArchive fabricates raw archive rows covering the run range: one row
// per sampling slot minus occasional reporting gaps, plus the noise rows
// real archives carry.
func synthArchive(cfg *config.Config, rng *rand.Rand) domain.RawArchive {
	const layout = "2006-01-02 15:04:05"

	archive := domain.RawArchive{Columns: cfg.GroundVariables}
	row := func(ts time.Time) domain.RawRecord {
		fields := make(map[string]string, len(cfg.GroundVariables))
		for _, v := range cfg.GroundVariables {
			fields[v] = fmt.Sprintf("%.1f", groundValue(ts, rng))
		}
		return domain.RawRecord{Timestamp: ts.Format(layout), Fields: fields}
	}

	for ts := cfg.StartDate; !ts.After(cfg.RangeEnd()); ts = ts.Add(cfg.GroundInterval) {
		if rng.Float64() < 0.02 {
			continue // station skipped the slot
		}
		archive.Records = append(archive.Records, row(ts))
	}

	// A duplicate slot, an off-grid timestamp, and a row from before the
	// range, so normalization stats are never trivially zero.
	archive.Records = append(archive.Records,
		row(cfg.StartDate),
		row(cfg.StartDate.Add(37*time.Second)),
		row(cfg.StartDate.AddDate(0, 0, -1)),
	)
	return archive
}

// groundValue follows the same diurnal shape as the rasters so merged rows
// look physically plausible.
func groundValue(ts time.Time, rng *rand.Rand) float64 {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60
	elevation := math.Sin(math.Pi * (hour - 6) / 12)
	if elevation <= 0 {
		return rng.Float64() // nighttime sensor noise
	}
	return 980*elevation + 40*rng.Float64()
}

func printStats(channels []domain.ChannelSeries, ground domain.GroundSeries,
	stats domain.NormalizeStats, table domain.FeatureTable, drops domain.DropCounts) {

	fmt.Println("\n=== Generated fixture stats ===")
	for _, s := range channels {
		lo, hi, nulls := math.Inf(1), math.Inf(-1), 0
		for _, rec := range s.Records {
			for _, px := range rec.Pixels {
				if !px.Valid {
					nulls++
					continue
				}
				lo, hi = math.Min(lo, px.Value), math.Max(hi, px.Value)
			}
		}
		fmt.Printf("%s: %d scans, values %.1f..%.1f, %d null cells\n",
			s.Channel, len(s.Records), lo, hi, nulls)
	}
	fmt.Printf("ground: %d slots (%d assigned, %d duplicate, %d off-grid, %d out of range)\n",
		len(ground.Samples), stats.Assigned, stats.Duplicates, stats.OffGrid, stats.OutOfRange)
	fmt.Printf("features: %d rows (dropped: %d missing channel, %d missing ground)\n",
		len(table.Rows), drops.MissingChannel, drops.MissingGround)
}
