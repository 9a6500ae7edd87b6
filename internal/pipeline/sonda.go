package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/JvCastelo/masters-project/internal/adapter/export"
	"github.com/JvCastelo/masters-project/internal/adapter/sonda"
	"github.com/JvCastelo/masters-project/internal/audit"
	"github.com/JvCastelo/masters-project/internal/config"
	"github.com/JvCastelo/masters-project/internal/domain"
)

// RunGround downloads the station's measurement archives covering the
// range, normalizes them onto the sampling grid, and writes the ground
// series CSV.
func (p *Pipeline) RunGround(ctx context.Context) error {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	started := domain.Now()
	station := p.cfg.Station

	p.logger.Info("ground normalization started",
		"station", station.Name,
		"type", p.cfg.SondaDataType,
		"variables", p.cfg.GroundVariables,
		"interval", p.cfg.GroundInterval,
	)

	archive, found, err := p.collectArchives(ctx)
	if err != nil {
		return err
	}
	if found == 0 {
		return fmt.Errorf("no %s archives published for %s between %s and %s",
			p.cfg.SondaDataType, station.Name,
			p.cfg.StartDate.Format(config.DateLayout), p.cfg.EndDate.Format(config.DateLayout))
	}

	series, stats, err := domain.NormalizeSeries(archive, domain.SeriesSpec{
		Start:     p.cfg.StartDate,
		End:       p.cfg.RangeEnd(),
		Interval:  p.cfg.GroundInterval,
		Variables: p.cfg.GroundVariables,
	})
	if err != nil {
		return fmt.Errorf("normalize %s series: %w", station.Name, err)
	}

	outPath := filepath.Join(p.cfg.RawSondaDir(),
		export.GroundCSVName(p.cfg.SondaDataType, p.cfg.StartDate, p.cfg.EndDate, station.Name))
	if err := export.WriteGroundCSV(outPath, series); err != nil {
		return err
	}
	p.metrics.RowsExported.WithLabelValues("sonda").Add(float64(len(series.Samples)))

	p.logger.Info("ground series written",
		"path", outPath,
		"samples", len(series.Samples),
		"assigned", stats.Assigned,
		"duplicates", stats.Duplicates,
		"off_grid", stats.OffGrid,
		"out_of_range", stats.OutOfRange,
	)

	p.recordRun(ctx, audit.Run{
		Kind:       audit.KindGround,
		Station:    station.Name,
		RangeStart: p.cfg.StartDate,
		RangeEnd:   p.cfg.RangeEnd(),
		StartedAt:  started,
		FinishedAt: domain.Now(),
		Rows:       int64(len(series.Samples)),
		Duplicates: int64(stats.Duplicates),
		OffGrid:    int64(stats.OffGrid),
		OutOfRange: int64(stats.OutOfRange),
		OutputPath: outPath,
	})
	p.ready.Store(true)
	return nil
}

// collectArchives downloads and decodes every archive covering the range
// into one combined record set. Yearly archives are preferred; a year INPE
// has not rolled up yet falls back to its monthly archives. A month that
// was never published is skipped and its slots stay null.
func (p *Pipeline) collectArchives(ctx context.Context) (domain.RawArchive, int, error) {
	destDir := p.cfg.RawSondaDir()
	station := p.cfg.Station

	var combined domain.RawArchive
	seen := make(map[string]bool)
	found := 0

	merge := func(path string) error {
		arch, err := sonda.ReadArchive(path)
		if err != nil {
			return err
		}
		for _, col := range arch.Columns {
			if !seen[col] {
				seen[col] = true
				combined.Columns = append(combined.Columns, col)
			}
		}
		combined.Records = append(combined.Records, arch.Records...)
		found++
		return nil
	}

	for _, year := range targetYears(p.cfg.StartDate, p.cfg.EndDate) {
		if err := ctx.Err(); err != nil {
			return domain.RawArchive{}, 0, err
		}

		path, err := p.ground.DownloadYear(ctx, station, year, destDir)
		switch {
		case err == nil:
			if err := merge(path); err != nil {
				return domain.RawArchive{}, 0, err
			}
			continue
		case !errors.Is(err, sonda.ErrNotFound):
			return domain.RawArchive{}, 0, fmt.Errorf("year %d: %w", year, err)
		}

		for _, month := range targetMonths(p.cfg.StartDate, p.cfg.EndDate, year) {
			path, err := p.ground.DownloadMonth(ctx, station, year, month, destDir)
			if errors.Is(err, sonda.ErrNotFound) {
				p.logger.Warn("monthly archive not published, slots stay null",
					"station", station.Name, "year", year, "month", int(month))
				continue
			}
			if err != nil {
				return domain.RawArchive{}, 0, fmt.Errorf("%d-%02d: %w", year, int(month), err)
			}
			if err := merge(path); err != nil {
				return domain.RawArchive{}, 0, err
			}
		}
	}
	return combined, found, nil
}
