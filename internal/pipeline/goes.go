package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/JvCastelo/masters-project/internal/adapter/export"
	"github.com/JvCastelo/masters-project/internal/audit"
	"github.com/JvCastelo/masters-project/internal/config"
	"github.com/JvCastelo/masters-project/internal/domain"
)

// windowPin fixes the grid window for a whole channel run. The fixed grid
// is identical across scans of a product, so the first scan's geometry
// resolves the station exactly once.
type windowPin struct {
	center domain.GridIndex
	rect   domain.WindowRect
}

// scanResult carries one scan's outcome back from the worker pool.
type scanResult struct {
	key    string
	record domain.ChannelRecord
	err    error
	reason string
}

// RunSatellite extracts the pixel window series for every configured
// channel and writes one CSV per channel.
func (p *Pipeline) RunSatellite(ctx context.Context) error {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	p.logger.Info("satellite extraction started",
		"station", p.cfg.Station.Name,
		"product", p.cfg.GoesProduct,
		"channels", p.cfg.Channels,
		"radius", p.cfg.PixelRadius,
		"workers", p.cfg.MaxWorkers,
	)

	for _, channel := range p.cfg.Channels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.runChannel(ctx, channel); err != nil {
			return fmt.Errorf("channel %s: %w", channel, err)
		}
	}
	p.ready.Store(true)
	return nil
}

func (p *Pipeline) runChannel(ctx context.Context, channel string) error {
	started := domain.Now()

	keys, err := p.listRange(ctx, channel)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("no %s scans in s3://%s/%s between %s and %s",
			channel, p.cfg.GoesBucket, p.cfg.GoesProduct,
			p.cfg.StartDate.Format(config.DateLayout), p.cfg.EndDate.Format(config.DateLayout))
	}

	series := domain.ChannelSeries{
		Channel: channel,
		Columns: domain.ColumnNames(p.cfg.PixelRadius, channel, p.cfg.Reduction),
	}
	var drops domain.DropCounts
	var failures int

	pin, err := p.pinWindow(ctx, channel, keys[0])
	var boundsErr *domain.WindowBoundsError
	switch {
	case errors.As(err, &boundsErr):
		// A window that does not fit the first scan fits none of them.
		p.logger.Warn("station window does not fit the scan grid, dropping every scan",
			"channel", channel, "error", err)
		drops.OutOfBounds = len(keys)
	case err != nil:
		return err
	default:
		p.extractScans(ctx, channel, pin, keys, &series, &drops, &failures)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	duplicates := series.SortRecords()
	if duplicates > 0 {
		p.metrics.ScansSkipped.WithLabelValues(channel, "duplicate").Add(float64(duplicates))
	}

	outPath := filepath.Join(p.cfg.RawGoesDir(),
		export.ChannelCSVName(channel, p.cfg.StartDate, p.cfg.EndDate, p.cfg.Station.Name))
	if err := export.WriteChannelCSV(outPath, series); err != nil {
		return err
	}
	p.metrics.RowsExported.WithLabelValues("goes").Add(float64(len(series.Records)))
	p.metrics.RowsDropped.WithLabelValues("out_of_bounds").Add(float64(drops.OutOfBounds))

	p.logger.Info("channel series written",
		"channel", channel,
		"path", outPath,
		"records", len(series.Records),
		"out_of_bounds", drops.OutOfBounds,
		"failures", failures,
		"duplicates", duplicates,
	)

	p.recordRun(ctx, audit.Run{
		Kind:               audit.KindSatellite,
		Station:            p.cfg.Station.Name,
		RangeStart:         p.cfg.StartDate,
		RangeEnd:           p.cfg.RangeEnd(),
		Channel:            channel,
		StartedAt:          started,
		FinishedAt:         domain.Now(),
		Rows:               int64(len(series.Records)),
		DroppedOutOfBounds: int64(drops.OutOfBounds),
		Duplicates:         int64(duplicates),
		Failures:           int64(failures),
		OutputPath:         outPath,
	})
	return nil
}

// listRange lists scan keys for every day of the configured range, in
// chronological order.
func (p *Pipeline) listRange(ctx context.Context, channel string) ([]string, error) {
	var keys []string
	for day := p.cfg.StartDate; !day.After(p.cfg.EndDate); day = day.AddDate(0, 0, 1) {
		dayKeys, err := p.scans.ListScanKeys(ctx, p.cfg.GoesProduct, channel, day)
		if err != nil {
			return nil, fmt.Errorf("list scans for %s: %w", day.Format(config.DateLayout), err)
		}
		keys = append(keys, dayKeys...)
	}
	return keys, nil
}

// pinWindow downloads the first scan of the range and resolves the station
// onto its grid. A coordinate the satellite cannot see is a configuration
// error; a window that crosses the grid edge comes back as a
// WindowBoundsError for the caller to account as dropped scans.
func (p *Pipeline) pinWindow(ctx context.Context, channel, key string) (windowPin, error) {
	path, err := p.scans.Download(ctx, key, p.cfg.RawGoesDir())
	if err != nil {
		return windowPin{}, fmt.Errorf("download reference scan %s: %w", key, err)
	}
	info, err := p.decoder.ReadInfo(path)
	if err != nil {
		return windowPin{}, fmt.Errorf("read reference scan %s: %w", key, err)
	}

	center, err := domain.LocateIndex(info.Geometry, p.cfg.Station.Latitude, p.cfg.Station.Longitude)
	if err != nil {
		return windowPin{}, fmt.Errorf("locate station %s: %w", p.cfg.Station.Name, err)
	}
	rect, err := domain.WindowBounds(center, p.cfg.PixelRadius, info.Rows, info.Cols)
	if err != nil {
		return windowPin{}, fmt.Errorf("window at %s: %w", center, err)
	}

	p.logger.Info("station window pinned",
		"channel", channel,
		"center", center.String(),
		"row_lo", rect.RowLo,
		"row_hi", rect.RowHi,
		"grid", fmt.Sprintf("%dx%d", info.Rows, info.Cols),
	)
	return windowPin{center: center, rect: rect}, nil
}

// extractScans pushes every key through a bounded worker pool and folds the
// per-scan outcomes into the series and counters.
func (p *Pipeline) extractScans(ctx context.Context, channel string, pin windowPin, keys []string, series *domain.ChannelSeries, drops *domain.DropCounts, failures *int) {
	workers := p.cfg.MaxWorkers
	if workers > len(keys) {
		workers = len(keys)
	}

	jobs := make(chan string)
	results := make(chan scanResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				results <- p.processScan(ctx, channel, pin, key)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, key := range keys {
			select {
			case jobs <- key:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var boundsErr *domain.WindowBoundsError
	for res := range results {
		switch {
		case res.err == nil:
			series.Records = append(series.Records, res.record)
			p.metrics.ScansProcessed.WithLabelValues(channel).Inc()
		case errors.As(res.err, &boundsErr):
			drops.OutOfBounds++
			p.metrics.ScansSkipped.WithLabelValues(channel, "out_of_bounds").Inc()
			p.logger.Warn("scan window out of bounds", "key", res.key, "error", res.err)
		default:
			*failures++
			p.metrics.ScansSkipped.WithLabelValues(channel, res.reason).Inc()
			p.logger.Warn("scan skipped", "key", res.key, "reason", res.reason, "error", res.err)
		}
	}
}

// processScan fetches one scan, decodes only the pinned window rows, and
// cuts the record. Failures come back in the result: one bad scan is a
// missing timestamp, not a dead run.
func (p *Pipeline) processScan(ctx context.Context, channel string, pin windowPin, key string) scanResult {
	start := time.Now()

	path, err := p.scans.Download(ctx, key, p.cfg.RawGoesDir())
	if err != nil {
		return scanResult{key: key, err: err, reason: "download"}
	}

	scan, err := p.decoder.ReadSlab(path, pin.rect.RowLo, pin.rect.RowHi)
	if err != nil {
		return scanResult{key: key, err: err, reason: "decode"}
	}

	record, err := domain.ExtractWindow(scan, pin.center, p.cfg.PixelRadius, p.cfg.Reduction)
	if err != nil {
		return scanResult{key: key, err: err, reason: "decode"}
	}

	p.metrics.ScanDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
	return scanResult{key: key, record: record}
}
