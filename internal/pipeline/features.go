package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/JvCastelo/masters-project/internal/adapter/export"
	"github.com/JvCastelo/masters-project/internal/audit"
	"github.com/JvCastelo/masters-project/internal/domain"
)

// RunFeatures joins the per-channel series with the ground series on exact
// timestamps and writes the feature table as CSV and Parquet.
func (p *Pipeline) RunFeatures(ctx context.Context) error {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if err := ctx.Err(); err != nil {
		return err
	}
	started := domain.Now()

	channels, err := p.loadChannelSeries()
	if err != nil {
		return err
	}

	groundPath := filepath.Join(p.cfg.RawSondaDir(),
		export.GroundCSVName(p.cfg.SondaDataType, p.cfg.StartDate, p.cfg.EndDate, p.cfg.Station.Name))
	ground, err := export.ReadGroundCSV(groundPath)
	if err != nil {
		return fmt.Errorf("ground series: %w", err)
	}

	table, drops := domain.MergeSeries(channels, ground)
	if len(table.Rows) == 0 {
		return fmt.Errorf("feature table is empty: %d timestamps missing a channel, %d missing ground data",
			drops.MissingChannel, drops.MissingGround)
	}

	base := filepath.Join(p.cfg.ProcessedDir(),
		export.FeatureBaseName(p.cfg.StartDate, p.cfg.EndDate, p.cfg.Station.Name))
	csvPath := base + ".csv"
	parquetPath := base + ".parquet"
	if err := export.WriteFeatureCSV(csvPath, table); err != nil {
		return err
	}
	if err := export.WriteFeatureParquet(parquetPath, table); err != nil {
		return err
	}

	p.metrics.RowsExported.WithLabelValues("features").Add(float64(len(table.Rows)))
	p.metrics.RowsDropped.WithLabelValues("missing_channel").Add(float64(drops.MissingChannel))
	p.metrics.RowsDropped.WithLabelValues("missing_ground").Add(float64(drops.MissingGround))

	p.logger.Info("feature table written",
		"csv", csvPath,
		"parquet", parquetPath,
		"rows", len(table.Rows),
		"columns", len(table.Columns),
		"missing_channel", drops.MissingChannel,
		"missing_ground", drops.MissingGround,
	)

	p.recordRun(ctx, audit.Run{
		Kind:                  audit.KindFeatures,
		Station:               p.cfg.Station.Name,
		RangeStart:            p.cfg.StartDate,
		RangeEnd:              p.cfg.RangeEnd(),
		StartedAt:             started,
		FinishedAt:            domain.Now(),
		Rows:                  int64(len(table.Rows)),
		DroppedMissingChannel: int64(drops.MissingChannel),
		DroppedMissingGround:  int64(drops.MissingGround),
		OutputPath:            csvPath,
	})
	p.ready.Store(true)
	return nil
}

// loadChannelSeries reads each configured channel's CSV. A channel whose
// series was never written is skipped with a warning so one failed
// extraction does not block the rest; no series at all is fatal.
func (p *Pipeline) loadChannelSeries() ([]domain.ChannelSeries, error) {
	var out []domain.ChannelSeries
	for _, channel := range p.cfg.Channels {
		path := filepath.Join(p.cfg.RawGoesDir(),
			export.ChannelCSVName(channel, p.cfg.StartDate, p.cfg.EndDate, p.cfg.Station.Name))
		series, err := export.ReadChannelCSV(path, channel)
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("channel series missing, skipping channel", "channel", channel, "path", path)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", channel, err)
		}
		out = append(out, series)
	}
	if len(out) == 0 {
		return nil, errors.New("no channel series found, nothing to merge")
	}
	return out, nil
}
