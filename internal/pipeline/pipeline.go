// Package pipeline orchestrates the three stages of a run: satellite window
// extraction, ground series normalization, and feature fusion.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/JvCastelo/masters-project/internal/adapter/netcdf"
	"github.com/JvCastelo/masters-project/internal/audit"
	"github.com/JvCastelo/masters-project/internal/config"
	"github.com/JvCastelo/masters-project/internal/domain"
	"github.com/JvCastelo/masters-project/internal/observability"
)

// ScanSource lists and fetches satellite scan objects.
type ScanSource interface {
	ListScanKeys(ctx context.Context, product, channel string, day time.Time) ([]string, error)
	Download(ctx context.Context, key, destDir string) (string, error)
}

// ScanDecoder reads scan metadata and grid row slabs from downloaded files.
type ScanDecoder interface {
	ReadInfo(path string) (netcdf.ScanInfo, error)
	ReadSlab(path string, rowLo, rowHi int) (*domain.Scan, error)
}

// ArchiveSource fetches ground measurement archives.
type ArchiveSource interface {
	DownloadYear(ctx context.Context, station domain.Station, year int, destDir string) (string, error)
	DownloadMonth(ctx context.Context, station domain.Station, year int, month time.Month, destDir string) (string, error)
}

// Pipeline runs the extraction and fusion stages for one configured range
// and station. Each stage dereferences only its own dependencies, so a
// command wiring a single stage may leave the others nil.
type Pipeline struct {
	cfg     *config.Config
	scans   ScanSource
	decoder ScanDecoder
	ground  ArchiveSource
	store   *audit.Store
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Pipeline with the given stage dependencies and observability.
func New(cfg *config.Config, scans ScanSource, decoder ScanDecoder, ground ArchiveSource, store *audit.Store, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		scans:   scans,
		decoder: decoder,
		ground:  ground,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once at least one stage has completed, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no pipeline stage has completed yet")
	}
	return nil
}

// Run executes the full pipeline in order: satellite extraction, ground
// normalization, feature fusion.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.RunSatellite(ctx); err != nil {
		return err
	}
	if err := p.RunGround(ctx); err != nil {
		return err
	}
	return p.RunFeatures(ctx)
}

// recordRun persists a run record. Audit is bookkeeping about work already
// done, so a failure here is logged, not propagated.
func (p *Pipeline) recordRun(ctx context.Context, run audit.Run) {
	if _, err := p.store.RecordRun(ctx, run); err != nil {
		p.logger.Warn("audit record failed", "kind", run.Kind, "error", err)
	}
}
