package pipeline_test

import (
	"archive/zip"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JvCastelo/masters-project/internal/adapter/export"
	"github.com/JvCastelo/masters-project/internal/adapter/netcdf"
	"github.com/JvCastelo/masters-project/internal/adapter/sonda"
	"github.com/JvCastelo/masters-project/internal/audit"
	"github.com/JvCastelo/masters-project/internal/config"
	"github.com/JvCastelo/masters-project/internal/domain"
	"github.com/JvCastelo/masters-project/internal/observability"
	"github.com/JvCastelo/masters-project/internal/pipeline"
	"github.com/stretchr/testify/require"
)

// testGeometry is a 5x5 fixed grid whose scan angles straddle (0, 0), the
// angles the sub-satellite point projects to. The test station sits at the
// sub-satellite point, so its window pins to the grid center (2, 2).
func testGeometry() domain.GridGeometry {
	return domain.GridGeometry{
		SemiMajorAxis:     6378137.0,
		SemiMinorAxis:     6356752.31414,
		PerspectiveHeight: 35786023.0,
		LonOrigin:         -75.0,
		XCoords:           []float64{-0.10, -0.05, 0, 0.05, 0.10},
		YCoords:           []float64{0.10, 0.05, 0, -0.05, -0.10},
	}
}

func testStation() domain.Station {
	return domain.Station{Name: "SUBSAT", Code: "SUB", Latitude: 0, Longitude: -75}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		StartDate:       time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		PixelRadius:     1,
		Reduction:       domain.ReductionWindow,
		GoesProduct:     "ABI-L1b-RadF",
		GoesBucket:      "noaa-goes16",
		GoesVariable:    "Rad",
		Channels:        []string{"C01"},
		SondaDataType:   "BSRN",
		GroundVariables: []string{"glo_avg"},
		GroundInterval:  10 * time.Minute,
		MaxWorkers:      2,
		Station:         testStation(),
		DataDir:         dir,
		AuditDB:         filepath.Join(dir, "audit.db"),
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config, scans pipeline.ScanSource, decoder pipeline.ScanDecoder, ground pipeline.ArchiveSource) (*pipeline.Pipeline, *audit.Store) {
	t.Helper()
	store := audit.Open(cfg.AuditDB, slog.Default())
	t.Cleanup(func() { _ = store.Close() })
	p := pipeline.New(cfg, scans, decoder, ground, store, slog.Default(), observability.NewMetricsForTesting())
	return p, store
}

func keyAt(ts time.Time) string {
	return "ABI-L1b-RadF/2024/001/12/" + baseAt(ts)
}

func baseAt(ts time.Time) string {
	return fmt.Sprintf("OR_ABI-L1b-RadF-M6C01_G16_s%s.nc", ts.Format("20060102150405"))
}

// --- satellite fakes ---

type fakeScanSource struct {
	mu        sync.Mutex
	keys      []string
	listErr   error
	downloads []string
}

func (f *fakeScanSource) ListScanKeys(_ context.Context, _, _ string, _ time.Time) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.keys, nil
}

func (f *fakeScanSource) Download(ctx context.Context, key, destDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.downloads = append(f.downloads, key)
	f.mu.Unlock()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(destDir, filepath.Base(key))
	if err := os.WriteFile(path, []byte(key), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeScanSource) downloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.downloads)
}

// scanFixture is the decoded form a fake scan file stands for: a uniform
// grid of one value at one timestamp.
type scanFixture struct {
	timestamp time.Time
	value     float64
	rows      int
	cols      int
	decodeErr error
}

type fakeDecoder struct {
	geometry domain.GridGeometry
	fixtures map[string]scanFixture // keyed by scan file base name
}

func (f *fakeDecoder) ReadInfo(path string) (netcdf.ScanInfo, error) {
	fix, ok := f.fixtures[filepath.Base(path)]
	if !ok {
		return netcdf.ScanInfo{}, fmt.Errorf("no fixture for %s", filepath.Base(path))
	}
	return netcdf.ScanInfo{
		Channel:   "C01",
		Timestamp: fix.timestamp,
		Geometry:  f.geometry,
		Rows:      fix.rows,
		Cols:      fix.cols,
	}, nil
}

func (f *fakeDecoder) ReadSlab(path string, rowLo, rowHi int) (*domain.Scan, error) {
	fix, ok := f.fixtures[filepath.Base(path)]
	if !ok {
		return nil, fmt.Errorf("no fixture for %s", filepath.Base(path))
	}
	if fix.decodeErr != nil {
		return nil, fix.decodeErr
	}
	if rowHi >= fix.rows {
		rowHi = fix.rows - 1
	}
	data := make([][]float64, 0, rowHi-rowLo+1)
	for r := rowLo; r <= rowHi; r++ {
		row := make([]float64, fix.cols)
		for c := range row {
			row[c] = fix.value
		}
		data = append(data, row)
	}
	return &domain.Scan{
		Channel:   "C01",
		Timestamp: fix.timestamp,
		Geometry:  f.geometry,
		Grid:      domain.Grid{Rows: fix.rows, Cols: fix.cols, RowOffset: rowLo, Data: data},
	}, nil
}

// --- ground fakes ---

type fakeArchiveSource struct {
	years      map[int]string    // archive path per year
	months     map[string]string // archive path per "YYYY-MM"
	monthCalls []string
}

func (f *fakeArchiveSource) DownloadYear(_ context.Context, _ domain.Station, year int, _ string) (string, error) {
	if path, ok := f.years[year]; ok {
		return path, nil
	}
	return "", sonda.ErrNotFound
}

func (f *fakeArchiveSource) DownloadMonth(_ context.Context, _ domain.Station, year int, month time.Month, _ string) (string, error) {
	key := fmt.Sprintf("%d-%02d", year, int(month))
	f.monthCalls = append(f.monthCalls, key)
	if path, ok := f.months[key]; ok {
		return path, nil
	}
	return "", sonda.ErrNotFound
}

// buildArchive writes a ZIP holding one .dat file in the SONDA layout:
// title line, CSV header, units row, then the given data rows.
func buildArchive(t *testing.T, dir, name string, dataRows []string) string {
	t.Helper()

	lines := append([]string{
		"SUBSAT solarimetric station",
		"timestamp,glo_avg",
		",W/m2",
	}, dataRows...)

	path := filepath.Join(dir, name)
	fl, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(fl)
	w, err := zw.Create("SUB_SD.dat")
	require.NoError(t, err)
	_, err = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, fl.Close())
	return path
}

// --- series builders for the fusion tests ---

func validPixels(n int, value float64) []domain.Reading {
	pixels := make([]domain.Reading, n)
	for i := range pixels {
		pixels[i] = domain.Reading{Value: value, Valid: true}
	}
	return pixels
}

func pixelsWithNull(n int, value float64) []domain.Reading {
	pixels := validPixels(n, value)
	pixels[n/2] = domain.NullReading()
	return pixels
}

func writeChannel(t *testing.T, cfg *config.Config, series domain.ChannelSeries) {
	t.Helper()
	path := filepath.Join(cfg.RawGoesDir(),
		export.ChannelCSVName(series.Channel, cfg.StartDate, cfg.EndDate, cfg.Station.Name))
	require.NoError(t, export.WriteChannelCSV(path, series))
}

func writeGround(t *testing.T, cfg *config.Config, series domain.GroundSeries) {
	t.Helper()
	path := filepath.Join(cfg.RawSondaDir(),
		export.GroundCSVName(cfg.SondaDataType, cfg.StartDate, cfg.EndDate, cfg.Station.Name))
	require.NoError(t, export.WriteGroundCSV(path, series))
}
