package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JvCastelo/masters-project/internal/domain"
)

const validPipelineYAML = `
general:
  start_date: "2024-01-01"
  end_date: "2024-01-07"
  pixel_radius: 2
  reduction: window
  goes_product: ABI-L1b-RadF
  goes_bucket: noaa-goes16
  goes_variable: Rad
  channels: [C01, C13]
  sonda_data_type: BSRN
  ground_variables: [glo_avg]
  ground_interval: 1m
  max_workers: 4
stations:
  - name: BRASILIA
    latitude: -15.60083
    longitude: -47.71306
  - name: PETROLINA
    latitude: -9.06889
    longitude: -40.31972
active_station: BRASILIA
`

func writePipeline(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile_Valid(t *testing.T) {
	cfg, err := LoadFile(writePipeline(t, validPipelineYAML))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), cfg.EndDate)
	assert.Equal(t, 2, cfg.PixelRadius)
	assert.Equal(t, domain.ReductionWindow, cfg.Reduction)
	assert.Equal(t, "ABI-L1b-RadF", cfg.GoesProduct)
	assert.Equal(t, "noaa-goes16", cfg.GoesBucket)
	assert.Equal(t, "Rad", cfg.GoesVariable)
	assert.Equal(t, []string{"C01", "C13"}, cfg.Channels)
	assert.Equal(t, "BSRN", cfg.SondaDataType)
	assert.Equal(t, []string{"glo_avg"}, cfg.GroundVariables)
	assert.Equal(t, time.Minute, cfg.GroundInterval)
	assert.Equal(t, 4, cfg.MaxWorkers)

	assert.Equal(t, "BRASILIA", cfg.Station.Name)
	assert.Equal(t, "BRB", cfg.Station.Code)
	assert.InDelta(t, -15.60083, cfg.Station.Latitude, 1e-9)
	assert.InDelta(t, -47.71306, cfg.Station.Longitude, 1e-9)
}

func TestLoadFile_EnvDefaults(t *testing.T) {
	cfg, err := LoadFile(writePipeline(t, validPipelineYAML))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.S3Endpoint)
	assert.Equal(t, "https://sonda.ccst.inpe.br/dados", cfg.SondaBaseURL)
	assert.Equal(t, filepath.Join("data", "audit.db"), cfg.AuditDB)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/var/lib/solar")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("SONDA_BASE_URL", "http://localhost:8081/dados")
	t.Setenv("AUDIT_DB", "/tmp/audit.db")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := LoadFile(writePipeline(t, validPipelineYAML))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/solar", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, "http://localhost:8081/dados", cfg.SondaBaseURL)
	assert.Equal(t, "/tmp/audit.db", cfg.AuditDB)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_UsesConfigPath(t *testing.T) {
	path := writePipeline(t, validPipelineYAML)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "BRB", cfg.Station.Code)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read pipeline config")
}

func TestLoadFile_MalformedYAML(t *testing.T) {
	_, err := LoadFile(writePipeline(t, "general: [not: a: map"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse pipeline config")
}

func TestLoadFile_Defaults(t *testing.T) {
	body := strings.NewReplacer(
		"  reduction: window\n", "",
		"  goes_variable: Rad\n", "",
		"  ground_variables: [glo_avg]\n", "",
		"  ground_interval: 1m\n", "",
		"  max_workers: 4\n", "",
	).Replace(validPipelineYAML)

	cfg, err := LoadFile(writePipeline(t, body))
	require.NoError(t, err)

	assert.Equal(t, domain.ReductionWindow, cfg.Reduction)
	assert.Equal(t, "Rad", cfg.GoesVariable)
	assert.Equal(t, []string{"glo_avg"}, cfg.GroundVariables)
	assert.Equal(t, time.Minute, cfg.GroundInterval)
	assert.Equal(t, 10, cfg.MaxWorkers)
}

func TestLoadFile_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		old     string
		new     string
		wantErr string
	}{
		{"end before start", `end_date: "2024-01-07"`, `end_date: "2023-12-31"`, "before start_date"},
		{"bad start date", `start_date: "2024-01-01"`, `start_date: "01/01/2024"`, "invalid start_date"},
		{"negative radius", "pixel_radius: 2", "pixel_radius: -1", "pixel_radius"},
		{"negative workers", "max_workers: 4", "max_workers: -2", "max_workers"},
		{"unknown reduction", "reduction: window", "reduction: median", "unknown reduction"},
		{"no channels", "channels: [C01, C13]", "channels: []", "at least one ABI channel"},
		{"bad channel", "channels: [C01, C13]", "channels: [C99]", `unknown channel "C99"`},
		{"no bucket", "goes_bucket: noaa-goes16", `goes_bucket: ""`, "goes_bucket"},
		{"no data type", "sonda_data_type: BSRN", `sonda_data_type: ""`, "sonda_data_type"},
		{"bad interval", "ground_interval: 1m", "ground_interval: soon", "ground_interval"},
		{"unlisted station", "active_station: BRASILIA", "active_station: NATAL", "not in the stations list"},
		{"uncoded station", "name: BRASILIA", "name: ATLANTIS", "not in the stations list"},
		{"no active station", `active_station: BRASILIA`, `active_station: ""`, "active_station is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := strings.Replace(validPipelineYAML, tc.old, tc.new, 1)
			require.NotEqual(t, validPipelineYAML, body, "replacement did not apply")

			_, err := LoadFile(writePipeline(t, body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadFile_UncodedActiveStation(t *testing.T) {
	body := strings.NewReplacer(
		"name: BRASILIA", "name: ATLANTIS",
		"active_station: BRASILIA", "active_station: ATLANTIS",
	).Replace(validPipelineYAML)

	_, err := LoadFile(writePipeline(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no SONDA code")
}

func TestLoadFile_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := LoadFile(writePipeline(t, validPipelineYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestRangeEnd(t *testing.T) {
	cfg := Config{EndDate: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, time.Date(2024, 1, 7, 23, 59, 59, 0, time.UTC), cfg.RangeEnd())
}

func TestDataDirs(t *testing.T) {
	cfg := Config{DataDir: "data"}
	assert.Equal(t, filepath.Join("data", "raw", "goes"), cfg.RawGoesDir())
	assert.Equal(t, filepath.Join("data", "raw", "sonda"), cfg.RawSondaDir())
	assert.Equal(t, filepath.Join("data", "processed"), cfg.ProcessedDir())
}
