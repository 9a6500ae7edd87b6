package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JvCastelo/masters-project/internal/domain"
)

// DateLayout is the calendar-date format used in the pipeline file, CLI
// flags, and output filenames.
const DateLayout = "2006-01-02"

// fileConfig mirrors configs/pipeline.yaml.
type fileConfig struct {
	General struct {
		StartDate       string   `yaml:"start_date"`
		EndDate         string   `yaml:"end_date"`
		PixelRadius     int      `yaml:"pixel_radius"`
		Reduction       string   `yaml:"reduction"`
		GoesProduct     string   `yaml:"goes_product"`
		GoesBucket      string   `yaml:"goes_bucket"`
		GoesVariable    string   `yaml:"goes_variable"`
		Channels        []string `yaml:"channels"`
		SondaDataType   string   `yaml:"sonda_data_type"`
		GroundVariables []string `yaml:"ground_variables"`
		GroundInterval  string   `yaml:"ground_interval"`
		MaxWorkers      int      `yaml:"max_workers"`
	} `yaml:"general"`
	Stations []struct {
		Name      string  `yaml:"name"`
		Latitude  float64 `yaml:"latitude"`
		Longitude float64 `yaml:"longitude"`
	} `yaml:"stations"`
	ActiveStation string `yaml:"active_station"`
}

// Config holds one validated pipeline run configuration: the YAML pipeline
// file resolved against environment overrides. Components receive it as a
// value and never read ambient process state themselves.
type Config struct {
	// Run parameters from the pipeline file.
	StartDate       time.Time // first day of the range, midnight UTC
	EndDate         time.Time // last day of the range, midnight UTC, inclusive
	PixelRadius     int
	Reduction       domain.Reduction
	GoesProduct     string
	GoesBucket      string
	GoesVariable    string
	Channels        []string
	SondaDataType   string
	GroundVariables []string
	GroundInterval  time.Duration
	MaxWorkers      int
	Station         domain.Station

	// Deployment knobs from the environment.
	DataDir         string
	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	S3Endpoint      string // override for MinIO; empty means AWS
	SondaBaseURL    string
	AuditDB         string
	ShutdownTimeout time.Duration
}

// Load reads the pipeline file named by CONFIG_PATH (default
// configs/pipeline.yaml), applies environment overrides, and validates the
// result.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file
	path := EnvOrDefault("CONFIG_PATH", filepath.Join("configs", "pipeline.yaml"))
	return LoadFile(path)
}

// LoadFile loads and validates a specific pipeline file.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse pipeline config %s: %w", path, err)
	}

	cfg, err := fromFile(fc)
	if err != nil {
		return nil, fmt.Errorf("pipeline config %s: %w", path, err)
	}

	cfg.DataDir = EnvOrDefault("DATA_DIR", "data")
	cfg.LogLevel = EnvOrDefault("LOG_LEVEL", "info")
	cfg.LogFormat = EnvOrDefault("LOG_FORMAT", "json")
	cfg.HTTPAddr = EnvOrDefault("HTTP_ADDR", ":8080")
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.SondaBaseURL = EnvOrDefault("SONDA_BASE_URL", "https://sonda.ccst.inpe.br/dados")
	cfg.AuditDB = EnvOrDefault("AUDIT_DB", filepath.Join(cfg.DataDir, "audit.db"))

	shutdown := EnvOrDefault("SHUTDOWN_TIMEOUT", "10s")
	cfg.ShutdownTimeout, err = time.ParseDuration(shutdown)
	if err != nil || cfg.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q", shutdown)
	}

	return cfg, nil
}

func fromFile(fc fileConfig) (*Config, error) {
	g := fc.General
	cfg := &Config{
		PixelRadius:     g.PixelRadius,
		GoesProduct:     g.GoesProduct,
		GoesBucket:      g.GoesBucket,
		GoesVariable:    g.GoesVariable,
		Channels:        g.Channels,
		SondaDataType:   g.SondaDataType,
		GroundVariables: g.GroundVariables,
		MaxWorkers:      g.MaxWorkers,
	}

	var err error
	if cfg.StartDate, err = time.ParseInLocation(DateLayout, g.StartDate, time.UTC); err != nil {
		return nil, fmt.Errorf("invalid start_date %q: %w", g.StartDate, err)
	}
	if cfg.EndDate, err = time.ParseInLocation(DateLayout, g.EndDate, time.UTC); err != nil {
		return nil, fmt.Errorf("invalid end_date %q: %w", g.EndDate, err)
	}
	if cfg.EndDate.Before(cfg.StartDate) {
		return nil, fmt.Errorf("end_date %s is before start_date %s", g.EndDate, g.StartDate)
	}

	if cfg.PixelRadius < 0 {
		return nil, fmt.Errorf("pixel_radius must be >= 0, got %d", cfg.PixelRadius)
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.MaxWorkers < 0 {
		return nil, fmt.Errorf("max_workers must be >= 1, got %d", cfg.MaxWorkers)
	}

	reduction := g.Reduction
	if reduction == "" {
		reduction = string(domain.ReductionWindow)
	}
	if cfg.Reduction, err = domain.ParseReduction(reduction); err != nil {
		return nil, err
	}

	if len(cfg.Channels) == 0 {
		return nil, errors.New("channels must name at least one ABI channel")
	}
	for _, ch := range cfg.Channels {
		if !domain.IsChannel(ch) {
			return nil, fmt.Errorf("unknown channel %q", ch)
		}
	}

	if cfg.GoesBucket == "" || cfg.GoesProduct == "" {
		return nil, errors.New("goes_bucket and goes_product are required")
	}
	if cfg.GoesVariable == "" {
		cfg.GoesVariable = "Rad"
	}
	if cfg.SondaDataType == "" {
		return nil, errors.New("sonda_data_type is required")
	}

	if len(cfg.GroundVariables) == 0 {
		cfg.GroundVariables = []string{"glo_avg"}
	}
	interval := g.GroundInterval
	if interval == "" {
		interval = "1m"
	}
	if cfg.GroundInterval, err = time.ParseDuration(interval); err != nil || cfg.GroundInterval <= 0 {
		return nil, fmt.Errorf("invalid ground_interval %q", interval)
	}

	if cfg.Station, err = resolveStation(fc); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveStation finds the active station in the catalog and attaches its
// SONDA code.
func resolveStation(fc fileConfig) (domain.Station, error) {
	if fc.ActiveStation == "" {
		return domain.Station{}, errors.New("active_station is required")
	}
	for _, s := range fc.Stations {
		if s.Name != fc.ActiveStation {
			continue
		}
		code, ok := domain.StationCode(s.Name)
		if !ok {
			return domain.Station{}, fmt.Errorf("station %q has no SONDA code; known stations: %s",
				s.Name, strings.Join(domain.StationNames(), ", "))
		}
		return domain.Station{Name: s.Name, Code: code, Latitude: s.Latitude, Longitude: s.Longitude}, nil
	}
	return domain.Station{}, fmt.Errorf("active_station %q is not in the stations list", fc.ActiveStation)
}

// EnvOrDefault returns the environment value for key, or def when unset.
func EnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// RangeEnd returns the inclusive end of the configured range: the last
// second of the end date, matching how ground archives are trimmed.
func (c *Config) RangeEnd() time.Time {
	return c.EndDate.Add(24*time.Hour - time.Second)
}

// RawGoesDir is where downloaded scans and channel series CSVs live.
func (c *Config) RawGoesDir() string {
	return filepath.Join(c.DataDir, "raw", "goes")
}

// RawSondaDir is where ground archives and the ground series CSV live.
func (c *Config) RawSondaDir() string {
	return filepath.Join(c.DataDir, "raw", "sonda")
}

// ProcessedDir is where merged feature tables live.
func (c *Config) ProcessedDir() string {
	return filepath.Join(c.DataDir, "processed")
}
