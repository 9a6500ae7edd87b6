// Command etl runs the satellite extraction and fusion pipeline for the
// configured station and date range.
//
// The -stage flag selects what runs: goes downloads and extracts the
// satellite window series, sonda builds the normalized ground series,
// features merges both into the feature table, and all chains the three in
// order. Health, readiness, and Prometheus metrics are served on HTTP_ADDR
// while the run is active.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/JvCastelo/masters-project/internal/adapter/http"
	"github.com/JvCastelo/masters-project/internal/adapter/netcdf"
	"github.com/JvCastelo/masters-project/internal/adapter/noaa"
	"github.com/JvCastelo/masters-project/internal/adapter/sonda"
	"github.com/JvCastelo/masters-project/internal/audit"
	"github.com/JvCastelo/masters-project/internal/config"
	"github.com/JvCastelo/masters-project/internal/observability"
	"github.com/JvCastelo/masters-project/internal/pipeline"
)

func main() {
	stage := flag.String("stage", "all", "pipeline stage to run: goes, sonda, features, or all")
	flag.Parse()

	if err := run(*stage); err != nil {
		slog.Error("etl failed", "error", err)
		os.Exit(1)
	}
}

func run(stage string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	noaaClient, err := noaa.NewClient(ctx, cfg.GoesBucket, cfg.S3Endpoint, logger, metrics)
	if err != nil {
		return fmt.Errorf("create scan source: %w", err)
	}
	decoder := netcdf.NewDecoder(cfg.GoesVariable, logger)
	sondaClient := sonda.NewClient(cfg.SondaBaseURL, cfg.SondaDataType, logger, metrics)

	store := audit.Open(cfg.AuditDB, logger)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("audit store close error", "error", err)
		}
	}()

	p := pipeline.New(cfg, noaaClient, decoder, sondaClient, store, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runErr := runStage(ctx, p, stage)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("pipeline finished", "stage", stage)
	return nil
}

func runStage(ctx context.Context, p *pipeline.Pipeline, stage string) error {
	switch stage {
	case "goes":
		return p.RunSatellite(ctx)
	case "sonda":
		return p.RunGround(ctx)
	case "features":
		return p.RunFeatures(ctx)
	case "all":
		return p.Run(ctx)
	default:
		return fmt.Errorf("unknown stage %q (want goes, sonda, features, or all)", stage)
	}
}
