// Command quicklook renders a heatmap PNG of an extracted channel series so
// a run's output can be eyeballed without loading the CSV anywhere.
//
// Usage:
//
//	go run ./cmd/quicklook -channel C01
//	go run ./cmd/quicklook -channel C13 -out /tmp/c13.png -cell 12
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JvCastelo/masters-project/internal/adapter/export"
	"github.com/JvCastelo/masters-project/internal/adapter/render"
	"github.com/JvCastelo/masters-project/internal/config"
)

func main() {
	configPath := flag.String("config", "", "pipeline config file (default: CONFIG_PATH or configs/pipeline.yaml)")
	channel := flag.String("channel", "", "channel series to render (e.g. C01)")
	out := flag.String("out", "", "output PNG path (default: next to the CSV)")
	cellSize := flag.Int("cell", 0, "heatmap cell size in pixels (0 selects the default)")
	flag.Parse()

	if *channel == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(*configPath, *channel, *out, *cellSize); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, channel, out string, cellSize int) error {
	var cfg *config.Config
	var err error
	if configPath == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFile(configPath)
	}
	if err != nil {
		return err
	}

	csvPath := filepath.Join(cfg.RawGoesDir(),
		export.ChannelCSVName(channel, cfg.StartDate, cfg.EndDate, cfg.Station.Name))
	series, err := export.ReadChannelCSV(csvPath, channel)
	if err != nil {
		return err
	}

	if out == "" {
		out = csvPath[:len(csvPath)-len(".csv")] + ".png"
	}

	r, err := render.NewRenderer(cellSize)
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck // font face cleanup

	title := fmt.Sprintf("%s %s, %s to %s", cfg.Station.Name, channel,
		cfg.StartDate.Format(config.DateLayout), cfg.EndDate.Format(config.DateLayout))
	img, err := r.Heatmap(series, title)
	if err != nil {
		return err
	}
	if err := render.WritePNG(out, img); err != nil {
		return err
	}

	fmt.Printf("wrote %s (%d scans, %d columns)\n", out, len(series.Records), len(series.Columns))
	return nil
}
