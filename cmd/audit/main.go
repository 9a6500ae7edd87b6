// Command audit prints the recorded pipeline run history: what ran, over
// which range, how many rows came out, and how the counts moved against the
// previous run of the same kind.
//
// Usage:
//
//	go run ./cmd/audit                    # newest runs, every kind
//	go run ./cmd/audit -kind goes -n 20   # satellite runs for the configured station
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/JvCastelo/masters-project/internal/audit"
	"github.com/JvCastelo/masters-project/internal/config"
	"github.com/JvCastelo/masters-project/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "pipeline config file (default: CONFIG_PATH or configs/pipeline.yaml)")
	kind := flag.String("kind", "", "filter by run kind: goes, sonda, or features (default: all kinds)")
	station := flag.String("station", "", "station name for -kind queries (default: the configured station)")
	limit := flag.Int("n", 20, "number of runs to show")
	flag.Parse()

	if err := run(*configPath, *kind, *station, *limit); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, kind, station string, limit int) error {
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

	switch kind {
	case "", audit.KindSatellite, audit.KindGround, audit.KindFeatures:
	default:
		return fmt.Errorf("unknown kind %q (want goes, sonda, or features)", kind)
	}
	if station == "" {
		station = cfg.Station.Name
	}

	if _, err := os.Stat(cfg.AuditDB); err != nil {
		return fmt.Errorf("audit database: %w", err)
	}

	logger := observability.NewLogger("error", "text")
	store := audit.Open(cfg.AuditDB, logger)
	defer store.Close() //nolint:errcheck // read-only usage

	ctx := context.Background()
	var runs []audit.Run
	if kind == "" {
		runs, err = store.ListRuns(ctx, limit)
	} else {
		runs, err = store.RunHistory(ctx, kind, station, limit)
	}
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	printRuns(runs)
	return nil
}

// printRuns renders the history newest-first. DELTA compares each run's row
// count to the previous run of the same kind, station, and channel.
func printRuns(runs []audit.Run) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSTATION\tCHANNEL\tRANGE\tROWS\tDELTA\tTOOK\tFINISHED\tNOTES")

	for i := range runs {
		r := &runs[i]
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Kind, r.Station, orDash(r.Channel), rangeOf(r),
			humanize.Comma(r.Rows), deltaFor(runs, i),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			humanize.Time(r.FinishedAt), notesFor(r))
	}
	w.Flush() //nolint:errcheck // stdout
}

func rangeOf(r *audit.Run) string {
	return r.RangeStart.Format(config.DateLayout) + ".." + r.RangeEnd.Format(config.DateLayout)
}

// deltaFor finds the next older run with the same kind, station, and
// channel and returns the row count movement against it.
func deltaFor(runs []audit.Run, i int) string {
	r := &runs[i]
	for j := i + 1; j < len(runs); j++ {
		prev := &runs[j]
		if prev.Kind != r.Kind || prev.Station != r.Station || prev.Channel != r.Channel {
			continue
		}
		return fmt.Sprintf("%+d", r.Rows-prev.Rows)
	}
	return "-"
}

// notesFor summarizes the counters that matter for the run's kind.
func notesFor(r *audit.Run) string {
	var parts []string
	add := func(label string, n int64) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", label, n))
		}
	}

	switch r.Kind {
	case audit.KindSatellite:
		add("oob", r.DroppedOutOfBounds)
		add("dup", r.Duplicates)
		add("fail", r.Failures)
	case audit.KindGround:
		add("dup", r.Duplicates)
		add("offgrid", r.OffGrid)
		add("outrange", r.OutOfRange)
	case audit.KindFeatures:
		add("nochan", r.DroppedMissingChannel)
		add("noground", r.DroppedMissingGround)
	}

	if len(parts) == 0 {
		return "clean"
	}
	return strings.Join(parts, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
