package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/chrissnell/sensorcal/internal/runstore"
)

func main() {
	var (
		dbPath = flag.String("db", "sensorcal-runs.db", "Path to the run store written by sensorcal")
		runID  = flag.String("run", "", "Run ID to report on (default: latest run)")
	)
	flag.Parse()

	ctx := context.Background()
	store, err := runstore.Open(ctx, *dbPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	var run runstore.Run
	if *runID != "" {
		run, err = store.Run(ctx, *runID)
	} else {
		run, err = store.LatestRun(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to find run: %v\n", err)
		os.Exit(1)
	}

	scores, err := store.Scores(ctx, run.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read model scores: %v\n", err)
		os.Exit(1)
	}
	printReport(os.Stdout, run, scores)
}

func printReport(w io.Writer, run runstore.Run, scores []runstore.Score) {
	fmt.Fprintf(w, "Calibration Run %s\n", run.ID)
	fmt.Fprintf(w, "==========================================\n\n")
	fmt.Fprintf(w, "  Output name: %s\n", run.Name)
	fmt.Fprintf(w, "  Started:     %s\n", run.StartedAt.Format(time.RFC3339))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  Finished:    %s (%s)\n", run.FinishedAt.Format(time.RFC3339), run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(w, "  Status:      %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "  Error:       %s\n", run.Error)
	}
	fmt.Fprintln(w)

	if len(scores) == 0 {
		fmt.Fprintf(w, "No models were trained in this run.\n")
		return
	}

	fmt.Fprintf(w, "Model Comparison\n")
	fmt.Fprintf(w, "================\n\n")
	fmt.Fprintf(w, "%-10s | %-22s | %8s | %10s | %7s | %6s | %s\n", "Quantity", "Model", "R²", "RMSE", "Train", "Test", "Selected")
	fmt.Fprintf(w, "-----------+------------------------+----------+------------+---------+--------+---------\n")
	for _, s := range scores {
		mark := ""
		if s.Selected {
			mark = "*"
		}
		fmt.Fprintf(w, "%-10s | %-22s | %8s | %10s | %7d | %6d | %s\n",
			s.Quantity, s.Model, formatScore(s.R2, 4), formatScore(s.RMSE, 3), s.TrainSize, s.TestSize, mark)
	}
	fmt.Fprintln(w)
}

func formatScore(v float64, prec int) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", prec, v)
}
