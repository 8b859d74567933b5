package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	deteval "github.com/jamesainslie/go-deteval"
	"github.com/jamesainslie/go-deteval/internal/config"
	"github.com/jamesainslie/go-deteval/internal/dataset"
	"github.com/jamesainslie/go-deteval/internal/snapshot"
	"github.com/jamesainslie/go-deteval/internal/sweep"
	"github.com/jamesainslie/go-deteval/match"
)

// Set by ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	env, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var (
		datasetPath  = flag.String("dataset", "", "Path to dataset JSON file (required)")
		iou          = flag.Float64("iou", env.IoUThreshold, "IoU threshold for matching")
		score        = flag.Float64("score", env.ScoreThreshold, "Minimum prediction confidence")
		mode         = flag.String("mode", env.Mode, "Matching mode: strict, iou or class")
		classFilter  = flag.String("classes", strings.Join(env.ClassFilter, ","), "Comma-separated classes to evaluate (default all)")
		vocabulary   = flag.String("vocabulary", strings.Join(env.Classes, ","), "Comma-separated class vocabulary to report")
		workers      = flag.Int("workers", env.Workers, "Images matched concurrently")
		outPath      = flag.String("out", "", "Write per-image results JSON to this file")
		snapshotPath = flag.String("snapshot", "", "Write a binary snapshot of the run to this file")
		comparePath  = flag.String("compare", "", "Compare the run against a saved snapshot")
		doSweep      = flag.Bool("sweep", false, "Run an IoU threshold sweep")
		sweepMin     = flag.Float64("sweep-min", 0.5, "Sweep minimum IoU threshold")
		sweepMax     = flag.Float64("sweep-max", 0.95, "Sweep maximum IoU threshold")
		sweepStep    = flag.Float64("sweep-step", 0.05, "Sweep step size")
		showVersion  = flag.Bool("version", false, "Print version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("deteval %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	if *datasetPath == "" {
		fmt.Fprintln(os.Stderr, "error: -dataset required")
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: env.LogLevel}))

	ds, err := dataset.Load(*datasetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading dataset: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d images from %s\n\n", len(ds.Images), *datasetPath)

	m, err := match.ParseMode(*mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg := deteval.Config{
		IoUThreshold:   *iou,
		ScoreThreshold: *score,
		Mode:           m,
		ClassFilter:    config.SplitList(*classFilter),
	}

	ev := deteval.New(
		deteval.WithWorkers(*workers),
		deteval.WithClasses(config.SplitList(*vocabulary)...),
		deteval.WithLogger(logger),
	)

	ctx := context.Background()

	if *doSweep {
		runSweep(ctx, ev, ds, cfg, *sweepMin, *sweepMax, *sweepStep)
		return
	}

	res, err := ev.Run(ctx, ds, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error evaluating: %v\n", err)
		os.Exit(1)
	}
	printMetrics(res, cfg)

	if *outPath != "" {
		if err := dataset.WriteResults(*outPath, res); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote per-image results to %s\n", *outPath)
	}

	if *comparePath != "" {
		prev, err := snapshot.Open(*comparePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		printDiff(snapshot.Diff(prev, res))
	}

	if *snapshotPath != "" {
		if err := snapshot.Save(*snapshotPath, res); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote snapshot to %s\n", *snapshotPath)
	}
}

func runSweep(ctx context.Context, ev *deteval.Evaluator, ds deteval.Dataset, cfg deteval.Config, lower, upper, step float64) {
	thresholds := sweep.Thresholds(lower, upper, step)

	fmt.Printf("IoU Sweep Results (mode=%s, score>=%.2f)\n", cfg.Mode, cfg.ScoreThreshold)
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("%-8s %-8s %-8s %-8s %-8s\n", "IoU", "Prec", "Rec", "F1", "TP")

	results, err := sweep.Run(ctx, ev, ds, cfg, thresholds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error during sweep: %v\n", err)
		os.Exit(1)
	}

	// Print sorted by threshold for readability
	byThreshold := append([]sweep.Result(nil), results...)
	sort.Slice(byThreshold, func(i, j int) bool {
		return byThreshold[i].IoUThreshold < byThreshold[j].IoUThreshold
	})
	for _, r := range byThreshold {
		fmt.Printf("%-8.2f %-8.3f %-8.3f %-8.3f %-8d\n",
			r.IoUThreshold, r.Metrics.Precision, r.Metrics.Recall, r.Metrics.F1Score, r.Metrics.TruePositives)
	}

	fmt.Println(strings.Repeat("-", 50))
	if len(results) > 0 {
		best := results[0]
		fmt.Printf("Best F1: %.3f at IoU %.2f\n", best.Metrics.F1Score, best.IoUThreshold)
	}
}

func printMetrics(res *deteval.Result, cfg deteval.Config) {
	m := res.Metrics
	fmt.Printf("Evaluation (mode=%s, iou>=%.2f, score>=%.2f)\n", cfg.Mode, cfg.IoUThreshold, cfg.ScoreThreshold)
	fmt.Printf("Precision: %.3f  Recall: %.3f  F1: %.3f  mAP50: %.3f  mAP75: %.3f\n",
		m.Precision, m.Recall, m.F1Score, m.MAP50, m.MAP75)
	fmt.Printf("(TP: %d, FP: %d, FN: %d)\n\n", m.TruePositives, m.FalsePositives, m.FalseNegatives)

	fmt.Printf("%-16s %-6s %-6s %-6s %-8s %-8s %-8s %-8s\n", "Class", "TP", "FP", "FN", "Prec", "Rec", "AP50", "AP75")
	fmt.Println(strings.Repeat("-", 72))
	for _, cm := range m.PerClassMetrics {
		fmt.Printf("%-16s %-6d %-6d %-6d %-8.3f %-8.3f %-8.3f %-8.3f\n",
			cm.ClassName, cm.TP, cm.FP, cm.FN, cm.Precision, cm.Recall, cm.AP50, cm.AP75)
	}
}

func printDiff(changes []snapshot.Change) {
	fmt.Println()
	if len(changes) == 0 {
		fmt.Println("No per-image changes against snapshot")
		return
	}
	fmt.Printf("%d images changed against snapshot\n", len(changes))
	for _, c := range changes {
		fmt.Printf("  %-24s %-8s TP %d->%d  FP %d->%d  FN %d->%d\n",
			c.ImageID, c.Kind, c.Before.TP, c.After.TP, c.Before.FP, c.After.FP, c.Before.FN, c.After.FN)
	}
}
