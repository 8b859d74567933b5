// Package sweep evaluates a dataset across a range of IoU thresholds.
package sweep

import (
	"context"
	"fmt"
	"math"
	"sort"

	deteval "github.com/jamesainslie/go-deteval"
	"github.com/jamesainslie/go-deteval/metrics"
)

// Result holds metrics for one IoU threshold.
type Result struct {
	IoUThreshold float64
	Metrics      metrics.Metrics
}

// Thresholds generates threshold values from min to max inclusive with
// the given step. Values are rounded to 1e-9 so that accumulated float
// error does not drop the last step.
func Thresholds(min, max, step float64) []float64 {
	if step <= 0 || max < min {
		return nil
	}
	var thresholds []float64
	n := int(math.Floor((max-min)/step + 1e-9))
	for i := 0; i <= n; i++ {
		t := math.Round((min+float64(i)*step)*1e9) / 1e9
		thresholds = append(thresholds, t)
	}
	return thresholds
}

// Run evaluates ds once per threshold, keeping every other field of cfg,
// and returns results sorted by F1 descending. Ties keep ascending
// threshold order.
func Run(ctx context.Context, ev *deteval.Evaluator, ds deteval.Dataset, cfg deteval.Config, thresholds []float64) ([]Result, error) {
	results := make([]Result, 0, len(thresholds))
	for _, t := range thresholds {
		c := cfg
		c.IoUThreshold = t

		res, err := ev.Run(ctx, ds, c)
		if err != nil {
			return nil, fmt.Errorf("iou %.3f: %w", t, err)
		}
		results = append(results, Result{IoUThreshold: t, Metrics: res.Metrics})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Metrics.F1Score != results[j].Metrics.F1Score {
			return results[i].Metrics.F1Score > results[j].Metrics.F1Score
		}
		return results[i].IoUThreshold < results[j].IoUThreshold
	})

	return results, nil
}
