// Package deteval evaluates object-detection predictions against ground
// truth.
//
// # Quick Start
//
//	ev := deteval.New(deteval.WithWorkers(8))
//
//	res, err := ev.Run(ctx, dataset, deteval.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("P=%.2f R=%.2f mAP50=%.2f\n",
//	    res.Metrics.Precision, res.Metrics.Recall, res.Metrics.MAP50)
//
// # Matching
//
// Each image is matched independently. Predictions below the score
// threshold are discarded, then predictions are greedily assigned to
// ground truth in descending confidence order. See the match package for
// the exact tie-break rules and matching modes.
//
// # Metrics
//
// Precision, recall and F1 are micro-averaged over all classes at the
// configured IoU threshold. mAP50 and mAP75 are always computed from
// separate strict matching passes at IoU 0.50 and 0.75, whatever the
// configured mode.
//
// # Thread Safety
//
// Evaluator is safe for concurrent use and holds no per-run state. A run
// processes images on up to WithWorkers goroutines; the result does not
// depend on the worker count.
package deteval
