package match

import (
	"cmp"
	"slices"

	"github.com/jamesainslie/go-deteval/geometry"
)

// Match classifies the boxes of one image.
//
// Predictions below p.ScoreThreshold, and boxes of either side outside a
// non-empty p.ClassFilter, are dropped first and never appear in the
// output. The remaining predictions are visited in descending confidence
// (ties: higher best eligible IoU, then input order). Each takes the
// unmatched eligible ground truth with the highest IoU (ties: lowest
// input index). Greedy assignment is intentional; it reproduces the
// reference detection tooling.
//
// The output lists ground-truth results in input order followed by
// prediction results in input order. Degenerate boxes are never eligible.
func Match(gts []GroundTruth, preds []Prediction, p Params) []Result {
	gtKept := keptGroundTruth(gts, p)
	predKept := keptPredictions(preds, p)
	if len(gtKept) == 0 && len(predKept) == 0 {
		return []Result{}
	}

	// Row j holds prediction j against every kept ground truth.
	ious := make([][]float64, len(predKept))
	eligible := make([][]bool, len(predKept))
	bestIoU := make([]float64, len(predKept))
	for j, pi := range predKept {
		pred := preds[pi]
		ious[j] = make([]float64, len(gtKept))
		eligible[j] = make([]bool, len(gtKept))
		for i, gi := range gtKept {
			gt := gts[gi]
			iou := geometry.IoU(gt.Box, pred.Box)
			ious[j][i] = iou
			if isEligible(gt, pred, iou, p) {
				eligible[j][i] = true
				if iou > bestIoU[j] {
					bestIoU[j] = iou
				}
			}
		}
	}

	order := make([]int, len(predKept))
	for j := range order {
		order[j] = j
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(preds[predKept[b]].Confidence, preds[predKept[a]].Confidence); c != 0 {
			return c
		}
		if c := cmp.Compare(bestIoU[b], bestIoU[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	gtPair := filled(len(gtKept), -1)
	predPair := filled(len(predKept), -1)
	for _, j := range order {
		chosen := -1
		chosenIoU := -1.0
		for i := range gtKept {
			if gtPair[i] >= 0 || !eligible[j][i] {
				continue
			}
			if ious[j][i] > chosenIoU {
				chosen, chosenIoU = i, ious[j][i]
			}
		}
		if chosen >= 0 {
			gtPair[chosen] = j
			predPair[j] = chosen
		}
	}

	results := make([]Result, 0, len(gtKept)+len(predKept))
	for i, gi := range gtKept {
		gt := gts[gi]
		r := Result{
			Origin: FromGroundTruth,
			Index:  gi,
			Box:    gt.Box.Normalize(),
			Class:  gt.Class,
			Type:   FalseNegative,
			Pair:   -1,
		}
		if j := gtPair[i]; j >= 0 {
			r.Type = TruePositive
			r.IoU = ious[j][i]
			r.Pair = predKept[j]
			r.PairClass = preds[predKept[j]].Class
		}
		results = append(results, r)
	}
	for j, pi := range predKept {
		pred := preds[pi]
		r := Result{
			Origin:     FromPrediction,
			Index:      pi,
			Box:        pred.Box.Normalize(),
			Class:      pred.Class,
			Confidence: pred.Confidence,
			Type:       FalsePositive,
			Pair:       -1,
		}
		if i := predPair[j]; i >= 0 {
			r.Type = TruePositive
			r.IoU = ious[j][i]
			r.Pair = gtKept[i]
			r.PairClass = gts[gtKept[i]].Class
		}
		results = append(results, r)
	}
	return results
}

func isEligible(gt GroundTruth, pred Prediction, iou float64, p Params) bool {
	if gt.Degenerate() || pred.Degenerate() {
		return false
	}
	switch p.Mode {
	case ModeIoU:
		return iou >= p.IoUThreshold
	case ModeClass:
		return gt.Class == pred.Class
	default:
		return gt.Class == pred.Class && iou >= p.IoUThreshold
	}
}

func keptGroundTruth(gts []GroundTruth, p Params) []int {
	kept := make([]int, 0, len(gts))
	for i, gt := range gts {
		if inFilter(gt.Class, p.ClassFilter) {
			kept = append(kept, i)
		}
	}
	return kept
}

func keptPredictions(preds []Prediction, p Params) []int {
	kept := make([]int, 0, len(preds))
	for i, pred := range preds {
		// Written negated so NaN confidences are dropped.
		if !(pred.Confidence >= p.ScoreThreshold) {
			continue
		}
		if inFilter(pred.Class, p.ClassFilter) {
			kept = append(kept, i)
		}
	}
	return kept
}

func inFilter(class string, filter map[string]struct{}) bool {
	if len(filter) == 0 {
		return true
	}
	_, ok := filter[class]
	return ok
}

func filled(n, v int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = v
	}
	return s
}
