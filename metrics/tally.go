// Package metrics folds per-image match results into detection metrics.
package metrics

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/jamesainslie/go-deteval/match"
)

// Detection is one ranked prediction on a class's precision-recall curve.
type Detection struct {
	Confidence float64
	TP         bool
}

type classTally struct {
	counts      match.Counts
	groundTruth int
	detections  []Detection
}

// Tally accumulates results per class. Merging tallies is associative and
// commutative, so partial tallies from concurrent workers can be combined
// in any order. A zero Tally is not usable; call NewTally.
type Tally struct {
	classes map[string]*classTally
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{classes: make(map[string]*classTally)}
}

func (t *Tally) class(name string) *classTally {
	c, ok := t.classes[name]
	if !ok {
		c = &classTally{}
		t.classes[name] = c
	}
	return c
}

// Add folds one image's results into the tally.
//
// TP and FN are attributed to the ground-truth class and FP to the
// predicted class. A prediction counts as a hit on its own class's
// curve only when it was paired with ground truth of the same class.
func (t *Tally) Add(results []match.Result) {
	for _, r := range results {
		switch r.Origin {
		case match.FromGroundTruth:
			c := t.class(r.Class)
			c.groundTruth++
			if r.Type == match.TruePositive {
				c.counts.TP++
			} else {
				c.counts.FN++
			}
		case match.FromPrediction:
			c := t.class(r.Class)
			if r.Type == match.FalsePositive {
				c.counts.FP++
			}
			c.detections = append(c.detections, Detection{
				Confidence: r.Confidence,
				TP:         r.Matched() && r.PairClass == r.Class,
			})
		}
	}
}

// Merge adds every count and detection of o into t. o is not modified.
func (t *Tally) Merge(o *Tally) {
	for name, oc := range o.classes {
		c := t.class(name)
		c.counts = c.counts.Add(oc.counts)
		c.groundTruth += oc.groundTruth
		c.detections = append(c.detections, oc.detections...)
	}
}

// Classes returns every class seen by the tally, sorted.
func (t *Tally) Classes() []string {
	names := lo.Keys(t.classes)
	slices.Sort(names)
	return names
}

// Counts returns the TP/FP/FN counts of one class.
func (t *Tally) Counts(class string) match.Counts {
	if c, ok := t.classes[class]; ok {
		return c.counts
	}
	return match.Counts{}
}

// GroundTruth returns the number of ground-truth boxes of one class.
func (t *Tally) GroundTruth(class string) int {
	if c, ok := t.classes[class]; ok {
		return c.groundTruth
	}
	return 0
}

// AveragePrecision returns the AP of one class. ok is false when the
// class has no ground truth, in which case it takes no part in mAP.
func (t *Tally) AveragePrecision(class string) (ap float64, ok bool) {
	c, found := t.classes[class]
	if !found || c.groundTruth == 0 {
		return 0, false
	}
	return AveragePrecision(c.detections, c.groundTruth), true
}

// AveragePrecision computes the area under the interpolated
// precision-recall curve of dets against numGT ground-truth boxes.
//
// Detections are ranked by confidence descending. Detections sharing a
// confidence form one operating point, so the result does not depend on
// the order dets arrive in. Precision at each recall level is replaced by
// the maximum precision at that recall or higher before integrating.
func AveragePrecision(dets []Detection, numGT int) float64 {
	if numGT <= 0 || len(dets) == 0 {
		return 0
	}

	ranked := slices.Clone(dets)
	slices.SortFunc(ranked, func(a, b Detection) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})

	var recall, precision []float64
	tp, fp := 0, 0
	for i := 0; i < len(ranked); {
		j := i
		for j < len(ranked) && ranked[j].Confidence == ranked[i].Confidence {
			if ranked[j].TP {
				tp++
			} else {
				fp++
			}
			j++
		}
		recall = append(recall, float64(tp)/float64(numGT))
		precision = append(precision, float64(tp)/float64(tp+fp))
		i = j
	}

	for k := len(precision) - 2; k >= 0; k-- {
		precision[k] = max(precision[k], precision[k+1])
	}

	var ap, prev float64
	for k := range recall {
		ap += (recall[k] - prev) * precision[k]
		prev = recall[k]
	}
	return ap
}
