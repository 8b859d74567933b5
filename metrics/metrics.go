package metrics

import (
	"slices"

	"github.com/samber/lo"

	"github.com/jamesainslie/go-deteval/match"
)

// ClassMetrics holds the results for one class.
type ClassMetrics struct {
	ClassName string  `json:"className"`
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	FN        int     `json:"fn"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1Score"`
	AP50      float64 `json:"ap50"`
	AP75      float64 `json:"ap75"`
}

// Metrics holds dataset-level results. Precision and recall are
// micro-averaged over all classes.
type Metrics struct {
	TruePositives   int            `json:"tp"`
	FalsePositives  int            `json:"fp"`
	FalseNegatives  int            `json:"fn"`
	Precision       float64        `json:"precision"`
	Recall          float64        `json:"recall"`
	F1Score         float64        `json:"f1Score"`
	MAP50           float64        `json:"mAP50"`
	MAP75           float64        `json:"mAP75"`
	PerClassMetrics []ClassMetrics `json:"perClassMetrics"`
}

// Scores derives precision, recall and F1 from counts. Each is 0 when
// its denominator is 0.
func Scores(c match.Counts) (precision, recall, f1 float64) {
	if c.TP+c.FP > 0 {
		precision = float64(c.TP) / float64(c.TP+c.FP)
	}
	if c.TP+c.FN > 0 {
		recall = float64(c.TP) / float64(c.TP+c.FN)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// Summarize builds Metrics from three tallies of the same images:
// confusion at the configured IoU threshold, and the fixed 0.50 and 0.75
// passes used for mAP. Every class in universe is reported, sorted by
// name, even with no occurrences.
func Summarize(confusion, at50, at75 *Tally, universe []string) Metrics {
	classes := lo.Uniq(universe)
	slices.Sort(classes)

	m := Metrics{PerClassMetrics: make([]ClassMetrics, 0, len(classes))}

	var total match.Counts
	var ap50, ap75 []float64
	for _, name := range classes {
		c := confusion.Counts(name)
		total = total.Add(c)

		cm := ClassMetrics{ClassName: name, TP: c.TP, FP: c.FP, FN: c.FN}
		cm.Precision, cm.Recall, cm.F1 = Scores(c)

		if ap, ok := at50.AveragePrecision(name); ok {
			cm.AP50 = ap
			ap50 = append(ap50, ap)
		}
		if ap, ok := at75.AveragePrecision(name); ok {
			cm.AP75 = ap
			ap75 = append(ap75, ap)
		}
		m.PerClassMetrics = append(m.PerClassMetrics, cm)
	}

	m.TruePositives, m.FalsePositives, m.FalseNegatives = total.TP, total.FP, total.FN
	m.Precision, m.Recall, m.F1Score = Scores(total)
	m.MAP50 = mean(ap50)
	m.MAP75 = mean(ap75)
	return m
}

// Aggregate tallies per-image result lists and summarizes them. The
// three arguments must describe the same images.
func Aggregate(confusion, at50, at75 [][]match.Result, universe []string) Metrics {
	return Summarize(fold(confusion), fold(at50), fold(at75), universe)
}

func fold(perImage [][]match.Result) *Tally {
	t := NewTally()
	for _, results := range perImage {
		t.Add(results)
	}
	return t
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return lo.Sum(xs) / float64(len(xs))
}
