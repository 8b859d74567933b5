// Package match assigns model predictions to ground-truth boxes for a
// single image and classifies every box as TP, FP or FN.
package match

import (
	"fmt"

	"github.com/jamesainslie/go-deteval/geometry"
)

// GroundTruth is an annotated reference box.
type GroundTruth struct {
	geometry.Box
	Class string `json:"class"`
}

// Prediction is a model-produced box with a confidence in [0, 1].
type Prediction struct {
	geometry.Box
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Mode controls which (ground truth, prediction) pairs may be matched.
type Mode string

const (
	// ModeStrict requires equal classes and IoU at or above the threshold.
	ModeStrict Mode = "strict"
	// ModeIoU requires IoU at or above the threshold and ignores class.
	ModeIoU Mode = "iou"
	// ModeClass requires equal classes and ignores the IoU threshold.
	ModeClass Mode = "class"
)

// Valid reports whether m is a known matching mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeStrict, ModeIoU, ModeClass:
		return true
	}
	return false
}

// ParseMode converts a user-supplied string into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown matching mode %q", s)
	}
	return m, nil
}

// Params are the per-call matching parameters. The caller validates them.
type Params struct {
	IoUThreshold   float64
	ScoreThreshold float64
	Mode           Mode
	// ClassFilter restricts both sides to these classes. Empty keeps all.
	ClassFilter map[string]struct{}
}

// Outcome is the confusion category of a single box.
type Outcome uint8

const (
	TruePositive Outcome = iota + 1
	FalsePositive
	FalseNegative
)

func (o Outcome) String() string {
	switch o {
	case TruePositive:
		return "TP"
	case FalsePositive:
		return "FP"
	case FalseNegative:
		return "FN"
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// MarshalText encodes the outcome as "TP", "FP" or "FN".
func (o Outcome) MarshalText() ([]byte, error) {
	switch o {
	case TruePositive, FalsePositive, FalseNegative:
		return []byte(o.String()), nil
	}
	return nil, fmt.Errorf("invalid outcome %d", uint8(o))
}

// Origin says which input list a Result came from.
type Origin uint8

const (
	FromGroundTruth Origin = iota + 1
	FromPrediction
)

func (o Origin) String() string {
	switch o {
	case FromGroundTruth:
		return "gt"
	case FromPrediction:
		return "pred"
	}
	return fmt.Sprintf("Origin(%d)", uint8(o))
}

// Result is one classified box.
//
// Ground-truth results are TP or FN; prediction results are TP or FP.
// For a TP, IoU holds the overlap with the paired box, Pair is the index
// of that box in the other input list and PairClass is its class.
// Otherwise IoU is 0 and Pair is -1.
type Result struct {
	Origin     Origin
	Index      int
	Box        geometry.Box
	Class      string
	Confidence float64
	Type       Outcome
	IoU        float64
	Pair       int
	PairClass  string
}

// Matched reports whether r is a true positive.
func (r Result) Matched() bool {
	return r.Type == TruePositive
}

// Counts is a TP/FP/FN tally.
type Counts struct {
	TP int
	FP int
	FN int
}

// Add returns the element-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{TP: c.TP + o.TP, FP: c.FP + o.FP, FN: c.FN + o.FN}
}

// Count tallies one result list. A TP pair contributes a single TP even
// though both of its boxes appear in the list.
func Count(results []Result) Counts {
	var c Counts
	for _, r := range results {
		switch {
		case r.Type == TruePositive && r.Origin == FromPrediction:
			c.TP++
		case r.Type == FalsePositive:
			c.FP++
		case r.Type == FalseNegative:
			c.FN++
		}
	}
	return c
}
