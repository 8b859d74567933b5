package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	deteval "github.com/jamesainslie/go-deteval"
	"github.com/jamesainslie/go-deteval/match"
	"github.com/jamesainslie/go-deteval/metrics"
)

// MatchedBox is one classified box as rendered by the viewer.
type MatchedBox struct {
	Source     string        `json:"source"` // "gt" or "pred"
	Index      int           `json:"index"`
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	Width      float64       `json:"width"`
	Height     float64       `json:"height"`
	Class      string        `json:"class"`
	Confidence *float64      `json:"confidence,omitempty"`
	MatchType  match.Outcome `json:"matchType"`
	IoU        *float64      `json:"iou,omitempty"`
	Pair       *int          `json:"pair,omitempty"`
}

// ImageResult holds one image's classified boxes.
type ImageResult struct {
	ID    string       `json:"id"`
	Boxes []MatchedBox `json:"boxes"`
}

// Report is the JSON document written by WriteResults.
type Report struct {
	Metrics metrics.Metrics `json:"metrics"`
	Images  []ImageResult   `json:"images"`
}

// NewReport converts a run result to its JSON form, images in dataset
// order.
func NewReport(res *deteval.Result) Report {
	rep := Report{
		Metrics: res.Metrics,
		Images:  make([]ImageResult, 0, len(res.ImageIDs)),
	}
	for _, id := range res.ImageIDs {
		results := res.PerImage[id]
		ir := ImageResult{ID: id, Boxes: make([]MatchedBox, len(results))}
		for i, r := range results {
			ir.Boxes[i] = newMatchedBox(r)
		}
		rep.Images = append(rep.Images, ir)
	}
	return rep
}

func newMatchedBox(r match.Result) MatchedBox {
	mb := MatchedBox{
		Source:    r.Origin.String(),
		Index:     r.Index,
		X:         r.Box.X,
		Y:         r.Box.Y,
		Width:     r.Box.Width,
		Height:    r.Box.Height,
		Class:     r.Class,
		MatchType: r.Type,
	}
	if r.Origin == match.FromPrediction {
		c := r.Confidence
		mb.Confidence = &c
	}
	if r.Matched() {
		iou, pair := r.IoU, r.Pair
		mb.IoU = &iou
		mb.Pair = &pair
	}
	return mb
}

// EncodeResults writes res to w as indented JSON.
func EncodeResults(w io.Writer, res *deteval.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewReport(res)); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return nil
}

// WriteResults writes res to path, replacing any existing file.
func WriteResults(path string, res *deteval.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing results file: %w", cerr)
		}
	}()
	return EncodeResults(f, res)
}
