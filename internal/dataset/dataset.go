// Package dataset reads evaluation datasets and writes per-image results
// in the JSON layout used by the dataset viewer.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	deteval "github.com/jamesainslie/go-deteval"
	"github.com/jamesainslie/go-deteval/geometry"
	"github.com/jamesainslie/go-deteval/match"
)

// ErrMissingConfidence indicates a model box without a confidence score.
var ErrMissingConfidence = errors.New("model box has no confidence")

type fileBox struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	Class      string   `json:"class"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type fileImage struct {
	ID               string    `json:"id"`
	Name             string    `json:"name,omitempty"`
	GroundTruthBoxes []fileBox `json:"groundTruthBoxes"`
	ModelBoxes       []fileBox `json:"modelBoxes,omitempty"`
}

type fileDataset struct {
	Images []fileImage `json:"images"`
}

// Load reads a dataset file. See Decode for the accepted layout.
func Load(path string) (deteval.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return deteval.Dataset{}, fmt.Errorf("opening dataset: %w", err)
	}
	defer func() { _ = f.Close() }() // Read-only; close error carries no data loss

	ds, err := Decode(f)
	if err != nil {
		return deteval.Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Decode parses a dataset from r. The document is either an object with
// an "images" array or a bare array of images. Every image needs an id;
// every model box needs a confidence.
func Decode(r io.Reader) (deteval.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return deteval.Dataset{}, fmt.Errorf("reading dataset: %w", err)
	}

	var images []fileImage
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &images)
	} else {
		var doc fileDataset
		err = json.Unmarshal(data, &doc)
		images = doc.Images
	}
	if err != nil {
		return deteval.Dataset{}, fmt.Errorf("parsing dataset: %w", err)
	}

	ds := deteval.Dataset{Images: make([]deteval.Image, 0, len(images))}
	seen := make(map[string]struct{}, len(images))
	for i, fi := range images {
		if fi.ID == "" {
			return deteval.Dataset{}, fmt.Errorf("image %d has no id", i)
		}
		if _, dup := seen[fi.ID]; dup {
			return deteval.Dataset{}, fmt.Errorf("%w: %q", deteval.ErrDuplicateImage, fi.ID)
		}
		seen[fi.ID] = struct{}{}

		img := deteval.Image{
			ID:          fi.ID,
			GroundTruth: make([]match.GroundTruth, len(fi.GroundTruthBoxes)),
			Predictions: make([]match.Prediction, len(fi.ModelBoxes)),
		}
		for k, b := range fi.GroundTruthBoxes {
			img.GroundTruth[k] = match.GroundTruth{Box: b.box(), Class: b.Class}
		}
		for k, b := range fi.ModelBoxes {
			if b.Confidence == nil {
				return deteval.Dataset{}, fmt.Errorf("image %q box %d: %w", fi.ID, k, ErrMissingConfidence)
			}
			img.Predictions[k] = match.Prediction{Box: b.box(), Class: b.Class, Confidence: *b.Confidence}
		}
		ds.Images = append(ds.Images, img)
	}
	return ds, nil
}

func (b fileBox) box() geometry.Box {
	return geometry.Box{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}
