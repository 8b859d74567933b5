//go:build ignore

// Generate a synthetic evaluation dataset for load and regression runs.
// Each image gets ground-truth boxes from the fixed class vocabulary and
// predictions that are jittered copies, class swaps, misses and spurious
// boxes, all from a fixed seed.
// Usage: go run ./scripts/gen-synthetic.go [-images 500] [-out testdata/synthetic.json]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
)

var classes = []string{
	"RadarSystems", "Vehicles", "Missiles", "ArtilleryGuns", "Tanks",
	"Camo", "Radar2", "Missile2", "Tank2", "Vehicle2", "99",
}

type box struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	Class      string   `json:"class"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type image struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	GroundTruthBoxes []box  `json:"groundTruthBoxes"`
	ModelBoxes       []box  `json:"modelBoxes"`
}

func main() {
	n := flag.Int("images", 500, "Number of images")
	out := flag.String("out", "testdata/synthetic.json", "Output file")
	flag.Parse()

	rng := rand.New(rand.NewPCG(42, 1024))

	images := make([]image, *n)
	var gtTotal, predTotal int
	for i := range images {
		img := image{
			ID:   fmt.Sprintf("%d", i+1),
			Name: fmt.Sprintf("satellite_%04d.jpg", i+1),
		}
		for k := 0; k < 1+rng.IntN(6); k++ {
			gt := box{
				X:      round(rng.Float64() * 80),
				Y:      round(rng.Float64() * 80),
				Width:  round(5 + rng.Float64()*15),
				Height: round(5 + rng.Float64()*15),
				Class:  classes[rng.IntN(len(classes))],
			}
			img.GroundTruthBoxes = append(img.GroundTruthBoxes, gt)

			switch r := rng.Float64(); {
			case r < 0.10:
				// missed
			case r < 0.20:
				p := jitter(rng, gt, 1)
				p.Class = classes[rng.IntN(len(classes))]
				img.ModelBoxes = append(img.ModelBoxes, p)
			default:
				img.ModelBoxes = append(img.ModelBoxes, jitter(rng, gt, 1+rng.Float64()*3))
			}
		}
		for k := 0; k < rng.IntN(3); k++ {
			conf := round(rng.Float64() * 0.7)
			img.ModelBoxes = append(img.ModelBoxes, box{
				X:          round(rng.Float64() * 90),
				Y:          round(rng.Float64() * 90),
				Width:      round(3 + rng.Float64()*8),
				Height:     round(3 + rng.Float64()*8),
				Class:      classes[rng.IntN(len(classes))],
				Confidence: &conf,
			})
		}
		gtTotal += len(img.GroundTruthBoxes)
		predTotal += len(img.ModelBoxes)
		images[i] = img
	}

	data, err := json.MarshalIndent(map[string]any{"images": images}, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *out, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s (%d images, %d ground truth, %d predictions)\n", *out, len(images), gtTotal, predTotal)
}

// jitter shifts and resizes b by up to spread units and assigns a
// confidence that falls as the spread grows.
func jitter(rng *rand.Rand, b box, spread float64) box {
	d := func() float64 { return (rng.Float64()*2 - 1) * spread }
	conf := round(max(0.05, min(0.99, 0.95-spread*0.12+d()*0.05)))
	return box{
		X:          round(b.X + d()),
		Y:          round(b.Y + d()),
		Width:      round(max(1, b.Width+d())),
		Height:     round(max(1, b.Height+d())),
		Class:      b.Class,
		Confidence: &conf,
	}
}

func round(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
