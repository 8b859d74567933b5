package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	deteval "github.com/jamesainslie/go-deteval"
	"github.com/jamesainslie/go-deteval/geometry"
	"github.com/jamesainslie/go-deteval/match"
)

func sampleDataset() deteval.Dataset {
	return deteval.Dataset{Images: []deteval.Image{
		{
			ID: "a",
			GroundTruth: []match.GroundTruth{
				{Box: geometry.Box{X: 10, Y: 20, Width: 30, Height: 25}, Class: "Tanks"},
				{Box: geometry.Box{X: 60, Y: 60, Width: 10, Height: 10}, Class: "Camo"},
			},
			Predictions: []match.Prediction{
				{Box: geometry.Box{X: 12, Y: 22, Width: 28, Height: 24}, Class: "Tanks", Confidence: 0.9},
				{Box: geometry.Box{X: 0, Y: 80, Width: 5, Height: 5}, Class: "Camo", Confidence: 0.7},
			},
		},
		{ID: "b"},
		{
			ID:          "c",
			Predictions: []match.Prediction{{Box: geometry.Box{X: 1, Y: 1, Width: 1, Height: 1}, Class: "Missiles", Confidence: 0.55}},
		},
	}}
}

func runSample(t *testing.T, ds deteval.Dataset) *deteval.Result {
	t.Helper()
	res, err := deteval.Run(context.Background(), ds, deteval.DefaultConfig())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

func TestEncodeDecode(t *testing.T) {
	want := runSample(t, sampleDataset())

	got, err := Decode(Encode(want))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode(Encode()) mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestSaveOpen(t *testing.T) {
	want := runSample(t, sampleDataset())
	path := filepath.Join(t.TempDir(), "run.snap")

	if err := Save(path, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Error("Open(Save()) mismatch")
	}
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	want := runSample(t, sampleDataset())

	b := protowire.AppendTag(nil, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future field")
	b = append(b, Encode(want)...)

	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Error("unknown field changed decoded result")
	}
}

func TestDecode_Errors(t *testing.T) {
	valid := Encode(runSample(t, sampleDataset()))

	newer := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	newer = protowire.AppendVarint(newer, Version+1)

	wrongType := protowire.AppendTag(nil, fieldMetrics, protowire.VarintType)
	wrongType = protowire.AppendVarint(wrongType, 7)

	tests := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{"truncated", valid[:len(valid)-3], nil},
		{"newer version", newer, ErrVersion},
		{"wrong wire type", wrongType, ErrWireType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			if err == nil {
				t.Fatal("Decode() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	base := sampleDataset()
	before := runSample(t, base)

	if changes := Diff(before, before); len(changes) != 0 {
		t.Fatalf("Diff(same) = %+v, want none", changes)
	}

	// Move the camo prediction onto its ground truth, drop image b and
	// add image d.
	next := sampleDataset()
	next.Images[0].Predictions[1].Box = geometry.Box{X: 60, Y: 60, Width: 10, Height: 10}
	next.Images = []deteval.Image{next.Images[0], next.Images[2], {ID: "d"}}
	after := runSample(t, next)

	changes := Diff(before, after)
	if len(changes) != 3 {
		t.Fatalf("len(Diff()) = %d, want 3: %+v", len(changes), changes)
	}

	c := changes[0]
	if c.ImageID != "a" || c.Kind != Changed {
		t.Errorf("changes[0] = %s %s, want a changed", c.ImageID, c.Kind)
	}
	if c.Before != (match.Counts{TP: 1, FP: 1, FN: 1}) || c.After != (match.Counts{TP: 2}) {
		t.Errorf("counts before/after = %+v / %+v", c.Before, c.After)
	}
	// gt camo (1) and pred camo (3) changed.
	if !reflect.DeepEqual(c.Positions, []int{1, 3}) {
		t.Errorf("Positions = %v, want [1 3]", c.Positions)
	}

	if changes[1].ImageID != "d" || changes[1].Kind != Added {
		t.Errorf("changes[1] = %s %s, want d added", changes[1].ImageID, changes[1].Kind)
	}
	if changes[2].ImageID != "b" || changes[2].Kind != Removed {
		t.Errorf("changes[2] = %s %s, want b removed", changes[2].ImageID, changes[2].Kind)
	}
}
