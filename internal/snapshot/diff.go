package snapshot

import (
	"slices"

	deteval "github.com/jamesainslie/go-deteval"
	"github.com/jamesainslie/go-deteval/match"
)

// ChangeKind classifies a per-image difference.
type ChangeKind string

const (
	Added   ChangeKind = "added"
	Removed ChangeKind = "removed"
	Changed ChangeKind = "changed"
)

// Change describes one image whose results differ between two runs.
type Change struct {
	ImageID string
	Kind    ChangeKind
	Before  match.Counts
	After   match.Counts
	// Positions lists result indices that differ. Only set for Changed.
	Positions []int
}

// Diff compares two results position by position and returns the images
// that differ, in the order they appear in after followed by images only
// present in before.
func Diff(before, after *deteval.Result) []Change {
	var changes []Change
	for _, id := range after.ImageIDs {
		now := after.PerImage[id]
		prev, ok := before.PerImage[id]
		if !ok {
			changes = append(changes, Change{ImageID: id, Kind: Added, After: match.Count(now)})
			continue
		}
		if pos := differingPositions(prev, now); len(pos) > 0 {
			changes = append(changes, Change{
				ImageID:   id,
				Kind:      Changed,
				Before:    match.Count(prev),
				After:     match.Count(now),
				Positions: pos,
			})
		}
	}
	for _, id := range before.ImageIDs {
		if _, ok := after.PerImage[id]; !ok {
			changes = append(changes, Change{ImageID: id, Kind: Removed, Before: match.Count(before.PerImage[id])})
		}
	}
	return changes
}

func differingPositions(a, b []match.Result) []int {
	var pos []int
	for i := 0; i < max(len(a), len(b)); i++ {
		if i >= len(a) || i >= len(b) || a[i] != b[i] {
			pos = append(pos, i)
		}
	}
	return slices.Clip(pos)
}
