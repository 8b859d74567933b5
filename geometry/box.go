// Package geometry provides axis-aligned boxes and overlap computation.
package geometry

import "math"

// Box is an axis-aligned rectangle anchored at its top-left corner.
// All boxes compared against each other must share one coordinate system
// (percent of image or absolute pixels).
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Normalize returns b with negative or NaN extents clamped to zero.
func (b Box) Normalize() Box {
	if !(b.Width > 0) {
		b.Width = 0
	}
	if !(b.Height > 0) {
		b.Height = 0
	}
	return b
}

// Degenerate reports whether b has no positive area once normalized.
func (b Box) Degenerate() bool {
	return b.Area() <= 0
}

// Area returns the area of the normalized box.
func (b Box) Area() float64 {
	x1, y1, x2, y2 := b.corners()
	return (x2 - x1) * (y2 - y1)
}

// corners returns the normalized box as (left, top, right, bottom).
// Areas are always derived from corners so that a box compared with
// itself yields exactly the same intersection and area.
func (b Box) corners() (x1, y1, x2, y2 float64) {
	n := b.Normalize()
	return n.X, n.Y, n.X + n.Width, n.Y + n.Height
}

// Intersection returns the overlapping area of a and b.
func Intersection(a, b Box) float64 {
	ax1, ay1, ax2, ay2 := a.corners()
	bx1, by1, bx2, by2 := b.corners()

	w := math.Min(ax2, bx2) - math.Max(ax1, bx1)
	h := math.Min(ay2, by2) - math.Max(ay1, by1)
	if !(w > 0) || !(h > 0) {
		return 0
	}
	return w * h
}

// IoU returns the intersection-over-union of a and b in [0, 1].
// It is 0 when the boxes do not overlap or when either box is degenerate.
func IoU(a, b Box) float64 {
	areaA := a.Area()
	areaB := b.Area()
	if !(areaA > 0) || !(areaB > 0) {
		return 0
	}

	inter := Intersection(a, b)
	if inter == 0 {
		return 0
	}

	union := areaA + areaB - inter
	if !(union > 0) {
		return 0
	}

	iou := inter / union
	if iou > 1 {
		return 1
	}
	return iou
}
