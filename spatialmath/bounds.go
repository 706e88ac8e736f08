package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Bounds is an axis-aligned 3D box, inclusive on both ends.
type Bounds struct {
	Min r3.Vector `json:"min"`
	Max r3.Vector `json:"max"`
}

// NewBoundsFromPoints returns the tightest box around pts. ok is false if pts is empty.
func NewBoundsFromPoints(pts []r3.Vector) (b Bounds, ok bool) {
	if len(pts) == 0 {
		return Bounds{}, false
	}
	b = Bounds{Min: pts[0], Max: pts[0]}
	for _, pt := range pts[1:] {
		b = b.Extend(pt)
	}
	return b, true
}

// Extend grows the box to include pt.
func (b Bounds) Extend(pt r3.Vector) Bounds {
	return Bounds{
		Min: r3.Vector{X: math.Min(b.Min.X, pt.X), Y: math.Min(b.Min.Y, pt.Y), Z: math.Min(b.Min.Z, pt.Z)},
		Max: r3.Vector{X: math.Max(b.Max.X, pt.X), Y: math.Max(b.Max.Y, pt.Y), Z: math.Max(b.Max.Z, pt.Z)},
	}
}

// Union is the smallest box containing both.
func (b Bounds) Union(o Bounds) Bounds {
	return b.Extend(o.Min).Extend(o.Max)
}

// Size returns the extent along each axis.
func (b Bounds) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint.
func (b Bounds) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Volume is zero for degenerate boxes.
func (b Bounds) Volume() float64 {
	s := b.Size()
	if s.X <= 0 || s.Y <= 0 || s.Z <= 0 {
		return 0
	}
	return s.X * s.Y * s.Z
}

// Intersection returns the overlap of the boxes and whether it is non-empty.
func (b Bounds) Intersection(o Bounds) (Bounds, bool) {
	in := Bounds{
		Min: r3.Vector{X: math.Max(b.Min.X, o.Min.X), Y: math.Max(b.Min.Y, o.Min.Y), Z: math.Max(b.Min.Z, o.Min.Z)},
		Max: r3.Vector{X: math.Min(b.Max.X, o.Max.X), Y: math.Min(b.Max.Y, o.Max.Y), Z: math.Min(b.Max.Z, o.Max.Z)},
	}
	if in.Min.X > in.Max.X || in.Min.Y > in.Max.Y || in.Min.Z > in.Max.Z {
		return Bounds{}, false
	}
	return in, true
}

// Contains reports whether pt lies inside the box.
func (b Bounds) Contains(pt r3.Vector) bool {
	return pt.X >= b.Min.X && pt.X <= b.Max.X &&
		pt.Y >= b.Min.Y && pt.Y <= b.Max.Y &&
		pt.Z >= b.Min.Z && pt.Z <= b.Max.Z
}

// IoU3D is intersection volume over union volume. Two boxes with no volume overlap score 0.
func IoU3D(a, b Bounds) float64 {
	in, ok := a.Intersection(b)
	if !ok {
		return 0
	}
	inter := in.Volume()
	union := a.Volume() + b.Volume() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%v - %v]", b.Min, b.Max)
}
