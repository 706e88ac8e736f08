// Package fake implements a simulated robot in a world of axis-aligned boxes on a flat floor,
// together with a segmenter and encoder that recognize those boxes.
package fake

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/voxelnav/spatialmath"
	"go.viam.com/voxelnav/vision"
)

// Box is a colored object in the scene. Its color must be unique: the segmenter recognizes boxes
// by exact color.
type Box struct {
	Name     string
	Category string
	Min, Max r3.Vector
	Color    color.NRGBA
	Score    float64
}

// Bounds returns the box as bounds.
func (b Box) Bounds() spatialmath.Bounds {
	return spatialmath.Bounds{Min: b.Min, Max: b.Max}
}

// Scene is a square floor at z=0 holding boxes. Rays that miss everything read no depth.
type Scene struct {
	// FloorHalfSize bounds the floor to |x|, |y| <= FloorHalfSize.
	FloorHalfSize float64
	FloorColor    color.NRGBA
	Boxes         []Box
	// MaxRange is the furthest distance a ray is traced.
	MaxRange float64
}

// DefaultScene is a 6x6 m room with a table, a chair and a couch.
func DefaultScene() *Scene {
	return &Scene{
		FloorHalfSize: 3,
		FloorColor:    color.NRGBA{R: 128, G: 128, B: 128, A: 255},
		MaxRange:      8,
		Boxes: []Box{
			{
				Name: "table", Category: "table",
				Min: r3.Vector{X: 1.05, Y: -0.45, Z: 0}, Max: r3.Vector{X: 1.85, Y: 0.45, Z: 0.75},
				Color: color.NRGBA{R: 160, G: 82, B: 45, A: 255}, Score: 0.9,
			},
			{
				Name: "chair", Category: "chair",
				Min: r3.Vector{X: -1.45, Y: 0.95, Z: 0}, Max: r3.Vector{X: -0.95, Y: 1.45, Z: 0.9},
				Color: color.NRGBA{R: 30, G: 144, B: 255, A: 255}, Score: 0.8,
			},
			{
				Name: "couch", Category: "couch",
				Min: r3.Vector{X: -2.05, Y: -2.45, Z: 0}, Max: r3.Vector{X: -0.45, Y: -1.65, Z: 0.8},
				Color: color.NRGBA{R: 34, G: 139, B: 34, A: 255}, Score: 0.85,
			},
		},
	}
}

// Validate checks every box is well formed and colors are distinct from each other and the
// floor.
func (s *Scene) Validate() error {
	if s.FloorHalfSize <= 0 {
		return errors.Errorf("floor half size must be positive, got %v", s.FloorHalfSize)
	}
	if s.MaxRange <= 0 {
		return errors.Errorf("max range must be positive, got %v", s.MaxRange)
	}
	seen := map[color.NRGBA]string{s.FloorColor: "floor"}
	for _, b := range s.Boxes {
		if b.Min.X >= b.Max.X || b.Min.Y >= b.Max.Y || b.Min.Z >= b.Max.Z {
			return errors.Errorf("box %q is empty", b.Name)
		}
		if other, ok := seen[b.Color]; ok {
			return errors.Errorf("box %q has the same color as %q", b.Name, other)
		}
		seen[b.Color] = b.Name
	}
	return nil
}

// Categories lists the box categories in first-seen order.
func (s *Scene) Categories() vision.Categories {
	var cats vision.Categories
	for _, b := range s.Boxes {
		if _, ok := cats.CategoryID(b.Category); !ok {
			cats = append(cats, b.Category)
		}
	}
	return cats
}

// noHit is returned by Cast for rays that hit nothing.
const noHit = -1

// Cast traces the ray origin + t*dir for t > 0 and returns the smallest t at which it hits the
// floor or a box, and the index of the box hit. The floor is index len(Boxes). t is noHit when
// nothing is hit within MaxRange.
func (s *Scene) Cast(origin, dir r3.Vector) (float64, int) {
	best, hit := math.Inf(1), noHit
	if dir.Z < 0 {
		t := -origin.Z / dir.Z
		p := origin.Add(dir.Mul(t))
		if t > 0 && math.Abs(p.X) <= s.FloorHalfSize && math.Abs(p.Y) <= s.FloorHalfSize {
			best, hit = t, len(s.Boxes)
		}
	}
	for i, b := range s.Boxes {
		if t, ok := rayBox(origin, dir, b.Min, b.Max); ok && t < best {
			best, hit = t, i
		}
	}
	if hit == noHit || best*dir.Norm() > s.MaxRange {
		return noHit, noHit
	}
	return best, hit
}

// rayBox is the slab test. It returns the entry distance of a ray starting outside the box.
func rayBox(origin, dir, lo, hi r3.Vector) (float64, bool) {
	tMin, tMax := 0., math.Inf(1)
	for _, axis := range [3]struct{ o, d, lo, hi float64 }{
		{origin.X, dir.X, lo.X, hi.X},
		{origin.Y, dir.Y, lo.Y, hi.Y},
		{origin.Z, dir.Z, lo.Z, hi.Z},
	} {
		if axis.d == 0 {
			if axis.o < axis.lo || axis.o > axis.hi {
				return 0, false
			}
			continue
		}
		t1, t2 := (axis.lo-axis.o)/axis.d, (axis.hi-axis.o)/axis.d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin, tMax = max(tMin, t1), min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}
	return tMin, tMin > 0
}

// colorOf is the color of hit index i.
func (s *Scene) colorOf(i int) color.NRGBA {
	if i == len(s.Boxes) {
		return s.FloorColor
	}
	return s.Boxes[i].Color
}
