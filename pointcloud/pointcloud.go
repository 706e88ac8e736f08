package pointcloud

import (
	"image/color"

	"github.com/golang/geo/r3"
)

// Point is a position in metres with an optional color.
type Point struct {
	Position r3.Vector
	Color    color.NRGBA
	HasColor bool
}

// PointCloud is an ordered list of points.
type PointCloud []Point

// HasColor reports whether any point carries color.
func (pc PointCloud) HasColor() bool {
	for _, p := range pc {
		if p.HasColor {
			return true
		}
	}
	return false
}
