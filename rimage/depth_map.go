// Package rimage holds the depth image type and image helpers used by perception and mapping.
package rimage

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// Depth is the depth of a pixel in millimetres. Zero means no reading.
type Depth uint16

// MaxDepth is the largest representable depth.
const MaxDepth = Depth(math.MaxUint16)

// Meters converts to metres.
func (d Depth) Meters() float64 {
	return float64(d) / 1000.
}

// DepthFromMeters rounds a depth in metres to the nearest millimetre, saturating at MaxDepth.
func DepthFromMeters(m float64) Depth {
	if m <= 0 || math.IsNaN(m) {
		return 0
	}
	mm := math.Round(m * 1000)
	if mm >= float64(MaxDepth) {
		return MaxDepth
	}
	return Depth(mm)
}

// DepthMap is a row-major depth image.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns an all-zero depth map.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// NewDepthMapFromData wraps row-major data. The slice is copied.
func NewDepthMapFromData(width, height int, data []Depth) (*DepthMap, error) {
	if width < 0 || height < 0 || len(data) != width*height {
		return nil, errors.Errorf("depth data has %d values, want %dx%d", len(data), width, height)
	}
	return &DepthMap{width: width, height: height, data: append([]Depth(nil), data...)}, nil
}

// Width returns the horizontal size.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical size.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle covering the map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// GetDepth returns the depth at column x, row y.
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[y*dm.width+x]
}

// Set stores the depth at column x, row y.
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[y*dm.width+x] = val
}

// Data returns a copy of the raw row-major values.
func (dm *DepthMap) Data() []Depth {
	return append([]Depth(nil), dm.data...)
}

// MinMax returns the smallest and largest non-zero depths. Both are zero if there are none.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	min, max := MaxDepth, Depth(0)
	for _, z := range dm.data {
		if z == 0 {
			continue
		}
		if z < min {
			min = z
		}
		if z > max {
			max = z
		}
	}
	if max == 0 {
		return 0, 0
	}
	return min, max
}

// ToGrayPicture renders valid depths as brightness, near is bright.
func (dm *DepthMap) ToGrayPicture() *image.Gray {
	img := image.NewGray(dm.Bounds())
	min, max := dm.MinMax()
	span := float64(max) - float64(min)
	if span == 0 {
		span = 1
	}
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			z := dm.GetDepth(x, y)
			if z == 0 {
				continue
			}
			img.Pix[img.PixOffset(x, y)] = uint8(255 - 200*(float64(z-min)/span))
		}
	}
	return img
}
