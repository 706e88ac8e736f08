package mapping

import (
	"image"
	"image/color"
	"math"
)

// Mask is a square boolean grid over the 2D map. Cell (i, j) has i along world x and j along
// world y.
type Mask struct {
	size int
	bits []bool
}

// NewMask returns an all-false mask with size cells per side.
func NewMask(size int) Mask {
	return Mask{size: size, bits: make([]bool, size*size)}
}

// Size is the number of cells per side.
func (m Mask) Size() int {
	return m.size
}

// InBounds reports whether (i, j) is a cell of the mask.
func (m Mask) InBounds(i, j int) bool {
	return i >= 0 && j >= 0 && i < m.size && j < m.size
}

// At returns the value of (i, j); cells outside the mask are false.
func (m Mask) At(i, j int) bool {
	if !m.InBounds(i, j) {
		return false
	}
	return m.bits[j*m.size+i]
}

// Set stores v at (i, j). Out of bounds writes are ignored.
func (m Mask) Set(i, j int, v bool) {
	if m.InBounds(i, j) {
		m.bits[j*m.size+i] = v
	}
}

// Count is the number of true cells.
func (m Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Clone copies the mask.
func (m Mask) Clone() Mask {
	return Mask{size: m.size, bits: append([]bool(nil), m.bits...)}
}

// Bits returns a copy of the row-major cells, j major.
func (m Mask) Bits() []bool {
	return append([]bool(nil), m.bits...)
}

// MaskFromBits wraps row-major cells as produced by Bits.
func MaskFromBits(size int, bits []bool) (Mask, bool) {
	if size < 0 || len(bits) != size*size {
		return Mask{}, false
	}
	return Mask{size: size, bits: append([]bool(nil), bits...)}, true
}

// Equal reports whether both masks have the same size and cells.
func (m Mask) Equal(o Mask) bool {
	if m.size != o.size {
		return false
	}
	for i, b := range m.bits {
		if o.bits[i] != b {
			return false
		}
	}
	return true
}

// And returns the cell-wise conjunction.
func (m Mask) And(o Mask) Mask {
	out := m.Clone()
	for i := range out.bits {
		out.bits[i] = out.bits[i] && o.bits[i]
	}
	return out
}

// Not returns the complement.
func (m Mask) Not() Mask {
	out := m.Clone()
	for i := range out.bits {
		out.bits[i] = !out.bits[i]
	}
	return out
}

// Dilate grows the mask by a disk of the given radius in cells. A radius of zero returns a copy.
func (m Mask) Dilate(radius int) Mask {
	if radius <= 0 {
		return m.Clone()
	}
	var offsets []image.Point
	for dj := -radius; dj <= radius; dj++ {
		for di := -radius; di <= radius; di++ {
			if di*di+dj*dj <= radius*radius {
				offsets = append(offsets, image.Point{di, dj})
			}
		}
	}
	out := NewMask(m.size)
	for j := 0; j < m.size; j++ {
		for i := 0; i < m.size; i++ {
			if !m.bits[j*m.size+i] {
				continue
			}
			for _, o := range offsets {
				out.Set(i+o.X, j+o.Y, true)
			}
		}
	}
	return out
}

// Cells lists the true cells in row-major order.
func (m Mask) Cells() []image.Point {
	var out []image.Point
	for j := 0; j < m.size; j++ {
		for i := 0; i < m.size; i++ {
			if m.bits[j*m.size+i] {
				out = append(out, image.Point{i, j})
			}
		}
	}
	return out
}

// Centroid is the mean cell of the true cells. ok is false for an empty mask.
func (m Mask) Centroid() (ci, cj float64, ok bool) {
	n := 0
	for j := 0; j < m.size; j++ {
		for i := 0; i < m.size; i++ {
			if m.bits[j*m.size+i] {
				ci += float64(i)
				cj += float64(j)
				n++
			}
		}
	}
	if n == 0 {
		return 0, 0, false
	}
	return ci / float64(n), cj / float64(n), true
}

// ToImage renders the mask with world +y up, true cells white.
func (m Mask) ToImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.size, m.size))
	for j := 0; j < m.size; j++ {
		for i := 0; i < m.size; i++ {
			if m.bits[j*m.size+i] {
				img.SetGray(i, m.size-1-j, color.Gray{Y: math.MaxUint8})
			}
		}
	}
	return img
}
