package rimage

import (
	"image"

	"github.com/disintegration/imaging"
)

// CloneToNRGBA copies any image into a new NRGBA with origin at (0, 0).
func CloneToNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// Crop copies the part of img inside rect. The result's origin is (0, 0). A rectangle outside
// the image yields an empty image.
func Crop(img image.Image, rect image.Rectangle) *image.NRGBA {
	return imaging.Crop(img, rect)
}
