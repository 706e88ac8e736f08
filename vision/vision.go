// Package vision defines the perception contract: per-frame instance segmentation with scored,
// classified detections, and the text/image embedding encoder used to ground goals.
package vision

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"go.viam.com/voxelnav/rimage"
)

// ErrPerceptionUnavailable wraps every failure of a perception or encoder model. Frames that hit
// it are dropped.
var ErrPerceptionUnavailable = errors.New("perception unavailable")

// NewPerceptionUnavailableError wraps cause so that errors.Is matches ErrPerceptionUnavailable.
func NewPerceptionUnavailableError(cause error) error {
	return errors.Wrapf(ErrPerceptionUnavailable, "%v", cause)
}

// Background is the instance id of pixels that belong to no detection.
const Background = -1

// Detection is one segmented object in a frame. InstanceID is frame-local and matches the ids in
// Segmentation.InstanceIDs.
type Detection struct {
	InstanceID int
	CategoryID int
	Score      float64
	Embedding  []float64
	Crop       image.Image
}

// Segmentation is the output of a Segmenter for one frame.
type Segmentation struct {
	// InstanceIDs holds one frame-local instance id per pixel in row-major order.
	InstanceIDs []int
	Detections  []Detection
}

// Segmenter turns an RGB-D frame into instance masks.
type Segmenter interface {
	Segment(ctx context.Context, rgb image.Image, depth *rimage.DepthMap) (*Segmentation, error)
	CategoryName(id int) string
	CategoryID(name string) (int, bool)
}

// Encoder embeds text and images into a shared vector space.
type Encoder interface {
	EncodeText(ctx context.Context, text string) ([]float64, error)
	EncodeImage(ctx context.Context, img image.Image) ([]float64, error)
}

// Categories is a fixed vocabulary used by segmenters to name their category ids.
type Categories []string

// CategoryName returns the name of id or "" when out of range.
func (c Categories) CategoryName(id int) string {
	if id < 0 || id >= len(c) {
		return ""
	}
	return c[id]
}

// CategoryID looks up a name.
func (c Categories) CategoryID(name string) (int, bool) {
	for i, n := range c {
		if n == name {
			return i, true
		}
	}
	return 0, false
}
