package inject

import (
	"context"
	"image"

	"go.viam.com/voxelnav/rimage"
	"go.viam.com/voxelnav/vision"
)

// Segmenter is an injectable segmenter.
type Segmenter struct {
	vision.Segmenter
	SegmentFunc      func(ctx context.Context, rgb image.Image, depth *rimage.DepthMap) (*vision.Segmentation, error)
	CategoryNameFunc func(id int) string
	CategoryIDFunc   func(name string) (int, bool)
}

// Segment calls the injected Segment or the real version.
func (s *Segmenter) Segment(ctx context.Context, rgb image.Image, depth *rimage.DepthMap) (*vision.Segmentation, error) {
	if s.SegmentFunc == nil {
		return s.Segmenter.Segment(ctx, rgb, depth)
	}
	return s.SegmentFunc(ctx, rgb, depth)
}

// CategoryName calls the injected CategoryName or the real version.
func (s *Segmenter) CategoryName(id int) string {
	if s.CategoryNameFunc == nil {
		return s.Segmenter.CategoryName(id)
	}
	return s.CategoryNameFunc(id)
}

// CategoryID calls the injected CategoryID or the real version.
func (s *Segmenter) CategoryID(name string) (int, bool) {
	if s.CategoryIDFunc == nil {
		return s.Segmenter.CategoryID(name)
	}
	return s.CategoryIDFunc(name)
}

// Encoder is an injectable embedding encoder.
type Encoder struct {
	vision.Encoder
	EncodeTextFunc  func(ctx context.Context, text string) ([]float64, error)
	EncodeImageFunc func(ctx context.Context, img image.Image) ([]float64, error)
}

// EncodeText calls the injected EncodeText or the real version.
func (e *Encoder) EncodeText(ctx context.Context, text string) ([]float64, error) {
	if e.EncodeTextFunc == nil {
		return e.Encoder.EncodeText(ctx, text)
	}
	return e.EncodeTextFunc(ctx, text)
}

// EncodeImage calls the injected EncodeImage or the real version.
func (e *Encoder) EncodeImage(ctx context.Context, img image.Image) ([]float64, error) {
	if e.EncodeImageFunc == nil {
		return e.Encoder.EncodeImage(ctx, img)
	}
	return e.EncodeImageFunc(ctx, img)
}
