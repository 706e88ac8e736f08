package fake

import (
	"context"
	"image"
	"image/color"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/voxelnav/rimage"
	"go.viam.com/voxelnav/vision"
)

// DefaultMinPixels is the smallest visible area reported as a detection.
const DefaultMinPixels = 4

// Segmenter recognizes the scene's boxes by their exact color. The frame-local instance id of a
// box is its index in the scene, so ids are stable across frames.
type Segmenter struct {
	vision.Categories
	scene     *Scene
	byColor   map[color.NRGBA]int
	MinPixels int
}

var (
	_ vision.Segmenter = (*Segmenter)(nil)
	_ vision.Encoder   = (*Segmenter)(nil)
)

// NewSegmenter builds a segmenter and encoder for scene.
func NewSegmenter(scene *Scene) (*Segmenter, error) {
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	byColor := make(map[color.NRGBA]int, len(scene.Boxes))
	for i, b := range scene.Boxes {
		byColor[b.Color] = i
	}
	return &Segmenter{
		Categories: scene.Categories(),
		scene:      scene,
		byColor:    byColor,
		MinPixels:  DefaultMinPixels,
	}, nil
}

// Segment labels every pixel whose color is a box color and has depth.
func (s *Segmenter) Segment(ctx context.Context, rgb image.Image, depth *rimage.DepthMap) (*vision.Segmentation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rgb == nil {
		return nil, vision.NewPerceptionUnavailableError(errors.New("no image"))
	}
	b := rgb.Bounds()
	if depth != nil && (depth.Width() != b.Dx() || depth.Height() != b.Dy()) {
		return nil, vision.NewPerceptionUnavailableError(
			errors.Errorf("depth is %dx%d but image is %dx%d", depth.Width(), depth.Height(), b.Dx(), b.Dy()))
	}

	ids := make([]int, b.Dx()*b.Dy())
	counts := map[int]int{}
	boxes := map[int]image.Rectangle{}
	for y := range b.Dy() {
		for x := range b.Dx() {
			i := y*b.Dx() + x
			ids[i] = vision.Background
			if depth != nil && depth.GetDepth(x, y) == 0 {
				continue
			}
			c := color.NRGBAModel.Convert(rgb.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			idx, ok := s.byColor[c]
			if !ok {
				continue
			}
			ids[i] = idx
			counts[idx]++
			boxes[idx] = boxes[idx].Union(image.Rect(x, y, x+1, y+1))
		}
	}

	seg := &vision.Segmentation{InstanceIDs: ids}
	for idx, box := range s.scene.Boxes {
		if counts[idx] == 0 {
			continue
		}
		if counts[idx] < s.MinPixels {
			for i, id := range ids {
				if id == idx {
					ids[i] = vision.Background
				}
			}
			continue
		}
		catID, _ := s.CategoryID(box.Category)
		seg.Detections = append(seg.Detections, vision.Detection{
			InstanceID: idx,
			CategoryID: catID,
			Score:      box.Score,
			Embedding:  s.oneHot(catID),
			Crop:       rimage.Crop(rgb, boxes[idx].Add(b.Min)),
		})
	}
	return seg, nil
}

// EncodeText embeds a query naming a known category. Anything else is unavailable.
func (s *Segmenter) EncodeText(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := strings.ToLower(text)
	for id, name := range s.Categories {
		if strings.Contains(query, strings.ToLower(name)) {
			return s.oneHot(id), nil
		}
	}
	return nil, vision.NewPerceptionUnavailableError(errors.Errorf("no category matches %q", text))
}

// EncodeImage embeds the category of the box color covering most of img.
func (s *Segmenter) EncodeImage(ctx context.Context, img image.Image) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, vision.NewPerceptionUnavailableError(errors.New("no image"))
	}
	b := img.Bounds()
	counts := make([]int, len(s.scene.Boxes))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if idx, ok := s.byColor[c]; ok {
				counts[idx]++
			}
		}
	}
	best := -1
	for idx, n := range counts {
		if n > 0 && (best < 0 || n > counts[best]) {
			best = idx
		}
	}
	if best < 0 {
		return nil, vision.NewPerceptionUnavailableError(errors.New("no known object in image"))
	}
	catID, _ := s.CategoryID(s.scene.Boxes[best].Category)
	return s.oneHot(catID), nil
}

func (s *Segmenter) oneHot(id int) []float64 {
	v := make([]float64, len(s.Categories))
	v[id] = 1
	return v
}
