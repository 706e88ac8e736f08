// Package instance resolves per-frame detections into persistent object instances by greedy 3D
// overlap association.
package instance

import (
	"image"
	"sync"

	"gonum.org/v1/gonum/floats"

	"go.viam.com/voxelnav/spatialmath"
	"go.viam.com/voxelnav/vision"
)

// Aggregation selects how view embeddings are combined into one instance embedding.
type Aggregation string

const (
	// AggregationMean averages the view embeddings.
	AggregationMean Aggregation = "mean"
	// AggregationMax takes the element-wise max.
	AggregationMax Aggregation = "max"
)

// Mask is a binary mask inside a bounding rectangle of the source image. Pix is row-major over
// Rect.
type Mask struct {
	Rect image.Rectangle
	Pix  []bool
}

// At reports whether image pixel (x, y) is in the mask.
func (m Mask) At(x, y int) bool {
	if !(image.Point{x, y}).In(m.Rect) {
		return false
	}
	return m.Pix[(y-m.Rect.Min.Y)*m.Rect.Dx()+(x-m.Rect.Min.X)]
}

// Count is the number of set pixels.
func (m Mask) Count() int {
	n := 0
	for _, b := range m.Pix {
		if b {
			n++
		}
	}
	return n
}

// InstanceView is a single observation of an instance.
type InstanceView struct {
	Crop        image.Image
	Mask        Mask
	CameraPose  *spatialmath.Pose
	Score       float64
	Embedding   []float64
	Bounds      spatialmath.Bounds
	Observation int
}

// Instance is a persistent object hypothesis built from one or more views.
type Instance struct {
	ID         int
	CategoryID int
	Score      float64
	Bounds     spatialmath.Bounds
	Views      []*InstanceView

	mu          sync.Mutex
	embedding   []float64
	embedAgg    Aggregation
	embedNorm   bool
	embedViews  int
	embedCached bool
}

// Embedding combines the view embeddings. The result is cached until a new view is added or the
// requested aggregation changes. It returns nil when no view has an embedding.
func (inst *Instance) Embedding(agg Aggregation, normalize bool) []float64 {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.embedCached && inst.embedViews == len(inst.Views) && inst.embedAgg == agg && inst.embedNorm == normalize {
		return append([]float64(nil), inst.embedding...)
	}

	var out []float64
	used := 0
	for _, v := range inst.Views {
		if len(v.Embedding) == 0 {
			continue
		}
		if out == nil {
			out = append([]float64(nil), v.Embedding...)
			used = 1
			continue
		}
		if len(v.Embedding) != len(out) {
			continue
		}
		switch agg {
		case AggregationMax:
			for i, x := range v.Embedding {
				if x > out[i] {
					out[i] = x
				}
			}
		default:
			floats.Add(out, v.Embedding)
		}
		used++
	}
	if out != nil && agg != AggregationMax {
		floats.Scale(1/float64(used), out)
	}
	if out != nil && normalize {
		out = vision.Normalize(out)
	}

	inst.embedding = out
	inst.embedAgg = agg
	inst.embedNorm = normalize
	inst.embedViews = len(inst.Views)
	inst.embedCached = true
	return append([]float64(nil), out...)
}

// Clone returns a copy sharing the immutable views.
func (inst *Instance) Clone() *Instance {
	return &Instance{
		ID:         inst.ID,
		CategoryID: inst.CategoryID,
		Score:      inst.Score,
		Bounds:     inst.Bounds,
		Views:      append([]*InstanceView(nil), inst.Views...),
	}
}

func (inst *Instance) addView(view *InstanceView) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.Views = append(inst.Views, view)
	inst.Bounds = inst.Bounds.Union(view.Bounds)
	inst.Score += (view.Score - inst.Score) / float64(len(inst.Views))
	inst.embedCached = false
}
