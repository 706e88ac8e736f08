package instance

import (
	"slices"

	"github.com/pkg/errors"

	"go.viam.com/voxelnav/logging"
	"go.viam.com/voxelnav/spatialmath"
	"go.viam.com/voxelnav/vision"
)

// Config tunes association.
type Config struct {
	// OverlapThreshold is the minimum 3D IoU, inclusive, for a detection to join an instance.
	OverlapThreshold float64 `json:"overlap_threshold"`
	// MinPoints is the fewest valid 3D points a detection needs to be considered at all.
	MinPoints int `json:"min_points"`
}

// DefaultConfig returns the default association settings.
func DefaultConfig() Config {
	return Config{OverlapThreshold: 0.3, MinPoints: 10}
}

// Validate checks the threshold range.
func (cfg Config) Validate() error {
	if cfg.OverlapThreshold <= 0 || cfg.OverlapThreshold > 1 {
		return errors.Errorf("overlap threshold must be in (0, 1], got %v", cfg.OverlapThreshold)
	}
	if cfg.MinPoints < 0 {
		return errors.Errorf("min points must be non-negative, got %d", cfg.MinPoints)
	}
	return nil
}

// FrameDetection is a detection lifted into 3D, ready for association.
type FrameDetection struct {
	Detection vision.Detection
	View      *InstanceView
}

// Aggregator owns every instance. It is not safe for concurrent use; the voxel map serializes
// calls under its write lock.
type Aggregator struct {
	cfg       Config
	logger    logging.Logger
	instances []*Instance
}

// NewAggregator returns an empty aggregator.
func NewAggregator(cfg Config, logger logging.Logger) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{cfg: cfg, logger: logger}, nil
}

// Config returns the association settings.
func (a *Aggregator) Config() Config {
	return a.cfg
}

// Associate maps each detection to a global instance id, creating instances as needed. Results
// are in input order. Detections are processed in ascending frame instance id so that the
// outcome does not depend on the order the segmenter listed them in.
//
// Association is greedy and online: a detection joins the same-category instance with the
// highest IoU if that IoU is at least the threshold, ties going to the lowest id. Earlier
// decisions are never revisited and instances are never split or merged with each other.
func (a *Aggregator) Associate(dets []FrameDetection) []int {
	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		return dets[x].Detection.InstanceID - dets[y].Detection.InstanceID
	})

	ids := make([]int, len(dets))
	for _, idx := range order {
		det := dets[idx]
		best := a.bestMatch(det)
		if best == nil {
			best = &Instance{
				ID:         len(a.instances),
				CategoryID: det.Detection.CategoryID,
				Bounds:     det.View.Bounds,
			}
			a.instances = append(a.instances, best)
			a.logger.Debugw("new instance", "id", best.ID, "category", best.CategoryID)
		}
		best.addView(det.View)
		ids[idx] = best.ID
	}
	return ids
}

func (a *Aggregator) bestMatch(det FrameDetection) *Instance {
	var best *Instance
	bestIoU := 0.
	for _, inst := range a.instances {
		if inst.CategoryID != det.Detection.CategoryID {
			continue
		}
		iou := spatialmath.IoU3D(inst.Bounds, det.View.Bounds)
		if iou < a.cfg.OverlapThreshold {
			continue
		}
		// instances are in ascending id order so strict > keeps the lowest id on ties
		if best == nil || iou > bestIoU {
			best, bestIoU = inst, iou
		}
	}
	return best
}

// Len is the number of instances.
func (a *Aggregator) Len() int {
	return len(a.instances)
}

// Get returns the instance with the given id.
func (a *Aggregator) Get(id int) (*Instance, bool) {
	if id < 0 || id >= len(a.instances) {
		return nil, false
	}
	return a.instances[id], true
}

// Instances returns the instances in creation order. The slice is a copy; the instances are live.
func (a *Aggregator) Instances() []*Instance {
	return append([]*Instance(nil), a.instances...)
}

// Reset drops every instance.
func (a *Aggregator) Reset() {
	a.instances = nil
}
