package mapping

import (
	"image"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/voxelnav/rimage"
	"go.viam.com/voxelnav/rimage/transform"
	"go.viam.com/voxelnav/spatialmath"
	"go.viam.com/voxelnav/vision"
)

// ErrInvalidObservation is wrapped by every observation validation failure.
var ErrInvalidObservation = errors.New("invalid observation")

func newInvalidObservationError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidObservation, format, args...)
}

// Observation is one posed RGB-D frame together with its segmentation. It must not be modified
// once it has been added to a map.
type Observation struct {
	Timestamp  time.Time
	RGB        *image.NRGBA
	Depth      *rimage.DepthMap
	Intrinsics *transform.PinholeCameraIntrinsics
	// CameraPose is the 4x4 world_from_camera transform in the optical convention: x right,
	// y down, z forward.
	CameraPose *mat.Dense
	BasePose   spatialmath.Pose2D
	// InstanceIDs holds one frame-local instance id per pixel, row-major, vision.Background for
	// none. It may be nil when the frame has no segmentation.
	InstanceIDs []int
	Detections  []vision.Detection
}

// validate checks shapes and ids and returns the parsed camera pose.
func (obs *Observation) validate() (*spatialmath.Pose, error) {
	if obs == nil {
		return nil, newInvalidObservationError("nil observation")
	}
	if err := obs.Intrinsics.CheckValid(); err != nil {
		return nil, errors.Wrap(ErrInvalidObservation, err.Error())
	}
	w, h := obs.Intrinsics.Width, obs.Intrinsics.Height
	if obs.RGB == nil || obs.RGB.Bounds().Dx() != w || obs.RGB.Bounds().Dy() != h {
		return nil, newInvalidObservationError("rgb image does not match intrinsics size %dx%d", w, h)
	}
	if obs.Depth == nil || obs.Depth.Width() != w || obs.Depth.Height() != h {
		return nil, newInvalidObservationError("depth map does not match intrinsics size %dx%d", w, h)
	}
	if obs.InstanceIDs != nil && len(obs.InstanceIDs) != w*h {
		return nil, newInvalidObservationError("instance map has %d entries, want %d", len(obs.InstanceIDs), w*h)
	}
	if obs.InstanceIDs == nil && len(obs.Detections) > 0 {
		return nil, newInvalidObservationError("detections without an instance map")
	}
	if obs.CameraPose == nil {
		return nil, newInvalidObservationError("missing camera pose")
	}
	pose, err := spatialmath.NewPoseFromMatrix(obs.CameraPose)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidObservation, err.Error())
	}

	known := make(map[int]bool, len(obs.Detections))
	for _, det := range obs.Detections {
		if det.InstanceID == vision.Background {
			return nil, newInvalidObservationError("detection uses the background id")
		}
		if known[det.InstanceID] {
			return nil, newInvalidObservationError("duplicate detection id %d", det.InstanceID)
		}
		known[det.InstanceID] = true
	}
	for _, id := range obs.InstanceIDs {
		if id != vision.Background && !known[id] {
			return nil, newInvalidObservationError("instance map references unknown id %d", id)
		}
	}
	return pose, nil
}
