// Package camera defines the posed RGB-D frame a robot's head camera produces.
package camera

import (
	"image"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/voxelnav/rimage"
	"go.viam.com/voxelnav/rimage/transform"
	"go.viam.com/voxelnav/spatialmath"
)

// RGBDFrame is one synchronized color and depth capture together with where the camera and base
// were when it was taken.
type RGBDFrame struct {
	Timestamp  time.Time
	RGB        image.Image
	Depth      *rimage.DepthMap
	Intrinsics *transform.PinholeCameraIntrinsics
	// CameraPose is world_from_camera in the optical frame convention (x right, y down, z forward).
	CameraPose *mat.Dense
	BasePose   spatialmath.Pose2D
}

// ErrIncompleteFrame is returned when a frame is missing one of its images.
var ErrIncompleteFrame = errors.New("incomplete RGB-D frame")

// Validate checks the frame has everything needed to build an observation. Deeper checks are
// left to the map.
func (f *RGBDFrame) Validate() error {
	switch {
	case f == nil:
		return errors.Wrap(ErrIncompleteFrame, "nil frame")
	case f.RGB == nil:
		return errors.Wrap(ErrIncompleteFrame, "missing color image")
	case f.Depth == nil:
		return errors.Wrap(ErrIncompleteFrame, "missing depth map")
	case f.Intrinsics == nil:
		return transform.NewNoIntrinsicsError("frame has no intrinsics")
	case f.CameraPose == nil:
		return errors.Wrap(ErrIncompleteFrame, "missing camera pose")
	}
	return nil
}
