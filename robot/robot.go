// Package robot defines the mobile manipulator the navigation agent drives.
package robot

import (
	"context"

	"go.viam.com/voxelnav/components/camera"
	"go.viam.com/voxelnav/spatialmath"
)

// Robot is the hardware or driver layer. All calls block until the robot has finished.
type Robot interface {
	// BasePose returns the current base pose in the world frame.
	BasePose(ctx context.Context) (spatialmath.Pose2D, error)

	// Observation captures a posed RGB-D frame from the head camera.
	Observation(ctx context.Context) (*camera.RGBDFrame, error)

	// ExecuteTrajectory follows the poses in order, each to within the given tolerances.
	ExecuteTrajectory(ctx context.Context, trajectory []spatialmath.Pose2D, posTol, rotTol float64) error

	// NavigateTo moves the base to a pose, relative to the current pose when relative is set.
	NavigateTo(ctx context.Context, pose spatialmath.Pose2D, relative bool) error

	MoveToNavPosture(ctx context.Context) error
	MoveToManipPosture(ctx context.Context) error
	SwitchToNavigationMode(ctx context.Context) error
	SwitchToManipulationMode(ctx context.Context) error
}
