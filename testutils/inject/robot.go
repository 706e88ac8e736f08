// Package inject provides test doubles whose behavior is set per test through function fields.
package inject

import (
	"context"

	"go.viam.com/voxelnav/components/camera"
	"go.viam.com/voxelnav/robot"
	"go.viam.com/voxelnav/spatialmath"
)

// Robot is an injectable robot. Unset functions fall through to the embedded Robot.
type Robot struct {
	robot.Robot
	BasePoseFunc                 func(ctx context.Context) (spatialmath.Pose2D, error)
	ObservationFunc              func(ctx context.Context) (*camera.RGBDFrame, error)
	ExecuteTrajectoryFunc        func(ctx context.Context, trajectory []spatialmath.Pose2D, posTol, rotTol float64) error
	NavigateToFunc               func(ctx context.Context, pose spatialmath.Pose2D, relative bool) error
	MoveToNavPostureFunc         func(ctx context.Context) error
	MoveToManipPostureFunc       func(ctx context.Context) error
	SwitchToNavigationModeFunc   func(ctx context.Context) error
	SwitchToManipulationModeFunc func(ctx context.Context) error
}

// BasePose calls the injected BasePose or the real version.
func (r *Robot) BasePose(ctx context.Context) (spatialmath.Pose2D, error) {
	if r.BasePoseFunc == nil {
		return r.Robot.BasePose(ctx)
	}
	return r.BasePoseFunc(ctx)
}

// Observation calls the injected Observation or the real version.
func (r *Robot) Observation(ctx context.Context) (*camera.RGBDFrame, error) {
	if r.ObservationFunc == nil {
		return r.Robot.Observation(ctx)
	}
	return r.ObservationFunc(ctx)
}

// ExecuteTrajectory calls the injected ExecuteTrajectory or the real version.
func (r *Robot) ExecuteTrajectory(ctx context.Context, trajectory []spatialmath.Pose2D, posTol, rotTol float64) error {
	if r.ExecuteTrajectoryFunc == nil {
		return r.Robot.ExecuteTrajectory(ctx, trajectory, posTol, rotTol)
	}
	return r.ExecuteTrajectoryFunc(ctx, trajectory, posTol, rotTol)
}

// NavigateTo calls the injected NavigateTo or the real version.
func (r *Robot) NavigateTo(ctx context.Context, pose spatialmath.Pose2D, relative bool) error {
	if r.NavigateToFunc == nil {
		return r.Robot.NavigateTo(ctx, pose, relative)
	}
	return r.NavigateToFunc(ctx, pose, relative)
}

// MoveToNavPosture calls the injected MoveToNavPosture or the real version.
func (r *Robot) MoveToNavPosture(ctx context.Context) error {
	if r.MoveToNavPostureFunc == nil {
		return r.Robot.MoveToNavPosture(ctx)
	}
	return r.MoveToNavPostureFunc(ctx)
}

// MoveToManipPosture calls the injected MoveToManipPosture or the real version.
func (r *Robot) MoveToManipPosture(ctx context.Context) error {
	if r.MoveToManipPostureFunc == nil {
		return r.Robot.MoveToManipPosture(ctx)
	}
	return r.MoveToManipPostureFunc(ctx)
}

// SwitchToNavigationMode calls the injected SwitchToNavigationMode or the real version.
func (r *Robot) SwitchToNavigationMode(ctx context.Context) error {
	if r.SwitchToNavigationModeFunc == nil {
		return r.Robot.SwitchToNavigationMode(ctx)
	}
	return r.SwitchToNavigationModeFunc(ctx)
}

// SwitchToManipulationMode calls the injected SwitchToManipulationMode or the real version.
func (r *Robot) SwitchToManipulationMode(ctx context.Context) error {
	if r.SwitchToManipulationModeFunc == nil {
		return r.Robot.SwitchToManipulationMode(ctx)
	}
	return r.SwitchToManipulationModeFunc(ctx)
}
