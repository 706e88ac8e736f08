// Package motionplan plans collision-free paths for a planar mobile base with RRT-Connect.
package motionplan

import (
	"context"
	"math/rand"

	"go.viam.com/voxelnav/spatialmath"
)

// ConfigurationSpace is everything the planner needs to know about where the robot may go.
type ConfigurationSpace interface {
	IsValid(p spatialmath.Pose2D) bool
	// SampleUniform draws a random pose from the region worth searching.
	SampleUniform(rng *rand.Rand) spatialmath.Pose2D
	Distance(a, b spatialmath.Pose2D) float64
	// Steer returns the pose at most maxStep from `from` toward `to`.
	Steer(from, to spatialmath.Pose2D, maxStep float64) spatialmath.Pose2D
	Interpolate(a, b spatialmath.Pose2D, t float64) spatialmath.Pose2D
	// CheckPath validates the motion from a to b at a resolution finer than its endpoints.
	CheckPath(a, b spatialmath.Pose2D) bool
}

// MotionPlanner produces a path between two poses.
type MotionPlanner interface {
	Plan(ctx context.Context, start, goal spatialmath.Pose2D) (*Plan, error)
}

// Plan is an ordered list of poses from start to goal, each consecutive pair checked with
// CheckPath.
type Plan struct {
	Poses      []spatialmath.Pose2D
	Iterations int
	TreeNodes  int
}

// Length is the summed xy distance along the plan.
func (p *Plan) Length() float64 {
	total := 0.
	for i := 1; i < len(p.Poses); i++ {
		total += p.Poses[i-1].DistanceXY(p.Poses[i])
	}
	return total
}

// Goal returns the last pose.
func (p *Plan) Goal() spatialmath.Pose2D {
	return p.Poses[len(p.Poses)-1]
}
