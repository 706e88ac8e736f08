package navigation

import (
	"context"
	"iter"
	"math"
	"slices"

	"github.com/pkg/errors"

	"go.viam.com/voxelnav/logging"
	"go.viam.com/voxelnav/mapping"
	"go.viam.com/voxelnav/motionplan"
	"go.viam.com/voxelnav/spatialmath"
)

// FrontierSpace is the part of the navigation space frontier exploration needs.
type FrontierSpace interface {
	IsValid(p spatialmath.Pose2D) bool
	SampleRandomFrontier() iter.Seq[spatialmath.Pose2D]
}

// PlanToFrontier draws random frontier poses and returns the first plan that reaches one. Poses
// closer than minDistance to start, and plans that would not move the robot, are skipped. It
// gives up with NoFrontierReachable after maxAttempts candidates or when there is no frontier.
func PlanToFrontier(
	ctx context.Context,
	start spatialmath.Pose2D,
	planner motionplan.MotionPlanner,
	space FrontierSpace,
	maxAttempts int,
	minDistance float64,
	logger logging.Logger,
) (*motionplan.Plan, error) {
	return planToCandidates(
		ctx, start, planner, space.IsValid, space.SampleRandomFrontier(), maxAttempts, minDistance, logger)
}

func planToCandidates(
	ctx context.Context,
	start spatialmath.Pose2D,
	planner motionplan.MotionPlanner,
	isValid func(spatialmath.Pose2D) bool,
	candidates iter.Seq[spatialmath.Pose2D],
	maxAttempts int,
	minDistance float64,
	logger logging.Logger,
) (*motionplan.Plan, error) {
	attempts := 0
	for goal := range candidates {
		if attempts >= maxAttempts {
			break
		}
		attempts++
		if goal.DistanceXY(start) < minDistance {
			logger.Debugw("skipping frontier candidate next to the start", "goal", goal)
			continue
		}
		if !isValid(goal) {
			logger.Debugw("skipping invalid frontier candidate", "goal", goal)
			continue
		}
		plan, err := planner.Plan(ctx, start, goal)
		if err == nil {
			if len(plan.Poses) < 2 {
				logger.Debugw("frontier candidate is already reached", "goal", goal)
				continue
			}
			logger.Debugw("planned to frontier", "goal", goal, "attempt", attempts, "poses", len(plan.Poses))
			return plan, nil
		}
		var pf *motionplan.PlanFailure
		if ctx.Err() != nil || !errors.As(err, &pf) || pf.Reason == motionplan.InvalidStart {
			return nil, err
		}
		logger.Debugw("could not plan to frontier candidate", "goal", goal, "error", err)
	}
	return nil, &motionplan.PlanFailure{Reason: motionplan.NoFrontierReachable, Iterations: attempts}
}

// nearestFrontier yields frontier cell centres at least minDistance from start, ordered by
// distance, ties broken by cell order, each facing away from start.
func nearestFrontier(
	space *mapping.NavigationSpace,
	start spatialmath.Pose2D,
	minDistance float64,
) iter.Seq[spatialmath.Pose2D] {
	return func(yield func(spatialmath.Pose2D) bool) {
		m := space.Map()
		cells := space.Frontier().Cells()
		goals := make([]spatialmath.Pose2D, 0, len(cells))
		for _, c := range cells {
			x, y := m.GridToWorld(c.X, c.Y)
			if math.Hypot(x-start.X, y-start.Y) < minDistance {
				continue
			}
			goals = append(goals, spatialmath.NewPose2D(x, y, math.Atan2(y-start.Y, x-start.X)))
		}
		slices.SortStableFunc(goals, func(a, b spatialmath.Pose2D) int {
			da, db := a.DistanceXY(start), b.DistanceXY(start)
			switch {
			case da < db:
				return -1
			case da > db:
				return 1
			}
			return 0
		})
		for _, g := range goals {
			if !yield(g) {
				return
			}
		}
	}
}
