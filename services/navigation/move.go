package navigation

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/voxelnav/spatialmath"
)

// MoveToInstance tries each match in order: it samples goal poses around the instance, plans to
// up to PlansPerInstance of them and executes the first plan found. The robot then faces the
// instance and switches to the manipulation posture. Instances with no reachable pose have their
// attempt count raised, and those that failed MaxInstanceAttempts times are not tried again. It
// reports whether the robot arrived somewhere.
func (a *Agent) MoveToInstance(ctx context.Context, matches []Match) (bool, error) {
	matches = a.FilterMatches(matches, a.cfg.MaxInstanceAttempts)
	if len(matches) == 0 {
		a.logger.Debug("no instance left to move to")
		return false, nil
	}
	if err := a.robot.MoveToNavPosture(ctx); err != nil {
		return false, errors.Wrap(err, "moving to navigation posture")
	}
	start, err := a.ensureValidStart(ctx)
	if err != nil {
		return false, err
	}

	for _, m := range matches {
		inst := m.Instance
		mask := a.vmap.MaskFromBounds(inst.Bounds)
		planned := 0
		for goal := range a.space.SampleNearMask(mask, a.cfg.InstanceRadius) {
			if planned >= a.cfg.PlansPerInstance {
				break
			}
			if !a.space.IsValid(goal) {
				continue
			}
			planned++
			plan, err := a.planner.Plan(ctx, start, goal)
			if err != nil {
				if ctx.Err() != nil {
					return false, err
				}
				a.logger.Debugw("could not plan to instance", "instance", inst.ID, "goal", goal, "error", err)
				continue
			}

			a.logger.Infow("moving to instance", "instance", inst.ID, "category", m.Category, "goal", goal)
			if err := a.execute(ctx, plan); err != nil {
				return false, err
			}
			if err := a.faceInstance(ctx, plan.Goal(), m); err != nil {
				return false, err
			}
			if err := a.robot.MoveToManipPosture(ctx); err != nil {
				return false, errors.Wrap(err, "moving to manipulation posture")
			}
			return true, nil
		}
		a.recordFailure(inst.ID)
		a.logger.Infow("no reachable pose near instance", "instance", inst.ID, "planned", planned)
	}
	return false, nil
}

func (a *Agent) faceInstance(ctx context.Context, at spatialmath.Pose2D, m Match) error {
	c := m.Instance.Bounds.Center()
	heading := math.Atan2(c.Y-at.Y, c.X-at.X)
	if err := a.robot.NavigateTo(ctx, spatialmath.NewPose2D(at.X, at.Y, heading), false); err != nil {
		return errors.Wrap(err, "turning to face instance")
	}
	return nil
}

func (a *Agent) recordFailure(id int) {
	a.attemptsMu.Lock()
	defer a.attemptsMu.Unlock()
	a.attempts[id]++
}

// Attempts is the number of failed MoveToInstance attempts recorded for an instance.
func (a *Agent) Attempts(id int) int {
	a.attemptsMu.Lock()
	defer a.attemptsMu.Unlock()
	return a.attempts[id]
}

// FilterMatches drops matches whose instance has already failed threshold or more times. A
// non-positive threshold uses MaxInstanceAttempts.
func (a *Agent) FilterMatches(matches []Match, threshold int) []Match {
	if threshold <= 0 {
		threshold = a.cfg.MaxInstanceAttempts
	}
	a.attemptsMu.Lock()
	defer a.attemptsMu.Unlock()
	return lo.Filter(matches, func(m Match, _ int) bool {
		return a.attempts[m.Instance.ID] < threshold
	})
}
