package motionplan

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/voxelnav/logging"
	"go.viam.com/voxelnav/spatialmath"
)

type extendStatus int

const (
	trapped extendStatus = iota
	advanced
	reached
)

// RRTConnect grows one tree from the start and one from the goal and tries to join them on every
// iteration.
type RRTConnect struct {
	space  ConfigurationSpace
	opts   *PlannerOptions
	logger logging.Logger
	nm     *neighborManager
}

// NewRRTConnect creates a planner over the given space. A nil opts uses the defaults.
func NewRRTConnect(space ConfigurationSpace, opts *PlannerOptions, logger logging.Logger) (*RRTConnect, error) {
	if opts == nil {
		opts = NewDefaultPlannerOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &RRTConnect{
		space:  space,
		opts:   opts,
		logger: logger,
		nm:     &neighborManager{space: space, nCPU: opts.NumThreads},
	}, nil
}

// Options returns the planner's options.
func (mp *RRTConnect) Options() *PlannerOptions {
	return mp.opts
}

type rrtSolution struct {
	plan *Plan
	err  error
}

// Plan searches for a path from start to goal. Every search failure is a *PlanFailure. A panic
// inside the search is returned as a plain error.
func (mp *RRTConnect) Plan(ctx context.Context, start, goal spatialmath.Pose2D) (*Plan, error) {
	if !mp.space.IsValid(start) {
		return nil, NewPlanFailure(InvalidStart)
	}
	if !mp.space.IsValid(goal) {
		return nil, NewPlanFailure(InvalidGoal)
	}
	if mp.space.Distance(start, goal) <= mp.opts.ConnectTolerance {
		return &Plan{Poses: []spatialmath.Pose2D{start}}, nil
	}

	solutionChan := make(chan *rrtSolution, 1)
	utils.PanicCapturingGo(func() {
		defer func() {
			if r := recover(); r != nil {
				mp.logger.Errorw("planner panicked", "error", r)
				select {
				case solutionChan <- &rrtSolution{err: errors.Errorf("planner panicked: %v", r)}:
				default:
				}
			}
		}()
		mp.planRunner(ctx, start, goal, solutionChan)
	})
	select {
	case <-ctx.Done():
		return nil, &PlanFailure{Reason: Timeout, Err: ctx.Err()}
	case solution := <-solutionChan:
		return solution.plan, solution.err
	}
}

func (mp *RRTConnect) planRunner(
	ctx context.Context,
	start, goal spatialmath.Pose2D,
	solutionChan chan<- *rrtSolution,
) {
	rng := rand.New(rand.NewSource(mp.opts.RandSeed)) //nolint:gosec
	map1, map2 := newTree(start, true), newTree(goal, false)

	for i := 1; i <= mp.opts.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			solutionChan <- &rrtSolution{err: &PlanFailure{Reason: Timeout, Iterations: i - 1, Err: err}}
			return
		}

		target := mp.sample(rng, map2)
		newNode, status := mp.extend(map1, target)
		if status != trapped {
			if meet, ok := mp.connect(ctx, map2, newNode.pose); ok {
				path := extractPath(map1, nodePair{a: newNode, b: meet})
				mp.logger.Debugf("found path of %d poses after %d iterations", len(path), i)
				plan := &Plan{Iterations: i, TreeNodes: len(map1.nodes) + len(map2.nodes)}
				plan.Poses = mp.smooth(ctx, rng, path)
				solutionChan <- &rrtSolution{plan: plan}
				return
			}
		}
		map1, map2 = map2, map1
	}
	solutionChan <- &rrtSolution{err: &PlanFailure{Reason: Exhausted, Iterations: mp.opts.MaxIterations}}
}

// sample returns the other tree's root with probability GoalBias, otherwise a uniform draw that
// is retried until valid or out of tries.
func (mp *RRTConnect) sample(rng *rand.Rand, other *rrtTree) spatialmath.Pose2D {
	if rng.Float64() < mp.opts.GoalBias {
		return other.root().pose
	}
	var q spatialmath.Pose2D
	for range mp.opts.MaxSampleTries {
		q = mp.space.SampleUniform(rng)
		if mp.space.IsValid(q) {
			break
		}
	}
	return q
}

// extend steps the nearest node of tree toward target. If the full step collides, the farthest
// collision-free fraction of it is added instead.
func (mp *RRTConnect) extend(tree *rrtTree, target spatialmath.Pose2D) (*node, extendStatus) {
	near := mp.nm.nearestNeighbor(target, tree)
	if mp.space.Distance(near.pose, target) <= mp.opts.ConnectTolerance {
		return near, reached
	}
	step := mp.space.Steer(near.pose, target, mp.opts.StepSize)
	if mp.space.CheckPath(near.pose, step) {
		status := advanced
		if mp.space.Distance(step, target) <= mp.opts.ConnectTolerance {
			status = reached
		}
		return tree.add(step, near), status
	}
	for k := mp.opts.SubSteps - 1; k > 0; k-- {
		partial := mp.space.Interpolate(near.pose, step, float64(k)/float64(mp.opts.SubSteps))
		if mp.space.Distance(near.pose, partial) <= mp.opts.ConnectTolerance {
			break
		}
		if mp.space.CheckPath(near.pose, partial) {
			return tree.add(partial, near), advanced
		}
	}
	return near, trapped
}

// connect extends tree toward target until it gets there or stalls. The node holding target is
// returned when it was reached.
func (mp *RRTConnect) connect(ctx context.Context, tree *rrtTree, target spatialmath.Pose2D) (*node, bool) {
	for ctx.Err() == nil {
		n, status := mp.extend(tree, target)
		switch status {
		case reached:
			return n, true
		case trapped:
			return nil, false
		case advanced:
		}
	}
	return nil, false
}

func (mp *RRTConnect) smooth(ctx context.Context, rng *rand.Rand, path []spatialmath.Pose2D) []spatialmath.Pose2D {
	if mp.opts.SmoothIter <= 0 {
		return path
	}
	before := len(path)
	path = Shortcut(ctx, mp.space, path, mp.opts.SmoothIter, rng)
	mp.logger.Debugf("shortcutting reduced path from %d to %d poses", before, len(path))
	return path
}
