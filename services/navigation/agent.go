package navigation

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"go.viam.com/voxelnav/data"
	"go.viam.com/voxelnav/logging"
	"go.viam.com/voxelnav/mapping"
	"go.viam.com/voxelnav/mapping/instance"
	"go.viam.com/voxelnav/motionplan"
	"go.viam.com/voxelnav/rimage"
	"go.viam.com/voxelnav/robot"
	"go.viam.com/voxelnav/spatialmath"
	"go.viam.com/voxelnav/vision"
)

// Params are the collaborators of an Agent.
type Params struct {
	Robot     robot.Robot
	Segmenter vision.Segmenter
	// Encoder is only needed for LocalizeByText and LocalizeByImage.
	Encoder vision.Encoder
	// Store receives snapshots when set. The agent closes it in Close.
	Store data.Store
	// Registerer receives the agent's metrics. Defaults to a private registry.
	Registerer prometheus.Registerer
	// Clock drives periodic snapshots. Defaults to the wall clock.
	Clock clock.Clock
	// Logger defaults to a sublogger of the global logger.
	Logger logging.Logger
}

// Agent runs the perceive, update, plan and execute loop for one robot. It is driven from a
// single goroutine.
type Agent struct {
	cfg       Config
	robot     robot.Robot
	segmenter vision.Segmenter
	encoder   vision.Encoder
	store     data.Store
	logger    logging.Logger

	vmap      *mapping.SparseVoxelMap
	space     *mapping.NavigationSpace
	planner   motionplan.MotionPlanner
	publisher *data.Publisher
	metrics   *metrics

	attemptsMu sync.Mutex
	attempts   map[int]int
}

// NewAgent builds the map, navigation space and planner. An inconsistent configuration is an
// error.
func NewAgent(cfg Config, params Params) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid agent config")
	}
	if params.Robot == nil {
		return nil, errors.New("agent needs a robot")
	}
	if params.Segmenter == nil {
		return nil, errors.New("agent needs a segmenter")
	}
	logger := params.Logger
	if logger == nil {
		logger = logging.Global().Sublogger("agent")
	}
	reg := params.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	agg, err := instance.NewAggregator(cfg.Instances, logger.Sublogger("instances"))
	if err != nil {
		return nil, err
	}
	vmap, err := mapping.NewSparseVoxelMap(cfg.Map, agg, logger.Sublogger("map"))
	if err != nil {
		return nil, err
	}
	space, err := mapping.NewNavigationSpace(vmap, cfg.Robot, cfg.Navigation)
	if err != nil {
		return nil, err
	}
	rrt, err := motionplan.NewRRTConnect(space, cfg.Planner, logger.Sublogger("planner"))
	if err != nil {
		return nil, err
	}

	a := &Agent{
		cfg:       cfg,
		robot:     params.Robot,
		segmenter: params.Segmenter,
		encoder:   params.Encoder,
		store:     params.Store,
		logger:    logger,
		vmap:      vmap,
		space:     space,
		metrics:   newMetrics(reg),
		attempts:  map[int]int{},
	}
	a.planner = &meteredPlanner{planner: rrt, metrics: a.metrics, timeout: cfg.PlanTimeout}

	if params.Store != nil {
		a.publisher, err = data.NewPublisher(data.PublisherParams{
			Interval: cfg.PublishInterval,
			Store:    params.Store,
			Capture: func(ctx context.Context) (*data.Snapshot, error) {
				return data.NewSnapshot(a.vmap.State(), "periodic", true), nil
			},
			Logger: logger.Sublogger("publisher"),
			Clock:  params.Clock,
		})
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Map returns the agent's voxel map.
func (a *Agent) Map() *mapping.SparseVoxelMap {
	return a.vmap
}

// Space returns the agent's navigation space.
func (a *Agent) Space() *mapping.NavigationSpace {
	return a.space
}

// Publisher returns the snapshot publisher, nil without a store.
func (a *Agent) Publisher() *data.Publisher {
	return a.publisher
}

// Update captures a frame, segments it and adds it to the map. Frames that fail validation or
// perception are dropped and logged, and Update still returns nil for them.
func (a *Agent) Update(ctx context.Context) error {
	frame, err := a.robot.Observation(ctx)
	if err != nil {
		return errors.Wrap(err, "getting observation")
	}
	if err := frame.Validate(); err != nil {
		a.drop("invalid_frame", err)
		return nil
	}

	seg, err := a.segmenter.Segment(ctx, frame.RGB, frame.Depth)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, vision.ErrPerceptionUnavailable) {
			err = vision.NewPerceptionUnavailableError(err)
		}
		a.drop("perception", err)
		return nil
	}

	obs := &mapping.Observation{
		Timestamp:   frame.Timestamp,
		RGB:         rimage.CloneToNRGBA(frame.RGB),
		Depth:       frame.Depth,
		Intrinsics:  frame.Intrinsics,
		CameraPose:  frame.CameraPose,
		BasePose:    frame.BasePose,
		InstanceIDs: seg.InstanceIDs,
		Detections:  seg.Detections,
	}
	if err := a.vmap.AddObservation(ctx, obs); err != nil {
		if errors.Is(err, mapping.ErrInvalidObservation) {
			a.drop("invalid_observation", err)
			return nil
		}
		return err
	}
	a.metrics.observations.Inc()
	_, explored := a.vmap.Get2DMap()
	a.metrics.explored.Set(float64(explored.Count()))
	a.metrics.instances.Set(float64(len(a.vmap.Instances())))

	if a.publisher != nil {
		if err := a.publisher.Put(ctx, data.NewSnapshot(a.vmap.State(), "update", false)); err != nil {
			a.logger.Warnw("failed to publish snapshot", "error", err)
		}
	}
	return nil
}

func (a *Agent) drop(reason string, err error) {
	a.metrics.droppedFrames.WithLabelValues(reason).Inc()
	a.logger.Warnw("dropping frame", "reason", reason, "error", err)
}

// ensureValidStart reads the base pose and, while it is invalid, backs up BackupDistance up to
// StartRetries times.
func (a *Agent) ensureValidStart(ctx context.Context) (spatialmath.Pose2D, error) {
	for backups := 0; ; backups++ {
		pose, err := a.robot.BasePose(ctx)
		if err != nil {
			return spatialmath.Pose2D{}, errors.Wrap(err, "reading base pose")
		}
		if a.space.IsValid(pose) {
			return pose, nil
		}
		if backups >= a.cfg.StartRetries {
			return pose, &motionplan.PlanFailure{
				Reason: motionplan.InvalidStart,
				Err:    errors.Errorf("start %v still invalid after %d backups", pose, backups),
			}
		}
		a.logger.Infow("start pose is invalid, backing up", "pose", pose, "backup", backups+1)
		a.metrics.backups.Inc()
		if err := a.robot.NavigateTo(ctx, spatialmath.NewPose2D(-a.cfg.BackupDistance, 0, 0), true); err != nil {
			return pose, errors.Wrap(err, "backing up")
		}
	}
}

func (a *Agent) execute(ctx context.Context, plan *motionplan.Plan) error {
	if len(plan.Poses) < 2 {
		return nil
	}
	if err := a.robot.ExecuteTrajectory(ctx, plan.Poses, a.cfg.PositionTolerance, a.cfg.RotationTolerance); err != nil {
		return errors.Wrap(err, "executing trajectory")
	}
	return nil
}

// RunExploration repeatedly plans to a frontier, moves there and updates the map. A failed plan
// only skips its iteration. Errors are returned for robot failures and cancellation, along with
// the result so far.
func (a *Agent) RunExploration(ctx context.Context, opts ExploreOptions) (*ExplorationResult, error) {
	result := &ExplorationResult{}
	logger := a.logger.Sublogger("explore")

	for result.Iterations < opts.ExploreIter {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Iterations++

		plan, err := a.planExploreStep(ctx, opts.RandomGoals, logger)
		if err != nil {
			var pf *motionplan.PlanFailure
			if !errors.As(err, &pf) || ctx.Err() != nil {
				return result, err
			}
			result.PlanFailures++
			logger.Infow("exploration step failed", "iteration", result.Iterations, "reason", pf.Reason)
			if pf.Reason == motionplan.NoFrontierReachable && a.space.Frontier().Count() == 0 {
				logger.Info("no frontier left, exploration complete")
				result.Complete = true
				break
			}
			continue
		}

		if !opts.DryRun {
			if err := a.execute(ctx, plan); err != nil {
				return result, err
			}
		}
		if err := a.Update(ctx); err != nil {
			return result, err
		}

		if opts.TaskGoal != "" {
			if matches := a.FindInstances(opts.TaskGoal); len(matches) > 0 {
				logger.Infow("found task goal", "goal", opts.TaskGoal, "matches", len(matches))
				result.Matches = matches
				break
			}
		}
	}

	if opts.GoHome {
		if err := a.GoHome(ctx); err != nil {
			if !errors.As(err, new(*motionplan.PlanFailure)) {
				return result, err
			}
			logger.Warnw("could not go home", "error", err)
		}
	}
	result.Inconclusive = opts.TaskGoal != "" && len(result.Matches) == 0
	return result, nil
}

func (a *Agent) planExploreStep(ctx context.Context, random bool, logger logging.Logger) (*motionplan.Plan, error) {
	start, err := a.ensureValidStart(ctx)
	if err != nil {
		return nil, err
	}
	minDistance := a.cfg.MinFrontierDistance
	if random {
		return PlanToFrontier(ctx, start, a.planner, a.space, a.cfg.MaxFrontierAttempts, minDistance, logger)
	}
	return planToCandidates(ctx, start, a.planner, a.space.IsValid, nearestFrontier(a.space, start, minDistance),
		a.cfg.MaxFrontierAttempts, minDistance, logger)
}

// GoHome switches back to navigation, plans to the origin and drives there.
func (a *Agent) GoHome(ctx context.Context) error {
	if err := a.robot.MoveToNavPosture(ctx); err != nil {
		return errors.Wrap(err, "moving to navigation posture")
	}
	if err := a.robot.SwitchToNavigationMode(ctx); err != nil {
		return errors.Wrap(err, "switching to navigation mode")
	}
	start, err := a.ensureValidStart(ctx)
	if err != nil {
		return err
	}
	plan, err := a.planner.Plan(ctx, start, spatialmath.NewPose2D(0, 0, 0))
	if err != nil {
		return err
	}
	return a.execute(ctx, plan)
}

// Start begins periodic publishing, switches the robot to navigation and takes a first look
// around. It returns whatever already matches goal.
func (a *Agent) Start(ctx context.Context, goal string) ([]Match, error) {
	if a.publisher != nil {
		a.publisher.Start()
	}
	if err := a.robot.SwitchToNavigationMode(ctx); err != nil {
		return nil, errors.Wrap(err, "switching to navigation mode")
	}
	if err := a.Update(ctx); err != nil {
		return nil, err
	}
	if goal == "" {
		return nil, nil
	}
	return a.FindInstances(goal), nil
}

// Close publishes a final snapshot, stops the publisher and closes the store.
func (a *Agent) Close(ctx context.Context) error {
	if a.publisher == nil {
		return nil
	}
	err := a.publisher.Put(ctx, data.NewSnapshot(a.vmap.State(), "final", false))
	a.publisher.Stop()
	return multierr.Combine(err, a.store.Close())
}
