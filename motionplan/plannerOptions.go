package motionplan

import (
	"runtime"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// default values for planning options.
const (
	// max number of sample-extend-connect rounds before giving up.
	defaultMaxIterations = 2000

	// longest single extension, in the configuration space's distance units.
	defaultStepSize = 0.25

	// probability of sampling the other tree's root instead of a random pose.
	defaultGoalBias = 0.1

	// two poses closer than this are the same pose.
	defaultConnectTolerance = 1e-3

	// default number of random shortcut attempts after a plan is found.
	defaultSmoothIter = 20

	// how many uniform draws to try before settling for an invalid sample.
	defaultMaxSampleTries = 50

	// extensions that collide are retried at this many evenly spaced fractions of the step.
	defaultSubSteps = 8
)

var defaultNumThreads = max(runtime.NumCPU()/2, 1)

// PlannerOptions configures RRT-Connect.
type PlannerOptions struct {
	MaxIterations    int     `json:"max_iterations"`
	StepSize         float64 `json:"step_size"`
	GoalBias         float64 `json:"goal_bias"`
	ConnectTolerance float64 `json:"connect_tolerance"`
	SmoothIter       int     `json:"smooth_iter"`
	MaxSampleTries   int     `json:"max_sample_tries"`
	SubSteps         int     `json:"sub_steps"`
	NumThreads       int     `json:"num_threads"`
	RandSeed         int64   `json:"rand_seed"`
}

// NewDefaultPlannerOptions returns the default options.
func NewDefaultPlannerOptions() *PlannerOptions {
	return &PlannerOptions{
		MaxIterations:    defaultMaxIterations,
		StepSize:         defaultStepSize,
		GoalBias:         defaultGoalBias,
		ConnectTolerance: defaultConnectTolerance,
		SmoothIter:       defaultSmoothIter,
		MaxSampleTries:   defaultMaxSampleTries,
		SubSteps:         defaultSubSteps,
		NumThreads:       defaultNumThreads,
		RandSeed:         1,
	}
}

// ConvertAttributes overrides options from a loosely typed attribute map, as found in the
// "extra" section of a config. Unknown keys are an error.
func (opts *PlannerOptions) ConvertAttributes(attrs map[string]interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           opts,
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(attrs); err != nil {
		return errors.Wrap(err, "invalid planner attributes")
	}
	return opts.Validate()
}

// Validate rejects options the planner cannot run with.
func (opts *PlannerOptions) Validate() error {
	switch {
	case opts.MaxIterations <= 0:
		return errors.Errorf("max_iterations must be positive, got %d", opts.MaxIterations)
	case opts.StepSize <= 0:
		return errors.Errorf("step_size must be positive, got %v", opts.StepSize)
	case opts.GoalBias < 0 || opts.GoalBias > 1:
		return errors.Errorf("goal_bias must be in [0, 1], got %v", opts.GoalBias)
	case opts.ConnectTolerance < 0:
		return errors.Errorf("connect_tolerance must be non-negative, got %v", opts.ConnectTolerance)
	case opts.SmoothIter < 0:
		return errors.Errorf("smooth_iter must be non-negative, got %d", opts.SmoothIter)
	case opts.MaxSampleTries <= 0:
		return errors.Errorf("max_sample_tries must be positive, got %d", opts.MaxSampleTries)
	case opts.SubSteps <= 0:
		return errors.Errorf("sub_steps must be positive, got %d", opts.SubSteps)
	case opts.NumThreads <= 0:
		return errors.Errorf("num_threads must be positive, got %d", opts.NumThreads)
	}
	return nil
}
