// Package navigation drives a mobile manipulator: it maps what the robot sees, explores unknown
// space through frontier goals and moves the robot next to objects it has found.
package navigation

import (
	"time"

	"github.com/pkg/errors"

	"go.viam.com/voxelnav/mapping"
	"go.viam.com/voxelnav/mapping/instance"
	"go.viam.com/voxelnav/motionplan"
)

// Config holds everything an Agent needs besides its collaborators.
type Config struct {
	Map        mapping.MapConfig
	Instances  instance.Config
	Navigation mapping.NavigationConfig
	Robot      mapping.RobotModel
	Planner    *motionplan.PlannerOptions

	// BackupDistance is how far the base reverses when it finds itself in an invalid pose.
	BackupDistance float64
	// StartRetries caps the number of backups before giving up on a move.
	StartRetries int
	// MaxFrontierAttempts is how many frontier candidates one exploration step tries.
	MaxFrontierAttempts int
	// MinFrontierDistance is how far from the base a frontier goal must be. Cells around the
	// base are often never seen by the camera, so they would otherwise stay the nearest frontier.
	MinFrontierDistance float64
	// PlansPerInstance is how many goal poses are planned to around one instance.
	PlansPerInstance int
	// InstanceRadius is the distance from an instance within which goal poses are drawn.
	InstanceRadius float64
	// MaxInstanceAttempts is the default FilterMatches threshold.
	MaxInstanceAttempts int
	PositionTolerance   float64
	RotationTolerance   float64
	// PlanTimeout bounds a single call to the planner. Zero means no bound.
	PlanTimeout     time.Duration
	PublishInterval time.Duration
	Aggregation     instance.Aggregation
}

// DefaultConfig returns the default agent settings.
func DefaultConfig() Config {
	return Config{
		Map:                 mapping.DefaultMapConfig(),
		Instances:           instance.DefaultConfig(),
		Navigation:          mapping.DefaultNavigationConfig(),
		Robot:               mapping.RobotModel{Length: 0.5, Width: 0.35},
		Planner:             motionplan.NewDefaultPlannerOptions(),
		BackupDistance:      0.1,
		StartRetries:        5,
		MaxFrontierAttempts: 10,
		MinFrontierDistance: 0.5,
		PlansPerInstance:    10,
		InstanceRadius:      0.8,
		MaxInstanceAttempts: 3,
		PositionTolerance:   0.1,
		RotationTolerance:   0.2,
		PlanTimeout:         30 * time.Second,
		PublishInterval:     5 * time.Second,
		Aggregation:         instance.AggregationMean,
	}
}

// Validate checks every section.
func (cfg Config) Validate() error {
	if err := cfg.Map.Validate(); err != nil {
		return errors.Wrap(err, "map")
	}
	if err := cfg.Instances.Validate(); err != nil {
		return errors.Wrap(err, "instances")
	}
	if err := cfg.Navigation.Validate(); err != nil {
		return errors.Wrap(err, "navigation")
	}
	if cfg.Robot.Length <= 0 || cfg.Robot.Width <= 0 {
		return errors.Errorf("robot footprint must be positive, got %vx%v", cfg.Robot.Length, cfg.Robot.Width)
	}
	if cfg.Planner == nil {
		return errors.New("planner options are required")
	}
	if err := cfg.Planner.Validate(); err != nil {
		return errors.Wrap(err, "planner")
	}
	switch {
	case cfg.BackupDistance <= 0:
		return errors.Errorf("backup distance must be positive, got %v", cfg.BackupDistance)
	case cfg.StartRetries < 0:
		return errors.Errorf("start retries must be non-negative, got %d", cfg.StartRetries)
	case cfg.MaxFrontierAttempts <= 0:
		return errors.Errorf("max frontier attempts must be positive, got %d", cfg.MaxFrontierAttempts)
	case cfg.MinFrontierDistance < 0:
		return errors.Errorf("min frontier distance must be non-negative, got %v", cfg.MinFrontierDistance)
	case cfg.PlansPerInstance <= 0:
		return errors.Errorf("plans per instance must be positive, got %d", cfg.PlansPerInstance)
	case cfg.InstanceRadius <= 0:
		return errors.Errorf("instance radius must be positive, got %v", cfg.InstanceRadius)
	case cfg.MaxInstanceAttempts <= 0:
		return errors.Errorf("max instance attempts must be positive, got %d", cfg.MaxInstanceAttempts)
	case cfg.PositionTolerance <= 0 || cfg.RotationTolerance <= 0:
		return errors.New("trajectory tolerances must be positive")
	case cfg.PlanTimeout < 0:
		return errors.Errorf("plan timeout must be non-negative, got %v", cfg.PlanTimeout)
	case cfg.Aggregation != instance.AggregationMean && cfg.Aggregation != instance.AggregationMax:
		return errors.Errorf("unknown embedding aggregation %q", cfg.Aggregation)
	}
	return nil
}

// Match is an instance proposed as the answer to a goal query.
type Match struct {
	Instance *instance.Instance
	Category string
	// Score is the detection score for category queries and the cosine similarity for
	// embedding queries.
	Score float64
}

// ExploreOptions controls RunExploration.
type ExploreOptions struct {
	// ExploreIter is the number of plan, move and update rounds.
	ExploreIter int
	// TaskGoal is a category name. Exploration stops early once it is found.
	TaskGoal string
	// RandomGoals picks random frontier cells instead of the nearest ones.
	RandomGoals bool
	// DryRun plans without moving the robot.
	DryRun bool
	// GoHome returns to the origin when exploration ends.
	GoHome bool
}

// ExplorationResult summarizes RunExploration.
type ExplorationResult struct {
	Matches []Match
	// Inconclusive is set when a TaskGoal was given and not found.
	Inconclusive bool
	Iterations   int
	PlanFailures int
	// Complete is set when exploration stopped because no frontier was left.
	Complete bool
}

// QueryStats describes the similarity scores of all candidates of an embedding query.
type QueryStats struct {
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	Raw    []float64
}
