// Package config defines the JSON configuration of a voxelnav run: the map, the planner, the
// agent's policy knobs, the simulated robot and where snapshots go.
package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/voxelnav/mapping"
	"go.viam.com/voxelnav/mapping/instance"
	"go.viam.com/voxelnav/motionplan"
	"go.viam.com/voxelnav/rimage/transform"
	"go.viam.com/voxelnav/robots/fake"
	"go.viam.com/voxelnav/services/navigation"
	"go.viam.com/voxelnav/spatialmath"
)

// Store kinds.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config is the top level configuration. Sections left out of the JSON keep their defaults.
type Config struct {
	Map        mapping.MapConfig        `json:"map"`
	Instances  instance.Config          `json:"instances"`
	Navigation mapping.NavigationConfig `json:"navigation"`
	Planner    PlannerConfig            `json:"planner"`
	Agent      AgentConfig              `json:"agent"`
	Robot      RobotConfig              `json:"robot"`
	Store      *StoreConfig             `json:"store,omitempty"`
	Debug      bool                     `json:"debug,omitempty"`

	// ConfigFilePath is where the config was read from, if anywhere.
	ConfigFilePath string `json:"-"`
}

// PlannerConfig holds the planner's extra attributes, decoded onto the default planner options.
type PlannerConfig struct {
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// AgentConfig holds the exploration and manipulation policy settings.
type AgentConfig struct {
	BackupDistance      float64              `json:"backup_distance"`
	StartRetries        int                  `json:"start_retries"`
	MaxFrontierAttempts int                  `json:"max_frontier_attempts"`
	MinFrontierDistance float64              `json:"min_frontier_distance"`
	PlansPerInstance    int                  `json:"plans_per_instance"`
	InstanceRadius      float64              `json:"instance_radius"`
	MaxInstanceAttempts int                  `json:"max_instance_attempts"`
	PositionTolerance   float64              `json:"position_tolerance"`
	RotationTolerance   float64              `json:"rotation_tolerance"`
	PlanTimeout         string               `json:"plan_timeout"`
	PublishInterval     string               `json:"publish_interval"`
	Aggregation         instance.Aggregation `json:"aggregation"`
}

// RobotConfig describes the robot footprint and the simulated robot's camera.
type RobotConfig struct {
	Length float64            `json:"length"`
	Width  float64            `json:"width"`
	Camera CameraConfig       `json:"camera"`
	Start  spatialmath.Pose2D `json:"start"`
}

// CameraConfig describes the head camera. Tilt is in radians below horizontal.
type CameraConfig struct {
	Intrinsics *transform.PinholeCameraIntrinsics `json:"intrinsics"`
	Height     float64                            `json:"height"`
	Tilt       float64                            `json:"tilt"`
}

// StoreConfig says where snapshots are written.
type StoreConfig struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// Default returns a config holding every default. The camera intrinsics are left unset and must
// be configured.
func Default() *Config {
	nav := navigation.DefaultConfig()
	return &Config{
		Map:        nav.Map,
		Instances:  nav.Instances,
		Navigation: nav.Navigation,
		Agent: AgentConfig{
			BackupDistance:      nav.BackupDistance,
			StartRetries:        nav.StartRetries,
			MaxFrontierAttempts: nav.MaxFrontierAttempts,
			MinFrontierDistance: nav.MinFrontierDistance,
			PlansPerInstance:    nav.PlansPerInstance,
			InstanceRadius:      nav.InstanceRadius,
			MaxInstanceAttempts: nav.MaxInstanceAttempts,
			PositionTolerance:   nav.PositionTolerance,
			RotationTolerance:   nav.RotationTolerance,
			PlanTimeout:         nav.PlanTimeout.String(),
			PublishInterval:     nav.PublishInterval.String(),
			Aggregation:         nav.Aggregation,
		},
		Robot: RobotConfig{
			Length: nav.Robot.Length,
			Width:  nav.Robot.Width,
			Camera: CameraConfig{Height: 1.2, Tilt: 0.6},
		},
	}
}

// Validate checks every section and returns the first problem found.
func (cfg *Config) Validate() error {
	if err := cfg.Map.Validate(); err != nil {
		return utils.NewConfigValidationError("map", err)
	}
	if err := cfg.Instances.Validate(); err != nil {
		return utils.NewConfigValidationError("instances", err)
	}
	if err := cfg.Navigation.Validate(); err != nil {
		return utils.NewConfigValidationError("navigation", err)
	}
	if _, err := cfg.Planner.Options(); err != nil {
		return utils.NewConfigValidationError("planner", err)
	}
	if err := cfg.Agent.Validate("agent"); err != nil {
		return err
	}
	if err := cfg.Robot.Validate("robot"); err != nil {
		return err
	}
	if cfg.Store != nil {
		if err := cfg.Store.Validate("store"); err != nil {
			return err
		}
	}
	return nil
}

// Options decodes the extra attributes onto the default planner options.
func (pc PlannerConfig) Options() (*motionplan.PlannerOptions, error) {
	opts := motionplan.NewDefaultPlannerOptions()
	if len(pc.Extra) == 0 {
		return opts, nil
	}
	if err := opts.ConvertAttributes(pc.Extra); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate parses the durations and leaves range checks to navigation.Config.
func (ac *AgentConfig) Validate(path string) error {
	if _, err := parseDuration(ac.PlanTimeout); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "plan_timeout"))
	}
	if _, err := parseDuration(ac.PublishInterval); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "publish_interval"))
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Validate ensures the footprint and camera are usable.
func (rc *RobotConfig) Validate(path string) error {
	if rc.Length <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "length")
	}
	if rc.Width <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "width")
	}
	return rc.Camera.Validate(fmt.Sprintf("%s.%s", path, "camera"))
}

// Validate ensures the camera has intrinsics and sits above the floor.
func (cc *CameraConfig) Validate(path string) error {
	if cc.Intrinsics == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "intrinsics")
	}
	if err := cc.Intrinsics.CheckValid(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if cc.Height <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("height must be positive, got %v", cc.Height))
	}
	return nil
}

// Validate ensures the store kind is known and has a path.
func (sc *StoreConfig) Validate(path string) error {
	if sc.Path == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "path")
	}
	switch sc.Kind {
	case StoreFile, StoreSQLite:
		return nil
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "kind")
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown store kind %q", sc.Kind))
	}
}

// NavigationConfig assembles the agent configuration. The result is validated.
func (cfg *Config) NavigationConfig() (navigation.Config, error) {
	opts, err := cfg.Planner.Options()
	if err != nil {
		return navigation.Config{}, utils.NewConfigValidationError("planner", err)
	}
	planTimeout, err := parseDuration(cfg.Agent.PlanTimeout)
	if err != nil {
		return navigation.Config{}, utils.NewConfigValidationError("agent", err)
	}
	publishInterval, err := parseDuration(cfg.Agent.PublishInterval)
	if err != nil {
		return navigation.Config{}, utils.NewConfigValidationError("agent", err)
	}
	out := navigation.Config{
		Map:                 cfg.Map,
		Instances:           cfg.Instances,
		Navigation:          cfg.Navigation,
		Robot:               mapping.RobotModel{Length: cfg.Robot.Length, Width: cfg.Robot.Width},
		Planner:             opts,
		BackupDistance:      cfg.Agent.BackupDistance,
		StartRetries:        cfg.Agent.StartRetries,
		MaxFrontierAttempts: cfg.Agent.MaxFrontierAttempts,
		MinFrontierDistance: cfg.Agent.MinFrontierDistance,
		PlansPerInstance:    cfg.Agent.PlansPerInstance,
		InstanceRadius:      cfg.Agent.InstanceRadius,
		MaxInstanceAttempts: cfg.Agent.MaxInstanceAttempts,
		PositionTolerance:   cfg.Agent.PositionTolerance,
		RotationTolerance:   cfg.Agent.RotationTolerance,
		PlanTimeout:         planTimeout,
		PublishInterval:     publishInterval,
		Aggregation:         cfg.Agent.Aggregation,
	}
	if err := out.Validate(); err != nil {
		return navigation.Config{}, utils.NewConfigValidationError("agent", err)
	}
	return out, nil
}

// FakeRobotConfig is the simulated robot's configuration.
func (cfg *Config) FakeRobotConfig() fake.Config {
	return fake.Config{
		Intrinsics:   cfg.Robot.Camera.Intrinsics,
		CameraHeight: cfg.Robot.Camera.Height,
		CameraTilt:   cfg.Robot.Camera.Tilt,
		Start:        cfg.Robot.Start,
	}
}
