package fake

import (
	"context"
	"image"
	"math"
	"slices"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/voxelnav/components/camera"
	"go.viam.com/voxelnav/logging"
	"go.viam.com/voxelnav/rimage"
	"go.viam.com/voxelnav/rimage/transform"
	"go.viam.com/voxelnav/robot"
	"go.viam.com/voxelnav/spatialmath"
)

// Posture names reported by Robot.Posture.
const (
	PostureNavigation   = "navigation"
	PostureManipulation = "manipulation"
)

// Config describes the simulated robot's head camera and where it starts.
type Config struct {
	Intrinsics *transform.PinholeCameraIntrinsics
	// CameraHeight is the optical centre's height above the floor in metres.
	CameraHeight float64
	// CameraTilt is the pitch below horizontal in radians.
	CameraTilt float64
	Start      spatialmath.Pose2D
	Clock      clock.Clock
}

// DefaultConfig is an 80x60 camera with a 90 degree field of view looking slightly down.
func DefaultConfig() Config {
	return Config{
		Intrinsics:   transform.NewPinholeCameraIntrinsicsFromFOV(80, 60, math.Pi/2),
		CameraHeight: 1.2,
		CameraTilt:   0.6,
	}
}

// Robot is a teleporting base carrying a ray-cast RGB-D camera. Every motion succeeds instantly.
type Robot struct {
	scene  *Scene
	cfg    Config
	logger logging.Logger

	mu           sync.Mutex
	pose         spatialmath.Pose2D
	posture      string
	manipulating bool
	trajectories [][]spatialmath.Pose2D
	navigations  int
}

var _ robot.Robot = (*Robot)(nil)

// NewRobot places a robot in scene.
func NewRobot(scene *Scene, cfg Config, logger logging.Logger) (*Robot, error) {
	if scene == nil {
		return nil, errors.New("fake robot needs a scene")
	}
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	if cfg.Intrinsics == nil {
		return nil, transform.NewNoIntrinsicsError("fake robot camera")
	}
	if err := cfg.Intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if cfg.CameraHeight <= 0 {
		return nil, errors.Errorf("camera height must be positive, got %v", cfg.CameraHeight)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if logger == nil {
		logger = logging.NewBlankLogger("fake_robot")
	}
	return &Robot{
		scene:   scene,
		cfg:     cfg,
		logger:  logger,
		pose:    cfg.Start,
		posture: PostureNavigation,
	}, nil
}

// BasePose returns the current base pose.
func (r *Robot) BasePose(ctx context.Context) (spatialmath.Pose2D, error) {
	if err := ctx.Err(); err != nil {
		return spatialmath.Pose2D{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pose, nil
}

// Observation renders the scene from the current pose.
func (r *Robot) Observation(ctx context.Context) (*camera.RGBDFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	pose := r.pose
	r.mu.Unlock()
	frame := r.Render(pose)
	frame.Timestamp = r.cfg.Clock.Now()
	return frame, nil
}

// ExecuteTrajectory jumps to the last pose of the trajectory and records it.
func (r *Robot) ExecuteTrajectory(
	ctx context.Context,
	trajectory []spatialmath.Pose2D,
	posTol, rotTol float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(trajectory) == 0 {
		return errors.New("empty trajectory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.manipulating {
		return errors.New("cannot drive the base in manipulation mode")
	}
	r.trajectories = append(r.trajectories, slices.Clone(trajectory))
	r.pose = trajectory[len(trajectory)-1]
	r.logger.Debugw("executed trajectory", "waypoints", len(trajectory), "pose", r.pose)
	return nil
}

// NavigateTo moves the base, composing pose onto the current pose when relative is set.
func (r *Robot) NavigateTo(ctx context.Context, pose spatialmath.Pose2D, relative bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.manipulating {
		return errors.New("cannot drive the base in manipulation mode")
	}
	r.navigations++
	if relative {
		r.pose = r.pose.Compose(pose)
	} else {
		r.pose = spatialmath.NewPose2D(pose.X, pose.Y, pose.Theta)
	}
	return nil
}

// MoveToNavPosture tucks the arm.
func (r *Robot) MoveToNavPosture(ctx context.Context) error {
	return r.setPosture(ctx, PostureNavigation)
}

// MoveToManipPosture raises the arm.
func (r *Robot) MoveToManipPosture(ctx context.Context) error {
	return r.setPosture(ctx, PostureManipulation)
}

func (r *Robot) setPosture(ctx context.Context, posture string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posture = posture
	return nil
}

// SwitchToNavigationMode enables base motion.
func (r *Robot) SwitchToNavigationMode(ctx context.Context) error {
	return r.setMode(ctx, false)
}

// SwitchToManipulationMode disables base motion.
func (r *Robot) SwitchToManipulationMode(ctx context.Context) error {
	return r.setMode(ctx, true)
}

func (r *Robot) setMode(ctx context.Context, manipulating bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manipulating = manipulating
	return nil
}

// Posture returns the last posture commanded.
func (r *Robot) Posture() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.posture
}

// Manipulating reports whether the robot is in manipulation mode.
func (r *Robot) Manipulating() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.manipulating
}

// Trajectories returns copies of every executed trajectory in order.
func (r *Robot) Trajectories() [][]spatialmath.Pose2D {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]spatialmath.Pose2D, 0, len(r.trajectories))
	for _, t := range r.trajectories {
		out = append(out, slices.Clone(t))
	}
	return out
}

// Navigations counts NavigateTo calls.
func (r *Robot) Navigations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.navigations
}

// CameraPose returns world_from_camera for a base pose. The camera sits above the base origin
// looking along the heading, pitched down by the configured tilt.
func (r *Robot) CameraPose(base spatialmath.Pose2D) *spatialmath.Pose {
	st, ct := math.Sincos(base.Theta)
	sp, cp := math.Sincos(r.cfg.CameraTilt)
	forward := r3.Vector{X: ct, Y: st}
	left := r3.Vector{X: -st, Y: ct}
	up := r3.Vector{Z: 1}

	z := forward.Mul(cp).Sub(up.Mul(sp))
	x := left.Mul(-1)
	y := z.Cross(x)
	return spatialmath.NewPoseFromRows(
		[3][3]float64{
			{x.X, y.X, z.X},
			{x.Y, y.Y, z.Y},
			{x.Z, y.Z, z.Z},
		},
		r3.Vector{X: base.X, Y: base.Y, Z: r.cfg.CameraHeight},
	)
}

// Render ray casts one frame from base. Pixels whose ray leaves the scene read zero depth and
// black.
func (r *Robot) Render(base spatialmath.Pose2D) *camera.RGBDFrame {
	in := r.cfg.Intrinsics
	pose := r.CameraPose(base)
	origin := pose.Point()
	rot := pose.Matrix()

	rgb := image.NewNRGBA(image.Rect(0, 0, in.Width, in.Height))
	depth := rimage.NewEmptyDepthMap(in.Width, in.Height)
	for v := range in.Height {
		for u := range in.Width {
			// Camera frame ray with unit z, so the hit distance along it is the depth.
			cx, cy := (float64(u)-in.Ppx)/in.Fx, (float64(v)-in.Ppy)/in.Fy
			dir := r3.Vector{
				X: rot.At(0, 0)*cx + rot.At(0, 1)*cy + rot.At(0, 2),
				Y: rot.At(1, 0)*cx + rot.At(1, 1)*cy + rot.At(1, 2),
				Z: rot.At(2, 0)*cx + rot.At(2, 1)*cy + rot.At(2, 2),
			}
			t, hit := r.scene.Cast(origin, dir)
			if hit == noHit {
				continue
			}
			rgb.SetNRGBA(u, v, r.scene.colorOf(hit))
			depth.Set(u, v, rimage.DepthFromMeters(t))
		}
	}
	return &camera.RGBDFrame{
		RGB:        rgb,
		Depth:      depth,
		Intrinsics: in,
		CameraPose: rot,
		BasePose:   base,
	}
}
