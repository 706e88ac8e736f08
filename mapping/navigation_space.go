package mapping

import (
	"iter"
	"math"
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/voxelnav/spatialmath"
)

// RobotModel is the robot's footprint: a rectangle Length long along the heading and Width wide,
// centred on the base pose.
type RobotModel struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
}

// NavigationConfig tunes validity and sampling.
type NavigationConfig struct {
	// DilateObstacleSize grows obstacles by this many metres before collision checks.
	DilateObstacleSize float64 `json:"dilate_obstacle_size"`
	// DilateFrontierSize is how many cells from unexplored space a frontier cell may be.
	DilateFrontierSize int `json:"dilate_frontier_size"`
	// ExplorationSafety rejects poses whose own cell has not been observed.
	ExplorationSafety bool    `json:"exploration_safety"`
	StepSize          float64 `json:"step_size"`
	RotationStepSize  float64 `json:"rotation_step_size"`
	MaxSampleAttempts int     `json:"max_sample_attempts"`
	Seed              int64   `json:"seed"`
}

// DefaultNavigationConfig returns the default navigation settings.
func DefaultNavigationConfig() NavigationConfig {
	return NavigationConfig{
		DilateObstacleSize: 0.05,
		DilateFrontierSize: 1,
		ExplorationSafety:  true,
		StepSize:           0.1,
		RotationStepSize:   0.2,
		MaxSampleAttempts:  100,
		Seed:               1,
	}
}

// Validate rejects unusable settings.
func (cfg NavigationConfig) Validate() error {
	switch {
	case cfg.DilateObstacleSize < 0:
		return errors.Errorf("obstacle dilation must be non-negative, got %v", cfg.DilateObstacleSize)
	case cfg.DilateFrontierSize < 0:
		return errors.Errorf("frontier dilation must be non-negative, got %d", cfg.DilateFrontierSize)
	case cfg.StepSize <= 0:
		return errors.Errorf("step size must be positive, got %v", cfg.StepSize)
	case cfg.RotationStepSize <= 0:
		return errors.Errorf("rotation step size must be positive, got %v", cfg.RotationStepSize)
	case cfg.MaxSampleAttempts <= 0:
		return errors.Errorf("max sample attempts must be positive, got %d", cfg.MaxSampleAttempts)
	}
	return nil
}

// NavigationSpace answers pose validity and sampling queries against the current 2D map.
type NavigationSpace struct {
	voxelMap *SparseVoxelMap
	robot    RobotModel
	cfg      NavigationConfig

	mu    sync.Mutex
	masks *navMasks

	rngMu sync.Mutex
	rng   *rand.Rand
}

type navMasks struct {
	version   uint64
	obstacles Mask
	explored  Mask
	frontier  Mask

	hasBounds              bool
	minX, minY, maxX, maxY float64
}

// NewNavigationSpace wraps a voxel map.
func NewNavigationSpace(m *SparseVoxelMap, robot RobotModel, cfg NavigationConfig) (*NavigationSpace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid navigation config")
	}
	if robot.Length < 0 || robot.Width < 0 {
		return nil, errors.Errorf("robot footprint must be non-negative, got %+v", robot)
	}
	return &NavigationSpace{
		voxelMap: m,
		robot:    robot,
		cfg:      cfg,
		//nolint:gosec
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Map returns the underlying voxel map.
func (ns *NavigationSpace) Map() *SparseVoxelMap {
	return ns.voxelMap
}

// Config returns the navigation settings.
func (ns *NavigationSpace) Config() NavigationConfig {
	return ns.cfg
}

// current rebuilds the derived masks when the map version moved.
func (ns *NavigationSpace) current() *navMasks {
	version := ns.voxelMap.Version()
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.masks != nil && ns.masks.version == version {
		return ns.masks
	}
	obstacles, explored := ns.voxelMap.Get2DMap()
	radius := int(math.Ceil(ns.cfg.DilateObstacleSize/ns.voxelMap.Resolution() - 1e-9))
	dilated := obstacles.Dilate(radius)

	frontierReach := max(ns.cfg.DilateFrontierSize, 1)
	nearUnexplored := explored.Not().Dilate(frontierReach)
	frontier := explored.And(dilated.Not()).And(nearUnexplored)

	masks := &navMasks{version: version, obstacles: dilated, explored: explored, frontier: frontier}
	masks.minX, masks.minY, masks.maxX, masks.maxY, masks.hasBounds = ns.voxelMap.ExploredBounds()
	ns.masks = masks
	return masks
}

// Obstacles returns the dilated obstacle mask that IsValid checks against.
func (ns *NavigationSpace) Obstacles() Mask {
	return ns.current().obstacles.Clone()
}

// Frontier returns explored free cells within DilateFrontierSize cells of unexplored space.
func (ns *NavigationSpace) Frontier() Mask {
	return ns.current().frontier.Clone()
}

// IsValid reports whether the robot footprint at p stays on the grid and clear of dilated
// obstacles. With ExplorationSafety the cell under p must also be explored.
func (ns *NavigationSpace) IsValid(p spatialmath.Pose2D) bool {
	masks := ns.current()
	ci, cj, ok := ns.voxelMap.WorldToGrid(p.X, p.Y)
	if !ok {
		return false
	}
	if ns.cfg.ExplorationSafety && !masks.explored.At(ci, cj) {
		return false
	}
	valid := true
	ns.footprint(p, func(i, j int) bool {
		if !masks.obstacles.InBounds(i, j) || masks.obstacles.At(i, j) {
			valid = false
			return false
		}
		return true
	})
	return valid
}

// footprint visits the pose's own cell and every cell whose centre lies inside the footprint
// rectangle, until visit returns false.
func (ns *NavigationSpace) footprint(p spatialmath.Pose2D, visit func(i, j int) bool) {
	res := ns.voxelMap.Resolution()
	ci, cj, _ := ns.voxelMap.WorldToGrid(p.X, p.Y)
	if !visit(ci, cj) {
		return
	}
	hl, hw := ns.robot.Length/2, ns.robot.Width/2
	if hl == 0 && hw == 0 {
		return
	}
	reach := int(math.Ceil(math.Hypot(hl, hw)/res)) + 1
	s, c := math.Sincos(p.Theta)
	for j := cj - reach; j <= cj+reach; j++ {
		for i := ci - reach; i <= ci+reach; i++ {
			if i == ci && j == cj {
				continue
			}
			x, y := ns.voxelMap.GridToWorld(i, j)
			dx, dy := x-p.X, y-p.Y
			lx, ly := c*dx+s*dy, -s*dx+c*dy
			if math.Abs(lx) > hl || math.Abs(ly) > hw {
				continue
			}
			if !visit(i, j) {
				return
			}
		}
	}
}

func (ns *NavigationSpace) randFloat() float64 {
	ns.rngMu.Lock()
	defer ns.rngMu.Unlock()
	return ns.rng.Float64()
}

func (ns *NavigationSpace) randIntn(n int) int {
	ns.rngMu.Lock()
	defer ns.rngMu.Unlock()
	return ns.rng.Intn(n)
}

// SampleNearMask lazily yields up to MaxSampleAttempts poses within radius metres of mask,
// outside it, on explored obstacle-free cells, facing the mask centroid. Callers still check
// IsValid. Ranging again starts a fresh batch of draws.
func (ns *NavigationSpace) SampleNearMask(mask Mask, radius float64) iter.Seq[spatialmath.Pose2D] {
	return func(yield func(spatialmath.Pose2D) bool) {
		ci, cj, ok := mask.Centroid()
		if !ok {
			return
		}
		masks := ns.current()
		reach := int(math.Ceil(radius / ns.voxelMap.Resolution()))
		candidates := mask.Dilate(reach).And(mask.Not()).And(masks.explored).And(masks.obstacles.Not()).Cells()
		if len(candidates) == 0 {
			return
		}
		tx, ty := ns.cellCentre(ci, cj)
		for attempt := 0; attempt < ns.cfg.MaxSampleAttempts; attempt++ {
			cell := candidates[ns.randIntn(len(candidates))]
			x, y := ns.voxelMap.GridToWorld(cell.X, cell.Y)
			if !yield(spatialmath.NewPose2D(x, y, math.Atan2(ty-y, tx-x))) {
				return
			}
		}
	}
}

// cellCentre converts fractional cell coordinates to world coordinates.
func (ns *NavigationSpace) cellCentre(ci, cj float64) (float64, float64) {
	half := float64(ns.voxelMap.GridSize() / 2)
	res := ns.voxelMap.Resolution()
	return (ci - half + 0.5) * res, (cj - half + 0.5) * res
}

// SampleRandomFrontier yields frontier poses with random headings forever. It yields nothing
// when the map has no frontier.
func (ns *NavigationSpace) SampleRandomFrontier() iter.Seq[spatialmath.Pose2D] {
	return func(yield func(spatialmath.Pose2D) bool) {
		cells := ns.current().frontier.Cells()
		if len(cells) == 0 {
			return
		}
		for {
			cell := cells[ns.randIntn(len(cells))]
			x, y := ns.voxelMap.GridToWorld(cell.X, cell.Y)
			theta := (ns.randFloat()*2 - 1) * math.Pi
			if !yield(spatialmath.NewPose2D(x, y, theta)) {
				return
			}
		}
	}
}

// SampleUniform draws a pose uniformly over the explored bounding box. Before anything has been
// explored it draws from the cell around the origin.
func (ns *NavigationSpace) SampleUniform(rng *rand.Rand) spatialmath.Pose2D {
	masks := ns.current()
	minX, minY, maxX, maxY := masks.minX, masks.minY, masks.maxX, masks.maxY
	if !masks.hasBounds {
		res := ns.voxelMap.Resolution()
		minX, minY, maxX, maxY = -res, -res, res, res
	}
	return spatialmath.NewPose2D(
		minX+rng.Float64()*(maxX-minX),
		minY+rng.Float64()*(maxY-minY),
		(rng.Float64()*2-1)*math.Pi,
	)
}

// Distance mixes translation with rotation, a turn of RotationStepSize costing as much as a move
// of StepSize.
func (ns *NavigationSpace) Distance(a, b spatialmath.Pose2D) float64 {
	rot := math.Abs(spatialmath.AngleDiff(a.Theta, b.Theta))
	return a.DistanceXY(b) + rot*ns.cfg.StepSize/ns.cfg.RotationStepSize
}

// Interpolate moves a fraction t from a toward b, turning the short way.
func (ns *NavigationSpace) Interpolate(a, b spatialmath.Pose2D, t float64) spatialmath.Pose2D {
	return spatialmath.NewPose2D(
		a.X+t*(b.X-a.X),
		a.Y+t*(b.Y-a.Y),
		spatialmath.InterpolateAngle(a.Theta, b.Theta, t),
	)
}

// Steer returns to if it is within maxStep of from, otherwise the pose maxStep along the way.
func (ns *NavigationSpace) Steer(from, to spatialmath.Pose2D, maxStep float64) spatialmath.Pose2D {
	d := ns.Distance(from, to)
	if d <= maxStep {
		return to
	}
	return ns.Interpolate(from, to, maxStep/d)
}

// CheckPath validates intermediate poses at least every half cell and every half rotation step,
// always including the midpoint and b itself. a is assumed valid.
func (ns *NavigationSpace) CheckPath(a, b spatialmath.Pose2D) bool {
	res := ns.voxelMap.Resolution()
	steps := int(math.Ceil(a.DistanceXY(b) / (res / 2)))
	rotSteps := int(math.Ceil(math.Abs(spatialmath.AngleDiff(a.Theta, b.Theta)) / (ns.cfg.RotationStepSize / 2)))
	steps = max(steps, rotSteps, 2)
	for k := 1; k <= steps; k++ {
		if !ns.IsValid(ns.Interpolate(a, b, float64(k)/float64(steps))) {
			return false
		}
	}
	return true
}
