// Package mapping builds the incremental spatial-semantic voxel map from posed RGB-D
// observations and derives the 2D navigation space used for planning and exploration.
package mapping

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/voxelnav/logging"
	"go.viam.com/voxelnav/mapping/instance"
	"go.viam.com/voxelnav/pointcloud"
	"go.viam.com/voxelnav/rimage"
	"go.viam.com/voxelnav/spatialmath"
	"go.viam.com/voxelnav/utils"
	"go.viam.com/voxelnav/vision"
)

// MapConfig holds the voxel map parameters. Distances are in metres.
type MapConfig struct {
	Resolution float64 `json:"voxel_size"`
	MinDepth   float64 `json:"min_depth"`
	MaxDepth   float64 `json:"max_depth"`
	// Voxels whose centre height lies in [ObsMinHeight, ObsMaxHeight] count toward obstacles.
	ObsMinHeight float64 `json:"obs_min_height"`
	ObsMaxHeight float64 `json:"obs_max_height"`
	// ObsMinDensity is the number of in-band points a column needs to become an obstacle.
	ObsMinDensity int `json:"obs_min_density"`
	// GridSize is the side of the square 2D map in cells, centred on the world origin.
	GridSize          int     `json:"grid_size"`
	MinDetectionScore float64 `json:"min_detection_score"`
}

// DefaultMapConfig returns settings suitable for an indoor mobile manipulator.
func DefaultMapConfig() MapConfig {
	return MapConfig{
		Resolution:        0.05,
		MinDepth:          0.1,
		MaxDepth:          4.0,
		ObsMinHeight:      0.1,
		ObsMaxHeight:      1.8,
		ObsMinDensity:     10,
		GridSize:          400,
		MinDetectionScore: 0.1,
	}
}

// Validate rejects inconsistent settings.
func (cfg MapConfig) Validate() error {
	switch {
	case cfg.Resolution <= 0:
		return errors.Errorf("voxel size must be positive, got %v", cfg.Resolution)
	case cfg.MinDepth < 0 || cfg.MinDepth >= cfg.MaxDepth:
		return errors.Errorf("depth range [%v, %v] is empty", cfg.MinDepth, cfg.MaxDepth)
	case cfg.ObsMinHeight >= cfg.ObsMaxHeight:
		return errors.Errorf("obstacle height band [%v, %v] is empty", cfg.ObsMinHeight, cfg.ObsMaxHeight)
	case cfg.ObsMinDensity < 1:
		return errors.Errorf("obstacle density must be at least 1, got %d", cfg.ObsMinDensity)
	case cfg.GridSize <= 0:
		return errors.Errorf("grid size must be positive, got %d", cfg.GridSize)
	}
	return nil
}

// SparseVoxelMap accumulates observations into voxels and instances. Mutations are serialized by
// a single writer lock; readers get copies of committed state.
type SparseVoxelMap struct {
	cfg    MapConfig
	logger logging.Logger

	mu           sync.RWMutex
	voxels       *pointcloud.VoxelGrid
	instances    *instance.Aggregator
	observations []*Observation
	visited      Mask
	version      uint64

	cacheMu sync.Mutex
	cache   *map2D
}

type map2D struct {
	version   uint64
	obstacles Mask
	explored  Mask
}

// NewSparseVoxelMap builds an empty map. The aggregator becomes owned by the map.
func NewSparseVoxelMap(cfg MapConfig, agg *instance.Aggregator, logger logging.Logger) (*SparseVoxelMap, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid voxel map config")
	}
	if agg == nil {
		return nil, errors.New("voxel map needs an instance aggregator")
	}
	return &SparseVoxelMap{
		cfg:       cfg,
		logger:    logger,
		voxels:    pointcloud.NewVoxelGrid(cfg.Resolution),
		instances: agg,
		visited:   NewMask(cfg.GridSize),
	}, nil
}

// Config returns the map settings.
func (m *SparseVoxelMap) Config() MapConfig {
	return m.cfg
}

// Resolution is the voxel and 2D cell size.
func (m *SparseVoxelMap) Resolution() float64 {
	return m.cfg.Resolution
}

// GridSize is the side of the 2D map in cells.
func (m *SparseVoxelMap) GridSize() int {
	return m.cfg.GridSize
}

// Version increments on every successful AddObservation and Reset.
func (m *SparseVoxelMap) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// WorldToGrid returns the 2D cell containing (x, y). ok is false outside the grid.
func (m *SparseVoxelMap) WorldToGrid(x, y float64) (i, j int, ok bool) {
	half := m.cfg.GridSize / 2
	i = int(math.Floor(x/m.cfg.Resolution)) + half
	j = int(math.Floor(y/m.cfg.Resolution)) + half
	return i, j, i >= 0 && j >= 0 && i < m.cfg.GridSize && j < m.cfg.GridSize
}

// GridToWorld returns the centre of cell (i, j).
func (m *SparseVoxelMap) GridToWorld(i, j int) (x, y float64) {
	half := m.cfg.GridSize / 2
	return (float64(i-half) + 0.5) * m.cfg.Resolution, (float64(j-half) + 0.5) * m.cfg.Resolution
}

// framePoint is one back-projected pixel.
type framePoint struct {
	pos     r3.Vector
	color   color.NRGBA
	frameID int
}

// AddObservation validates obs, resolves its detections into instances and folds its points
// into the voxel grid. Invalid observations leave the map untouched and return an error
// wrapping ErrInvalidObservation.
func (m *SparseVoxelMap) AddObservation(ctx context.Context, obs *Observation) error {
	pose, err := obs.validate()
	if err != nil {
		return err
	}
	points, err := m.backProject(ctx, obs, pose)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	obsIndex := len(m.observations)
	frameToGlobal := m.associate(obs, pose, points, obsIndex)
	for _, p := range points {
		global, ok := frameToGlobal[p.frameID]
		if !ok {
			global = pointcloud.NoInstance
		}
		m.voxels.AddPoint(p.pos, p.color, global)
	}
	if i, j, ok := m.WorldToGrid(obs.BasePose.X, obs.BasePose.Y); ok {
		m.visited.Set(i, j, true)
	}
	m.observations = append(m.observations, obs)
	m.version++
	m.logger.Debugw("added observation",
		"index", obsIndex, "points", len(points), "voxels", m.voxels.Len(), "instances", m.instances.Len())
	return nil
}

// backProject lifts every pixel with an in-range depth into the world frame. Rows are processed
// in parallel and merged in row order.
func (m *SparseVoxelMap) backProject(ctx context.Context, obs *Observation, pose *spatialmath.Pose) ([]framePoint, error) {
	w, h := obs.Intrinsics.Width, obs.Intrinsics.Height
	var groups [][]framePoint
	err := utils.GroupWorkParallel(
		ctx,
		h,
		func(numGroups int) {
			groups = make([][]framePoint, numGroups)
		},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			var pts []framePoint
			return func(memberNum, y int) {
					for x := 0; x < w; x++ {
						d := obs.Depth.GetDepth(x, y).Meters()
						if d == 0 || d < m.cfg.MinDepth || d > m.cfg.MaxDepth {
							continue
						}
						frameID := vision.Background
						if obs.InstanceIDs != nil {
							frameID = obs.InstanceIDs[y*w+x]
						}
						pts = append(pts, framePoint{
							pos:     pose.Transform(obs.Intrinsics.PixelToPoint(float64(x), float64(y), d)),
							color:   obs.RGB.NRGBAAt(obs.RGB.Rect.Min.X+x, obs.RGB.Rect.Min.Y+y),
							frameID: frameID,
						})
					}
				}, func() {
					groups[groupNum] = pts
				}
		},
	)
	if err != nil {
		return nil, err
	}
	var n int
	for _, g := range groups {
		n += len(g)
	}
	points := make([]framePoint, 0, n)
	for _, g := range groups {
		points = append(points, g...)
	}
	return points, nil
}

// associate builds one view per usable detection and hands them to the aggregator. It returns
// the frame id to global id mapping; dropped detections are absent.
func (m *SparseVoxelMap) associate(
	obs *Observation,
	pose *spatialmath.Pose,
	points []framePoint,
	obsIndex int,
) map[int]int {
	if len(obs.Detections) == 0 {
		return nil
	}
	perID := map[int][]r3.Vector{}
	for _, p := range points {
		if p.frameID != vision.Background {
			perID[p.frameID] = append(perID[p.frameID], p.pos)
		}
	}

	minPoints := m.instances.Config().MinPoints
	var frameDets []instance.FrameDetection
	for _, det := range obs.Detections {
		if det.Score < m.cfg.MinDetectionScore {
			continue
		}
		pts := perID[det.InstanceID]
		if len(pts) == 0 || len(pts) < minPoints {
			continue
		}
		bounds, _ := spatialmath.NewBoundsFromPoints(pts)
		// pad by half a voxel so a single visible surface still has volume
		pad := r3.Vector{X: m.cfg.Resolution / 2, Y: m.cfg.Resolution / 2, Z: m.cfg.Resolution / 2}
		bounds = spatialmath.Bounds{Min: bounds.Min.Sub(pad), Max: bounds.Max.Add(pad)}
		mask := instanceMask(obs, det.InstanceID)
		crop := det.Crop
		if crop == nil {
			crop = rimage.Crop(obs.RGB, mask.Rect.Add(obs.RGB.Rect.Min))
		}
		frameDets = append(frameDets, instance.FrameDetection{
			Detection: det,
			View: &instance.InstanceView{
				Crop:        crop,
				Mask:        mask,
				CameraPose:  pose,
				Score:       det.Score,
				Embedding:   det.Embedding,
				Bounds:      bounds,
				Observation: obsIndex,
			},
		})
	}
	if len(frameDets) == 0 {
		return nil
	}

	globalIDs := m.instances.Associate(frameDets)
	out := make(map[int]int, len(globalIDs))
	for i, fd := range frameDets {
		out[fd.Detection.InstanceID] = globalIDs[i]
	}
	return out
}

func instanceMask(obs *Observation, id int) instance.Mask {
	w := obs.Intrinsics.Width
	rect := image.Rectangle{}
	for idx, v := range obs.InstanceIDs {
		if v != id {
			continue
		}
		px := image.Rect(idx%w, idx/w, idx%w+1, idx/w+1)
		if rect.Empty() {
			rect = px
		} else {
			rect = rect.Union(px)
		}
	}
	mask := instance.Mask{Rect: rect, Pix: make([]bool, rect.Dx()*rect.Dy())}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if obs.InstanceIDs[y*w+x] == id {
				mask.Pix[(y-rect.Min.Y)*rect.Dx()+(x-rect.Min.X)] = true
			}
		}
	}
	return mask
}

// Get2DMap projects the voxels onto the ground plane. A cell is explored if the base visited it
// or any voxel in its column holds a point, and an obstacle if the column holds at least
// ObsMinDensity points in voxels whose centre height is inside the obstacle band. The result is cached per version and
// the returned masks are copies.
func (m *SparseVoxelMap) Get2DMap() (obstacles, explored Mask) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	if m.cache == nil || m.cache.version != m.version {
		m.cache = m.project()
	}
	return m.cache.obstacles.Clone(), m.cache.explored.Clone()
}

// project must be called with at least the read lock held.
func (m *SparseVoxelMap) project() *map2D {
	size := m.cfg.GridSize
	res := m.cfg.Resolution
	half := int64(size / 2)
	obstacles, explored := NewMask(size), NewMask(size)
	density := make([]int, size*size)
	for key, vox := range m.voxels.Voxels {
		i, j := key.I+half, key.J+half
		if i < 0 || j < 0 || i >= int64(size) || j >= int64(size) {
			continue
		}
		explored.Set(int(i), int(j), true)
		z := (float64(key.K) + 0.5) * res
		if z >= m.cfg.ObsMinHeight && z <= m.cfg.ObsMaxHeight {
			density[int(j)*size+int(i)] += vox.Count
		}
	}
	for idx, n := range density {
		if n >= m.cfg.ObsMinDensity {
			obstacles.bits[idx] = true
		}
		// the base has stood on visited cells even if the camera never saw them
		if m.visited.bits[idx] {
			explored.bits[idx] = true
		}
	}
	return &map2D{version: m.version, obstacles: obstacles, explored: explored}
}

// Visited marks the cells the robot base has been observed in.
func (m *SparseVoxelMap) Visited() Mask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visited.Clone()
}

// MaskFromBounds marks every cell whose square intersects the xy footprint of b.
func (m *SparseVoxelMap) MaskFromBounds(b spatialmath.Bounds) Mask {
	mask := NewMask(m.cfg.GridSize)
	i0, j0, _ := m.WorldToGrid(b.Min.X, b.Min.Y)
	i1, j1, _ := m.WorldToGrid(b.Max.X, b.Max.Y)
	for j := j0; j <= j1; j++ {
		for i := i0; i <= i1; i++ {
			mask.Set(i, j, true)
		}
	}
	return mask
}

// Instances returns copies of the instances in creation order.
func (m *SparseVoxelMap) Instances() []*instance.Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	live := m.instances.Instances()
	out := make([]*instance.Instance, len(live))
	for i, inst := range live {
		out[i] = inst.Clone()
	}
	return out
}

// Instance returns a copy of one instance.
func (m *SparseVoxelMap) Instance(id int) (*instance.Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances.Get(id)
	if !ok {
		return nil, false
	}
	return inst.Clone(), true
}

// Observations returns the ingested observations in order.
func (m *SparseVoxelMap) Observations() []*Observation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Observation(nil), m.observations...)
}

// LastObservation returns the most recent observation or nil.
func (m *SparseVoxelMap) LastObservation() *Observation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.observations) == 0 {
		return nil
	}
	return m.observations[len(m.observations)-1]
}

// Voxel returns a copy of the voxel at coords.
func (m *SparseVoxelMap) Voxel(coords pointcloud.VoxelCoords) (*pointcloud.Voxel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v := m.voxels.GetVoxelFromKey(coords)
	if v == nil {
		return nil, false
	}
	return v.Clone(), true
}

// NumVoxels is the number of occupied voxels.
func (m *SparseVoxelMap) NumVoxels() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.voxels.Len()
}

// PointCloud returns one colored point per voxel.
func (m *SparseVoxelMap) PointCloud() pointcloud.PointCloud {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.voxels.ToPointCloud()
}

// ExploredBounds is the world-space box around all explored cells.
func (m *SparseVoxelMap) ExploredBounds() (minX, minY, maxX, maxY float64, ok bool) {
	_, explored := m.Get2DMap()
	cells := explored.Cells()
	if len(cells) == 0 {
		return 0, 0, 0, 0, false
	}
	minI, minJ, maxI, maxJ := cells[0].X, cells[0].Y, cells[0].X, cells[0].Y
	for _, c := range cells[1:] {
		minI, maxI = min(minI, c.X), max(maxI, c.X)
		minJ, maxJ = min(minJ, c.Y), max(maxJ, c.Y)
	}
	res := m.cfg.Resolution
	minX, minY = m.GridToWorld(minI, minJ)
	maxX, maxY = m.GridToWorld(maxI, maxJ)
	return minX - res/2, minY - res/2, maxX + res/2, maxY + res/2, true
}

// Reset clears every voxel, instance and observation.
func (m *SparseVoxelMap) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voxels = pointcloud.NewVoxelGrid(m.cfg.Resolution)
	m.instances.Reset()
	m.observations = nil
	m.visited = NewMask(m.cfg.GridSize)
	m.version++
}
