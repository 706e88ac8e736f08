package mapping

import (
	"go.viam.com/voxelnav/mapping/instance"
	"go.viam.com/voxelnav/pointcloud"
)

// MapState is a consistent copy of the committed map taken under a single read lock.
type MapState struct {
	Version    uint64
	Resolution float64
	GridSize   int
	Obstacles  Mask
	Explored   Mask
	Visited    Mask
	Instances  []*instance.Instance
	// Points holds one colored point per voxel, ordered by voxel coordinates.
	Points pointcloud.PointCloud
	// Last is the most recent observation, nil before the first one.
	Last *Observation
}

// State copies the committed map.
func (m *SparseVoxelMap) State() *MapState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.cacheMu.Lock()
	if m.cache == nil || m.cache.version != m.version {
		m.cache = m.project()
	}
	obstacles, explored := m.cache.obstacles.Clone(), m.cache.explored.Clone()
	m.cacheMu.Unlock()

	live := m.instances.Instances()
	insts := make([]*instance.Instance, len(live))
	for i, inst := range live {
		insts[i] = inst.Clone()
	}
	var last *Observation
	if len(m.observations) > 0 {
		last = m.observations[len(m.observations)-1]
	}
	return &MapState{
		Version:    m.version,
		Resolution: m.cfg.Resolution,
		GridSize:   m.cfg.GridSize,
		Obstacles:  obstacles,
		Explored:   explored,
		Visited:    m.visited.Clone(),
		Instances:  insts,
		Points:     m.voxels.ToPointCloud(),
		Last:       last,
	}
}
