// Package pointcloud holds the sparse voxel grid that accumulates observed points, along with
// plain point clouds and PCD export.
package pointcloud

import (
	"image/color"
	"math"
	"slices"

	"github.com/golang/geo/r3"
)

// VoxelCoords stores Voxel coordinates in VoxelGrid axes.
type VoxelCoords struct {
	I, J, K int64
}

// GetVoxelCoordinates quantizes a point. Cell (i, j, k) covers [i*res, (i+1)*res) on each axis.
func GetVoxelCoordinates(pt r3.Vector, resolution float64) VoxelCoords {
	return VoxelCoords{
		I: int64(math.Floor(pt.X / resolution)),
		J: int64(math.Floor(pt.Y / resolution)),
		K: int64(math.Floor(pt.Z / resolution)),
	}
}

// Center is the middle of the cell.
func (c VoxelCoords) Center(resolution float64) r3.Vector {
	return r3.Vector{
		X: (float64(c.I) + 0.5) * resolution,
		Y: (float64(c.J) + 0.5) * resolution,
		Z: (float64(c.K) + 0.5) * resolution,
	}
}

// Compare orders coords by I, then J, then K.
func (c VoxelCoords) Compare(o VoxelCoords) int {
	switch {
	case c.I != o.I:
		return cmpInt64(c.I, o.I)
	case c.J != o.J:
		return cmpInt64(c.J, o.J)
	default:
		return cmpInt64(c.K, o.K)
	}
}

func cmpInt64(a, b int64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// NoInstance is the vote recorded for points that belong to no object.
const NoInstance = -1

// Voxel is the accumulated state of one occupied cell.
type Voxel struct {
	Key   VoxelCoords
	Count int

	meanColor  [3]float64
	MeanHeight float64
	MinHeight  float64
	MaxHeight  float64

	// votes counts points per global instance id.
	votes map[int]int
}

// NewVoxel creates an empty voxel.
func NewVoxel(coords VoxelCoords) *Voxel {
	return &Voxel{
		Key:       coords,
		MinHeight: math.Inf(1),
		MaxHeight: math.Inf(-1),
	}
}

// AddPoint folds one point into the running statistics. instanceID may be NoInstance.
func (v *Voxel) AddPoint(pt r3.Vector, c color.NRGBA, instanceID int) {
	v.Count++
	n := float64(v.Count)
	v.meanColor[0] += (float64(c.R) - v.meanColor[0]) / n
	v.meanColor[1] += (float64(c.G) - v.meanColor[1]) / n
	v.meanColor[2] += (float64(c.B) - v.meanColor[2]) / n
	v.MeanHeight += (pt.Z - v.MeanHeight) / n
	v.MinHeight = math.Min(v.MinHeight, pt.Z)
	v.MaxHeight = math.Max(v.MaxHeight, pt.Z)
	if instanceID != NoInstance {
		if v.votes == nil {
			v.votes = map[int]int{}
		}
		v.votes[instanceID]++
	}
}

// MeanColor is the running mean color of the points.
func (v *Voxel) MeanColor() color.NRGBA {
	return color.NRGBA{
		R: uint8(math.Round(v.meanColor[0])),
		G: uint8(math.Round(v.meanColor[1])),
		B: uint8(math.Round(v.meanColor[2])),
		A: 255,
	}
}

// InstanceID is the majority vote over instance ids, ties going to the lowest id. It returns
// NoInstance when no point carried an instance.
func (v *Voxel) InstanceID() int {
	best, bestVotes := NoInstance, 0
	for id, n := range v.votes {
		if n > bestVotes || (n == bestVotes && id < best) {
			best, bestVotes = id, n
		}
	}
	return best
}

// Votes returns how many points voted for the given instance.
func (v *Voxel) Votes(instanceID int) int {
	return v.votes[instanceID]
}

// Clone deep copies the voxel.
func (v *Voxel) Clone() *Voxel {
	out := *v
	if v.votes != nil {
		out.votes = make(map[int]int, len(v.votes))
		for id, n := range v.votes {
			out.votes[id] = n
		}
	}
	return &out
}

// VoxelGrid contains the sparse grid of Voxels at a fixed resolution.
type VoxelGrid struct {
	Voxels     map[VoxelCoords]*Voxel
	resolution float64
}

// NewVoxelGrid returns an empty grid with cells resolution metres wide.
func NewVoxelGrid(resolution float64) *VoxelGrid {
	return &VoxelGrid{
		Voxels:     make(map[VoxelCoords]*Voxel),
		resolution: resolution,
	}
}

// Resolution is the cell size in metres.
func (vg *VoxelGrid) Resolution() float64 {
	return vg.resolution
}

// Len is the number of occupied cells.
func (vg *VoxelGrid) Len() int {
	return len(vg.Voxels)
}

// AddPoint creates the containing voxel if needed and updates it.
func (vg *VoxelGrid) AddPoint(pt r3.Vector, c color.NRGBA, instanceID int) *Voxel {
	coords := GetVoxelCoordinates(pt, vg.resolution)
	vox, ok := vg.Voxels[coords]
	if !ok {
		vox = NewVoxel(coords)
		vg.Voxels[coords] = vox
	}
	vox.AddPoint(pt, c, instanceID)
	return vox
}

// GetVoxelFromKey returns a pointer to a voxel from a VoxelCoords key.
func (vg *VoxelGrid) GetVoxelFromKey(coords VoxelCoords) *Voxel {
	return vg.Voxels[coords]
}

// SortedKeys returns the occupied coords in Compare order.
func (vg *VoxelGrid) SortedKeys() []VoxelCoords {
	keys := make([]VoxelCoords, 0, len(vg.Voxels))
	for k := range vg.Voxels {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, VoxelCoords.Compare)
	return keys
}

// ToPointCloud returns one colored point per voxel at the cell centre, in SortedKeys order.
func (vg *VoxelGrid) ToPointCloud() PointCloud {
	keys := vg.SortedKeys()
	out := make(PointCloud, 0, len(keys))
	for _, k := range keys {
		out = append(out, Point{Position: k.Center(vg.resolution), Color: vg.Voxels[k].MeanColor(), HasColor: true})
	}
	return out
}
