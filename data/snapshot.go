// Package data persists snapshots of the map and publishes them in the background.
package data

import (
	"image"
	"image/color"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/voxelnav/mapping"
	"go.viam.com/voxelnav/mapping/instance"
	"go.viam.com/voxelnav/pointcloud"
	"go.viam.com/voxelnav/rimage"
	"go.viam.com/voxelnav/rimage/transform"
)

// Snapshot is the persisted record of the map and the most recent frame. Limited snapshots carry
// the map and instances only.
type Snapshot struct {
	SessionID string    `cbor:"session_id"`
	Sequence  uint64    `cbor:"sequence"`
	Timestamp time.Time `cbor:"timestamp"`
	Label     string    `cbor:"label"`
	Limited   bool      `cbor:"limited"`

	MapVersion uint64  `cbor:"map_version"`
	Resolution float64 `cbor:"resolution"`
	MapSize    int     `cbor:"map_size"`
	Obstacles  []bool  `cbor:"obstacles"`
	Explored   []bool  `cbor:"explored"`

	Instances []InstanceRecord `cbor:"instances"`

	Width           int                                `cbor:"width,omitempty"`
	Height          int                                `cbor:"height,omitempty"`
	RGB             []byte                             `cbor:"rgb,omitempty"`
	Depth           []uint16                           `cbor:"depth,omitempty"`
	InstanceMap     []int                              `cbor:"instance_map,omitempty"`
	InstanceClasses []int                              `cbor:"instance_classes,omitempty"`
	InstanceScores  []float64                          `cbor:"instance_scores,omitempty"`
	CameraPose      []float64                          `cbor:"camera_pose,omitempty"`
	Intrinsics      *transform.PinholeCameraIntrinsics `cbor:"intrinsics,omitempty"`
	Points          []PointRecord                      `cbor:"points,omitempty"`
}

// InstanceRecord is the persisted part of an instance.
type InstanceRecord struct {
	ID         int        `cbor:"id"`
	CategoryID int        `cbor:"category_id"`
	Score      float64    `cbor:"score"`
	Min        [3]float64 `cbor:"min"`
	Max        [3]float64 `cbor:"max"`
	NumViews   int        `cbor:"num_views"`
	Embedding  []float64  `cbor:"embedding,omitempty"`
}

// PointRecord is one voxel centre with its mean color packed as 0xRRGGBB.
type PointRecord struct {
	X   float64 `cbor:"x"`
	Y   float64 `cbor:"y"`
	Z   float64 `cbor:"z"`
	RGB uint32  `cbor:"rgb"`
}

// NewSnapshot records a map state with mean, normalized instance embeddings. Session and sequence
// are filled in by the publisher.
func NewSnapshot(state *mapping.MapState, label string, limited bool) *Snapshot {
	snap := &Snapshot{
		Timestamp:  time.Now().UTC(),
		Label:      label,
		Limited:    limited,
		MapVersion: state.Version,
		Resolution: state.Resolution,
		MapSize:    state.GridSize,
		Obstacles:  state.Obstacles.Bits(),
		Explored:   state.Explored.Bits(),
		Instances:  make([]InstanceRecord, 0, len(state.Instances)),
	}
	for _, inst := range state.Instances {
		snap.Instances = append(snap.Instances, InstanceRecord{
			ID:         inst.ID,
			CategoryID: inst.CategoryID,
			Score:      inst.Score,
			Min:        [3]float64{inst.Bounds.Min.X, inst.Bounds.Min.Y, inst.Bounds.Min.Z},
			Max:        [3]float64{inst.Bounds.Max.X, inst.Bounds.Max.Y, inst.Bounds.Max.Z},
			NumViews:   len(inst.Views),
			Embedding:  inst.Embedding(instance.AggregationMean, true),
		})
	}
	if limited {
		return snap
	}

	for _, pt := range state.Points {
		snap.Points = append(snap.Points, PointRecord{
			X:   pt.Position.X,
			Y:   pt.Position.Y,
			Z:   pt.Position.Z,
			RGB: uint32(pt.Color.R)<<16 | uint32(pt.Color.G)<<8 | uint32(pt.Color.B),
		})
	}

	obs := state.Last
	if obs == nil {
		return snap
	}
	snap.Timestamp = obs.Timestamp.UTC()
	snap.Width, snap.Height = obs.Intrinsics.Width, obs.Intrinsics.Height
	intrinsics := *obs.Intrinsics
	snap.Intrinsics = &intrinsics
	if obs.RGB != nil {
		snap.RGB = rimage.CloneToNRGBA(obs.RGB).Pix
	}
	if obs.Depth != nil {
		depth := obs.Depth.Data()
		snap.Depth = make([]uint16, len(depth))
		for i, d := range depth {
			snap.Depth[i] = uint16(d)
		}
	}
	snap.InstanceMap = append([]int(nil), obs.InstanceIDs...)
	for _, det := range obs.Detections {
		snap.InstanceClasses = append(snap.InstanceClasses, det.CategoryID)
		snap.InstanceScores = append(snap.InstanceScores, det.Score)
	}
	if obs.CameraPose != nil {
		snap.CameraPose = mat.DenseCopyOf(obs.CameraPose).RawMatrix().Data
	}
	return snap
}

// ObstacleMask returns the persisted 2D obstacle mask.
func (s *Snapshot) ObstacleMask() (mapping.Mask, error) {
	m, ok := mapping.MaskFromBits(s.MapSize, s.Obstacles)
	if !ok {
		return mapping.Mask{}, errors.Errorf("obstacle mask has %d cells, want %d", len(s.Obstacles), s.MapSize*s.MapSize)
	}
	return m, nil
}

// ExploredMask returns the persisted 2D explored mask.
func (s *Snapshot) ExploredMask() (mapping.Mask, error) {
	m, ok := mapping.MaskFromBits(s.MapSize, s.Explored)
	if !ok {
		return mapping.Mask{}, errors.Errorf("explored mask has %d cells, want %d", len(s.Explored), s.MapSize*s.MapSize)
	}
	return m, nil
}

// Image rebuilds the last color frame, or nil when there is none.
func (s *Snapshot) Image() *image.NRGBA {
	if len(s.RGB) == 0 || len(s.RGB) != 4*s.Width*s.Height {
		return nil
	}
	img := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	copy(img.Pix, s.RGB)
	return img
}

// DepthMap rebuilds the last depth frame, or nil when there is none.
func (s *Snapshot) DepthMap() *rimage.DepthMap {
	if len(s.Depth) == 0 {
		return nil
	}
	data := make([]rimage.Depth, len(s.Depth))
	for i, d := range s.Depth {
		data[i] = rimage.Depth(d)
	}
	dm, err := rimage.NewDepthMapFromData(s.Width, s.Height, data)
	if err != nil {
		return nil
	}
	return dm
}

// PointCloud rebuilds the persisted voxel centres.
func (s *Snapshot) PointCloud() pointcloud.PointCloud {
	out := make(pointcloud.PointCloud, 0, len(s.Points))
	for _, p := range s.Points {
		out = append(out, pointcloud.Point{
			Position: r3.Vector{X: p.X, Y: p.Y, Z: p.Z},
			Color:    color.NRGBA{R: uint8(p.RGB >> 16), G: uint8(p.RGB >> 8), B: uint8(p.RGB), A: 255},
			HasColor: true,
		})
	}
	return out
}
