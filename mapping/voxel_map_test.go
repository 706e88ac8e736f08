package mapping

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/voxelnav/logging"
	"go.viam.com/voxelnav/mapping/instance"
	"go.viam.com/voxelnav/pointcloud"
	"go.viam.com/voxelnav/rimage"
	"go.viam.com/voxelnav/rimage/transform"
	"go.viam.com/voxelnav/spatialmath"
	"go.viam.com/voxelnav/vision"
)

const testFocal = 20.

// downObservation builds a frame from a camera at (cx, cy, h) looking straight down. With the
// test focal length a pixel covers h/20 metres of floor.
func downObservation(cx, cy, h float64, size int, depthAt func(u, v int) float64, ids []int, dets []vision.Detection) *Observation {
	intrinsics := &transform.PinholeCameraIntrinsics{
		Width: size, Height: size, Fx: testFocal, Fy: testFocal,
		Ppx: float64(size-1) / 2, Ppy: float64(size-1) / 2,
	}
	rgb := image.NewNRGBA(image.Rect(0, 0, size, size))
	depth := rimage.NewEmptyDepthMap(size, size)
	for v := 0; v < size; v++ {
		for u := 0; u < size; u++ {
			depth.Set(u, v, rimage.DepthFromMeters(depthAt(u, v)))
			rgb.SetNRGBA(u, v, color.NRGBA{R: uint8(u), G: uint8(v), B: 100, A: 255})
		}
	}
	pose := mat.NewDense(4, 4, []float64{
		1, 0, 0, cx,
		0, -1, 0, cy,
		0, 0, -1, h,
		0, 0, 0, 1,
	})
	return &Observation{
		RGB:         rgb,
		Depth:       depth,
		Intrinsics:  intrinsics,
		CameraPose:  pose,
		BasePose:    spatialmath.Pose2D{X: cx, Y: cy},
		InstanceIDs: ids,
		Detections:  dets,
	}
}

func flat(h float64) func(u, v int) float64 {
	return func(u, v int) float64 { return h }
}

func testMapConfig() MapConfig {
	return MapConfig{
		Resolution:    0.1,
		MinDepth:      0.1,
		MaxDepth:      3,
		ObsMinHeight:  0.1,
		ObsMaxHeight:  1.5,
		ObsMinDensity: 1,
		GridSize:      100,
	}
}

func newTestMap(t *testing.T, cfg MapConfig) *SparseVoxelMap {
	t.Helper()
	logger := logging.NewTestLogger(t)
	agg, err := instance.NewAggregator(instance.Config{OverlapThreshold: 0.5, MinPoints: 1}, logger)
	test.That(t, err, test.ShouldBeNil)
	m, err := NewSparseVoxelMap(cfg, agg, logger)
	test.That(t, err, test.ShouldBeNil)
	return m
}

func TestNewSparseVoxelMapValidation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	agg, err := instance.NewAggregator(instance.DefaultConfig(), logger)
	test.That(t, err, test.ShouldBeNil)

	cfg := testMapConfig()
	cfg.MinDepth = 5
	_, err = NewSparseVoxelMap(cfg, agg, logger)
	test.That(t, err, test.ShouldNotBeNil)

	cfg = testMapConfig()
	cfg.Resolution = 0
	_, err = NewSparseVoxelMap(cfg, agg, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewSparseVoxelMap(testMapConfig(), nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, DefaultMapConfig().Validate(), test.ShouldBeNil)
}

func TestAddObservationFloor(t *testing.T) {
	m := newTestMap(t, testMapConfig())
	obs := downObservation(0, 0, 1, 20, flat(1), nil, nil)
	test.That(t, m.AddObservation(context.Background(), obs), test.ShouldBeNil)
	test.That(t, m.Version(), test.ShouldEqual, uint64(1))

	obstacles, explored := m.Get2DMap()
	test.That(t, obstacles.Count(), test.ShouldEqual, 0)
	// 20 pixels of 5cm span x in [-0.475, 0.475], i.e. 10 cells per side
	test.That(t, explored.Count(), test.ShouldEqual, 100)
	i, j, ok := m.WorldToGrid(0.3, -0.3)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, explored.At(i, j), test.ShouldBeTrue)
	i, j, _ = m.WorldToGrid(0.6, 0)
	test.That(t, explored.At(i, j), test.ShouldBeFalse)

	visited := m.Visited()
	test.That(t, visited.Count(), test.ShouldEqual, 1)
	test.That(t, m.LastObservation(), test.ShouldEqual, obs)
	test.That(t, len(m.Observations()), test.ShouldEqual, 1)

	vox, ok := m.Voxel(pointcloud.VoxelCoords{I: 0, J: 0, K: 0})
	test.That(t, ok, test.ShouldBeTrue)
	// a 10cm cell holds 2x2 pixels
	test.That(t, vox.Count, test.ShouldEqual, 4)
	test.That(t, vox.MeanHeight, test.ShouldAlmostEqual, 0)
	test.That(t, len(m.PointCloud()), test.ShouldEqual, m.NumVoxels())

	minX, minY, maxX, maxY, ok := m.ExploredBounds()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, minX, test.ShouldAlmostEqual, -0.5)
	test.That(t, maxY, test.ShouldAlmostEqual, 0.5)
	test.That(t, maxX-minX, test.ShouldAlmostEqual, maxY-minY)
}

func TestAddObservationDepthRange(t *testing.T) {
	m := newTestMap(t, testMapConfig())
	// everything nearer than MinDepth or farther than MaxDepth is dropped
	tooNear := downObservation(0, 0, 1, 10, flat(0.05), nil, nil)
	test.That(t, m.AddObservation(context.Background(), tooNear), test.ShouldBeNil)
	tooFar := downObservation(0, 0, 1, 10, flat(3.5), nil, nil)
	test.That(t, m.AddObservation(context.Background(), tooFar), test.ShouldBeNil)
	test.That(t, m.NumVoxels(), test.ShouldEqual, 0)
	// only the cell under the base is known
	_, explored := m.Get2DMap()
	test.That(t, explored.Count(), test.ShouldEqual, 1)
	test.That(t, explored.Equal(m.Visited()), test.ShouldBeTrue)
}

func TestAddObservationInvalid(t *testing.T) {
	m := newTestMap(t, testMapConfig())
	ctx := context.Background()

	for name, mutate := range map[string]func(o *Observation){
		"depth shape": func(o *Observation) { o.Depth = rimage.NewEmptyDepthMap(3, 3) },
		"rgb shape":   func(o *Observation) { o.RGB = image.NewNRGBA(image.Rect(0, 0, 1, 1)) },
		"ids shape":   func(o *Observation) { o.InstanceIDs = []int{0} },
		"pose shape":  func(o *Observation) { o.CameraPose = mat.NewDense(3, 4, nil) },
		"no pose":     func(o *Observation) { o.CameraPose = nil },
		"intrinsics":  func(o *Observation) { o.Intrinsics = nil },
		"unknown id": func(o *Observation) {
			o.InstanceIDs = make([]int, 100)
		},
		"orphan detections": func(o *Observation) {
			o.Detections = []vision.Detection{{InstanceID: 0}}
		},
	} {
		t.Run(name, func(t *testing.T) {
			obs := downObservation(0, 0, 1, 10, flat(1), nil, nil)
			mutate(obs)
			err := m.AddObservation(ctx, obs)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, ErrInvalidObservation), test.ShouldBeTrue)
			test.That(t, m.Version(), test.ShouldEqual, uint64(0))
		})
	}
	test.That(t, m.AddObservation(ctx, nil), test.ShouldNotBeNil)
}

// raised returns a depth function with a block of pixels at depth near and the rest at far.
func raised(rect image.Rectangle, near, far float64) func(u, v int) float64 {
	return func(u, v int) float64 {
		if (image.Point{u, v}).In(rect) {
			return near
		}
		return far
	}
}

func TestObstacleDensity(t *testing.T) {
	cfg := testMapConfig()
	cfg.ObsMinDensity = 2
	m := newTestMap(t, cfg)
	ctx := context.Background()
	// one pixel seeing something 0.5m tall
	obs := downObservation(0, 0, 1, 10, raised(image.Rect(2, 2, 3, 3), 0.5, 1), nil, nil)

	test.That(t, m.AddObservation(ctx, obs), test.ShouldBeNil)
	obstacles, _ := m.Get2DMap()
	test.That(t, obstacles.Count(), test.ShouldEqual, 0)

	test.That(t, m.AddObservation(ctx, obs), test.ShouldBeNil)
	obstacles, _ = m.Get2DMap()
	test.That(t, obstacles.Count(), test.ShouldEqual, 1)

	// more floor evidence never clears an obstacle
	for i := 0; i < 3; i++ {
		test.That(t, m.AddObservation(ctx, downObservation(0, 0, 1, 10, flat(1), nil, nil)), test.ShouldBeNil)
	}
	after, _ := m.Get2DMap()
	test.That(t, after.Equal(obstacles), test.ShouldBeTrue)
}

func TestGet2DMapIdempotentAndMonotonic(t *testing.T) {
	m := newTestMap(t, testMapConfig())
	ctx := context.Background()

	prevExplored := 0
	for k, cx := range []float64{0, 0.5, 1.0, 1.5} {
		obs := downObservation(cx, 0, 1, 20, raised(image.Rect(8, 8, 12, 12), 0.6, 1), nil, nil)
		test.That(t, m.AddObservation(ctx, obs), test.ShouldBeNil)

		obsA, expA := m.Get2DMap()
		obsB, expB := m.Get2DMap()
		test.That(t, cmp.Diff(obsA.Bits(), obsB.Bits()), test.ShouldBeEmpty)
		test.That(t, cmp.Diff(expA.Bits(), expB.Bits()), test.ShouldBeEmpty)

		test.That(t, expA.Count(), test.ShouldBeGreaterThanOrEqualTo, prevExplored)
		if k > 0 {
			test.That(t, expA.Count(), test.ShouldBeGreaterThan, prevExplored)
		}
		prevExplored = expA.Count()

		// a returned mask is a copy
		expA.Set(0, 0, true)
		_, expC := m.Get2DMap()
		test.That(t, expC.At(0, 0), test.ShouldBeFalse)
	}
}

func TestInstancesFromObservations(t *testing.T) {
	m := newTestMap(t, testMapConfig())
	ctx := context.Background()
	size := 20
	box := image.Rect(6, 6, 14, 14)
	ids := make([]int, size*size)
	for v := 0; v < size; v++ {
		for u := 0; u < size; u++ {
			ids[v*size+u] = vision.Background
			if (image.Point{u, v}).In(box) {
				ids[v*size+u] = 7
			}
		}
	}
	dets := []vision.Detection{{InstanceID: 7, CategoryID: 2, Score: 0.9, Embedding: []float64{1, 0}}}

	for i := 0; i < 2; i++ {
		obs := downObservation(0, 0, 1, size, raised(box, 0.5, 1), ids, dets)
		test.That(t, m.AddObservation(ctx, obs), test.ShouldBeNil)
	}

	instances := m.Instances()
	test.That(t, len(instances), test.ShouldEqual, 1)
	inst := instances[0]
	test.That(t, inst.ID, test.ShouldEqual, 0)
	test.That(t, inst.CategoryID, test.ShouldEqual, 2)
	test.That(t, len(inst.Views), test.ShouldEqual, 2)
	test.That(t, inst.Views[1].Observation, test.ShouldEqual, 1)
	test.That(t, inst.Views[0].Mask.Count(), test.ShouldEqual, 64)
	test.That(t, inst.Views[0].Crop.Bounds().Dx(), test.ShouldEqual, 8)
	test.That(t, inst.Bounds.Min.Z, test.ShouldAlmostEqual, 0.45)
	test.That(t, inst.Bounds.Max.Z, test.ShouldAlmostEqual, 0.55)

	// the top of the box votes for the instance
	top := pointcloud.GetVoxelCoordinates(r3.Vector{X: 0.05, Y: 0.05, Z: 0.5}, 0.1)
	vox, ok := m.Voxel(top)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, vox.InstanceID(), test.ShouldEqual, 0)

	got, ok := m.Instance(0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, got.Embedding(instance.AggregationMean, true), test.ShouldResemble, []float64{1, 0})
	_, ok = m.Instance(3)
	test.That(t, ok, test.ShouldBeFalse)

	mask := m.MaskFromBounds(inst.Bounds)
	test.That(t, mask.Count(), test.ShouldBeGreaterThan, 0)
	i, j, _ := m.WorldToGrid(inst.Bounds.Center().X, inst.Bounds.Center().Y)
	test.That(t, mask.At(i, j), test.ShouldBeTrue)
}

func TestLowScoreDetectionDropped(t *testing.T) {
	cfg := testMapConfig()
	cfg.MinDetectionScore = 0.5
	m := newTestMap(t, cfg)
	size := 10
	ids := make([]int, size*size)
	dets := []vision.Detection{{InstanceID: 0, CategoryID: 1, Score: 0.2}}
	test.That(t, m.AddObservation(context.Background(), downObservation(0, 0, 1, size, flat(1), ids, dets)), test.ShouldBeNil)
	test.That(t, len(m.Instances()), test.ShouldEqual, 0)
	test.That(t, m.NumVoxels(), test.ShouldBeGreaterThan, 0)
}

func TestReset(t *testing.T) {
	m := newTestMap(t, testMapConfig())
	test.That(t, m.AddObservation(context.Background(), downObservation(0, 0, 1, 10, flat(1), nil, nil)), test.ShouldBeNil)
	m.Reset()
	test.That(t, m.NumVoxels(), test.ShouldEqual, 0)
	test.That(t, m.LastObservation(), test.ShouldBeNil)
	_, explored := m.Get2DMap()
	test.That(t, explored.Count(), test.ShouldEqual, 0)
}

func TestMaskOps(t *testing.T) {
	mask := NewMask(7)
	mask.Set(3, 3, true)
	mask.Set(-1, 0, true)
	test.That(t, mask.Count(), test.ShouldEqual, 1)
	test.That(t, mask.Dilate(1).Count(), test.ShouldEqual, 5)
	test.That(t, mask.Dilate(2).Count(), test.ShouldEqual, 13)
	test.That(t, mask.Not().Count(), test.ShouldEqual, 48)
	ci, cj, ok := mask.Dilate(2).Centroid()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ci, test.ShouldEqual, 3.)
	test.That(t, cj, test.ShouldEqual, 3.)

	img := mask.ToImage()
	test.That(t, img.GrayAt(3, 3).Y, test.ShouldEqual, uint8(255))

	round, ok := MaskFromBits(7, mask.Bits())
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, round.Equal(mask), test.ShouldBeTrue)
	_, ok = MaskFromBits(3, mask.Bits())
	test.That(t, ok, test.ShouldBeFalse)
}
