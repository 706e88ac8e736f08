package mapping

import (
	"context"
	"image"
	"math"
	"math/rand"
	"testing"

	"go.viam.com/test"

	"go.viam.com/voxelnav/spatialmath"
)

func testNavConfig() NavigationConfig {
	return NavigationConfig{
		DilateObstacleSize: 0.1,
		DilateFrontierSize: 1,
		ExplorationSafety:  true,
		StepSize:           0.1,
		RotationStepSize:   0.2,
		MaxSampleAttempts:  50,
		Seed:               3,
	}
}

// explored2x2 observes a 2x2 m patch of floor centred on the origin. The obstacle cells are
// i in {2, 3}, j in {-1, 0} relative to the origin cell.
func explored2x2(t *testing.T, withObstacle bool) *SparseVoxelMap {
	t.Helper()
	m := newTestMap(t, testMapConfig())
	depth := flat(1)
	if withObstacle {
		depth = raised(image.Rect(30, 18, 35, 23), 0.5, 1)
	}
	test.That(t, m.AddObservation(context.Background(), downObservation(0, 0, 1, 40, depth, nil, nil)), test.ShouldBeNil)
	return m
}

func newTestSpace(t *testing.T, m *SparseVoxelMap, robot RobotModel, cfg NavigationConfig) *NavigationSpace {
	t.Helper()
	ns, err := NewNavigationSpace(m, robot, cfg)
	test.That(t, err, test.ShouldBeNil)
	return ns
}

func TestFrontierOnBoundary(t *testing.T) {
	m := explored2x2(t, false)
	ns := newTestSpace(t, m, RobotModel{}, testNavConfig())

	// the 20x20 explored square has a one cell ring touching unexplored space
	test.That(t, ns.Frontier().Count(), test.ShouldEqual, 76)

	onEdge := func(rel int) bool { return rel == -10 || rel == 9 }
	n := 0
	for p := range ns.SampleRandomFrontier() {
		i, j, ok := m.WorldToGrid(p.X, p.Y)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, onEdge(i-50) || onEdge(j-50), test.ShouldBeTrue)
		test.That(t, p.Theta, test.ShouldBeBetweenOrEqual, -math.Pi, math.Pi)
		n++
		if n == 300 {
			break
		}
	}
	test.That(t, n, test.ShouldEqual, 300)

	// wider frontier reaches further in
	cfg := testNavConfig()
	cfg.DilateFrontierSize = 2
	wide := newTestSpace(t, m, RobotModel{}, cfg)
	test.That(t, wide.Frontier().Count(), test.ShouldBeGreaterThan, 76)

	// the defaults keep the frontier to the boundary ring
	defaults := newTestSpace(t, m, RobotModel{}, DefaultNavigationConfig())
	test.That(t, defaults.Frontier().Count(), test.ShouldEqual, 76)
	test.That(t, defaults.Frontier().Equal(ns.Frontier()), test.ShouldBeTrue)
}

func TestNoFrontierYieldsNothing(t *testing.T) {
	m := newTestMap(t, testMapConfig())
	ns := newTestSpace(t, m, RobotModel{}, testNavConfig())
	for range ns.SampleRandomFrontier() {
		t.Fatal("empty map has no frontier")
	}
}

func TestIsValid(t *testing.T) {
	m := explored2x2(t, true)
	robot := RobotModel{Length: 0.5, Width: 0.2}
	ns := newTestSpace(t, m, robot, testNavConfig())

	test.That(t, ns.IsValid(spatialmath.NewPose2D(0.3, 0, 0)), test.ShouldBeFalse)
	test.That(t, ns.IsValid(spatialmath.NewPose2D(-0.6, -0.6, 0)), test.ShouldBeTrue)
	test.That(t, ns.IsValid(spatialmath.NewPose2D(3, 3, 0)), test.ShouldBeFalse)
	test.That(t, ns.IsValid(spatialmath.NewPose2D(100, 0, 0)), test.ShouldBeFalse)

	// the long axis reaches the dilated obstacle only when turned toward it
	test.That(t, ns.IsValid(spatialmath.NewPose2D(0.3, 0.32, 0)), test.ShouldBeTrue)
	test.That(t, ns.IsValid(spatialmath.NewPose2D(0.3, 0.32, math.Pi/2)), test.ShouldBeFalse)

	cfg := testNavConfig()
	cfg.ExplorationSafety = false
	unsafe := newTestSpace(t, m, robot, cfg)
	test.That(t, unsafe.IsValid(spatialmath.NewPose2D(3, 3, 0)), test.ShouldBeTrue)

	obstacles, _ := m.Get2DMap()
	test.That(t, obstacles.Count(), test.ShouldEqual, 4)
	test.That(t, ns.Obstacles().Count(), test.ShouldBeGreaterThan, 4)
}

func TestMasksFollowMapVersion(t *testing.T) {
	m := explored2x2(t, false)
	ns := newTestSpace(t, m, RobotModel{}, testNavConfig())
	test.That(t, ns.IsValid(spatialmath.NewPose2D(1.5, 0, 0)), test.ShouldBeFalse)

	test.That(t, m.AddObservation(context.Background(), downObservation(1.5, 0, 1, 40, flat(1), nil, nil)), test.ShouldBeNil)
	test.That(t, ns.IsValid(spatialmath.NewPose2D(1.5, 0, 0)), test.ShouldBeTrue)
}

func TestSampleNearMask(t *testing.T) {
	m := explored2x2(t, true)
	ns := newTestSpace(t, m, RobotModel{}, testNavConfig())
	target := NewMask(m.GridSize())
	ti, tj, _ := m.WorldToGrid(-0.5, 0.5)
	target.Set(ti, tj, true)
	tx, ty := m.GridToWorld(ti, tj)

	for round := 0; round < 2; round++ {
		n := 0
		for p := range ns.SampleNearMask(target, 0.3) {
			n++
			i, j, _ := m.WorldToGrid(p.X, p.Y)
			test.That(t, target.At(i, j), test.ShouldBeFalse)
			test.That(t, math.Hypot(p.X-tx, p.Y-ty), test.ShouldBeLessThanOrEqualTo, 0.3+1e-9)
			// facing the target
			heading := math.Atan2(ty-p.Y, tx-p.X)
			test.That(t, math.Abs(spatialmath.AngleDiff(p.Theta, heading)), test.ShouldBeLessThan, 1e-9)
		}
		test.That(t, n, test.ShouldEqual, testNavConfig().MaxSampleAttempts)
	}

	for range ns.SampleNearMask(NewMask(m.GridSize()), 0.3) {
		t.Fatal("empty mask has no neighborhood")
	}
}

func TestCheckPathAndSteer(t *testing.T) {
	m := explored2x2(t, true)
	ns := newTestSpace(t, m, RobotModel{Length: 0.1, Width: 0.1}, testNavConfig())

	through := ns.CheckPath(spatialmath.NewPose2D(-0.6, 0, 0), spatialmath.NewPose2D(0.8, 0, 0))
	test.That(t, through, test.ShouldBeFalse)
	test.That(t, ns.CheckPath(spatialmath.NewPose2D(-0.6, -0.6, 0), spatialmath.NewPose2D(-0.6, 0.6, 1)), test.ShouldBeTrue)

	a, b := spatialmath.NewPose2D(0, 0, 0), spatialmath.NewPose2D(1, 0, 0)
	test.That(t, ns.Distance(a, b), test.ShouldAlmostEqual, 1)
	// a RotationStepSize turn costs one StepSize
	test.That(t, ns.Distance(a, spatialmath.NewPose2D(0, 0, 0.2)), test.ShouldAlmostEqual, 0.1)

	s := ns.Steer(a, b, 0.25)
	test.That(t, s.X, test.ShouldAlmostEqual, 0.25)
	test.That(t, ns.Steer(a, b, 2), test.ShouldResemble, b)

	turn := ns.Interpolate(spatialmath.NewPose2D(0, 0, 3), spatialmath.NewPose2D(0, 0, -3), 0.5)
	test.That(t, math.Abs(turn.Theta), test.ShouldAlmostEqual, math.Pi)

	rng := rand.New(rand.NewSource(1))
	minX, minY, maxX, maxY, _ := m.ExploredBounds()
	for i := 0; i < 100; i++ {
		p := ns.SampleUniform(rng)
		test.That(t, p.X, test.ShouldBeBetweenOrEqual, minX, maxX)
		test.That(t, p.Y, test.ShouldBeBetweenOrEqual, minY, maxY)
	}
}

func TestNavigationConfigValidate(t *testing.T) {
	m := newTestMap(t, testMapConfig())
	cfg := testNavConfig()
	cfg.StepSize = 0
	_, err := NewNavigationSpace(m, RobotModel{}, cfg)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewNavigationSpace(m, RobotModel{Length: -1}, testNavConfig())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, DefaultNavigationConfig().Validate(), test.ShouldBeNil)
}
