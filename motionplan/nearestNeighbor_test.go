package motionplan

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/voxelnav/spatialmath"
)

func TestNearestNeighbor(t *testing.T) {
	nm := &neighborManager{space: newBoxSpace(5000), nCPU: 2}
	tree := newTree(spatialmath.NewPose2D(0, 0, 0), true)

	// ~110 nodes stays under neighborsBeforeParallelization, so the search runs in series.
	parent := tree.root()
	for i := 1.0; i < 110.0; i++ {
		parent = tree.add(spatialmath.NewPose2D(i, 0, 0), parent)
	}
	nn := nm.nearestNeighbor(spatialmath.NewPose2D(23.1, 0, 0), tree)
	test.That(t, nn.pose.X, test.ShouldAlmostEqual, 23.0)

	// trip the threshold so nCPU goroutines split the search
	for i := 120.0; i < 1100.0; i++ {
		parent = tree.add(spatialmath.NewPose2D(i, 0, 0), parent)
	}
	nn = nm.nearestNeighbor(spatialmath.NewPose2D(723.6, 0, 0), tree)
	test.That(t, nn.pose.X, test.ShouldAlmostEqual, 724.0)

	// equidistant nodes resolve to the first inserted
	tree.add(spatialmath.NewPose2D(724, 0, 0), parent)
	nn = nm.nearestNeighbor(spatialmath.NewPose2D(724, 0, 0), tree)
	test.That(t, nn, test.ShouldEqual, tree.nodes[724-10])
}
