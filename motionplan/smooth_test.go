package motionplan

import (
	"context"
	"math/rand"
	"testing"

	"go.viam.com/test"

	"go.viam.com/voxelnav/spatialmath"
)

func TestShortcut(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	zigzag := []spatialmath.Pose2D{
		spatialmath.NewPose2D(-4, -4, 0),
		spatialmath.NewPose2D(-3, -2, 0),
		spatialmath.NewPose2D(-2, -4, 0),
		spatialmath.NewPose2D(-1, -2, 0),
		spatialmath.NewPose2D(0, -4, 0),
	}
	original := append([]spatialmath.Pose2D{}, zigzag...)

	t.Run("free space collapses to endpoints", func(t *testing.T) {
		smoothed := Shortcut(context.Background(), newBoxSpace(5), zigzag, 10, rng)
		test.That(t, smoothed, test.ShouldResemble, []spatialmath.Pose2D{zigzag[0], zigzag[4]})
		test.That(t, zigzag, test.ShouldResemble, original)
	})

	t.Run("obstacle keeps a detour", func(t *testing.T) {
		// blocks the straight line y=-4 between the endpoints but not the zigzag's upper corners
		space := newBoxSpace(5, rect{-2.6, -4.5, -1.4, -3.5}, rect{-0.6, -4.5, -0.4, -3.5})
		path := []spatialmath.Pose2D{
			spatialmath.NewPose2D(-4, -4, 0),
			spatialmath.NewPose2D(-3, -2, 0),
			spatialmath.NewPose2D(-1, -2, 0),
			spatialmath.NewPose2D(1, -4, 0),
		}
		smoothed := Shortcut(context.Background(), space, path, 10, rng)
		test.That(t, smoothed[0], test.ShouldResemble, path[0])
		test.That(t, smoothed[len(smoothed)-1], test.ShouldResemble, path[3])
		test.That(t, len(smoothed), test.ShouldBeGreaterThan, 2)
		for i := 1; i < len(smoothed); i++ {
			test.That(t, space.CheckPath(smoothed[i-1], smoothed[i]), test.ShouldBeTrue)
		}
	})

	t.Run("short paths are untouched", func(t *testing.T) {
		path := zigzag[:2]
		test.That(t, Shortcut(context.Background(), newBoxSpace(5), path, 10, rng), test.ShouldResemble, path)
	})
}
