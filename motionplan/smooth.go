package motionplan

import (
	"context"
	"math/rand"
	"slices"

	"go.viam.com/voxelnav/spatialmath"
)

// Shortcut removes waypoints that can be skipped with a single collision-free motion. It first
// tries a fixed stride over the path, then iter random pairs. Endpoints are never changed.
func Shortcut(
	ctx context.Context,
	space ConfigurationSpace,
	path []spatialmath.Pose2D,
	iter int,
	rng *rand.Rand,
) []spatialmath.Pose2D {
	if len(path) <= 2 {
		return path
	}
	path = smoothPath(ctx, space, slices.Clone(path))

	for range iter {
		if ctx.Err() != nil || len(path) <= 2 {
			break
		}
		i := rng.Intn(len(path) - 2)
		j := i + 2 + rng.Intn(len(path)-i-2)
		if space.CheckPath(path[i], path[j]) {
			path = append(path[:i+1], path[j:]...)
		}
	}
	return path
}

// smoothPath applies stride-10 then stride-1 passes and repeats while the path keeps shrinking.
func smoothPath(ctx context.Context, space ConfigurationSpace, path []spatialmath.Pose2D) []spatialmath.Pose2D {
	for ctx.Err() == nil {
		before := len(path)
		path = simpleSmoothStep(space, path, 10)
		path = simpleSmoothStep(space, path, 1)
		if len(path) == before {
			break
		}
	}
	return path
}

// simpleSmoothStep walks the path and, from each kept pose, jumps to the farthest later pose it
// can reach directly, trying candidates step apart starting from the end.
func simpleSmoothStep(space ConfigurationSpace, path []spatialmath.Pose2D, step int) []spatialmath.Pose2D {
	smoothed := []spatialmath.Pose2D{path[0]}
	for i := 0; i < len(path)-1; {
		next := i + 1
		for j := len(path) - 1; j > i+1; j -= step {
			if space.CheckPath(path[i], path[j]) {
				next = j
				break
			}
		}
		smoothed = append(smoothed, path[next])
		i = next
	}
	return smoothed
}
