package motionplan

import (
	"math"
	"math/rand"

	"go.viam.com/voxelnav/spatialmath"
)

type rect struct {
	minX, minY, maxX, maxY float64
}

func (r rect) contains(x, y float64) bool {
	return x >= r.minX && x <= r.maxX && y >= r.minY && y <= r.maxY
}

// boxSpace is a point robot in a square workspace with rectangular obstacles.
type boxSpace struct {
	limits    rect
	obstacles []rect
	checkStep float64
}

func newBoxSpace(half float64, obstacles ...rect) *boxSpace {
	return &boxSpace{limits: rect{-half, -half, half, half}, obstacles: obstacles, checkStep: 0.05}
}

func (s *boxSpace) IsValid(p spatialmath.Pose2D) bool {
	if !s.limits.contains(p.X, p.Y) {
		return false
	}
	for _, o := range s.obstacles {
		if o.contains(p.X, p.Y) {
			return false
		}
	}
	return true
}

func (s *boxSpace) SampleUniform(rng *rand.Rand) spatialmath.Pose2D {
	return spatialmath.NewPose2D(
		s.limits.minX+rng.Float64()*(s.limits.maxX-s.limits.minX),
		s.limits.minY+rng.Float64()*(s.limits.maxY-s.limits.minY),
		(rng.Float64()*2-1)*math.Pi,
	)
}

func (s *boxSpace) Distance(a, b spatialmath.Pose2D) float64 {
	return a.DistanceXY(b) + 0.1*math.Abs(spatialmath.AngleDiff(a.Theta, b.Theta))
}

func (s *boxSpace) Interpolate(a, b spatialmath.Pose2D, t float64) spatialmath.Pose2D {
	return spatialmath.NewPose2D(
		a.X+(b.X-a.X)*t,
		a.Y+(b.Y-a.Y)*t,
		spatialmath.InterpolateAngle(a.Theta, b.Theta, t),
	)
}

func (s *boxSpace) Steer(from, to spatialmath.Pose2D, maxStep float64) spatialmath.Pose2D {
	d := s.Distance(from, to)
	if d <= maxStep {
		return to
	}
	return s.Interpolate(from, to, maxStep/d)
}

func (s *boxSpace) CheckPath(a, b spatialmath.Pose2D) bool {
	steps := max(int(math.Ceil(a.DistanceXY(b)/s.checkStep)), 2)
	for k := 1; k <= steps; k++ {
		if !s.IsValid(s.Interpolate(a, b, float64(k)/float64(steps))) {
			return false
		}
	}
	return true
}
