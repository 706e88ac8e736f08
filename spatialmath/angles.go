package spatialmath

import "math"

// NormalizeAngle wraps theta into (-pi, pi].
func NormalizeAngle(theta float64) float64 {
	theta = math.Mod(theta, 2*math.Pi)
	if theta <= -math.Pi {
		theta += 2 * math.Pi
	} else if theta > math.Pi {
		theta -= 2 * math.Pi
	}
	return theta
}

// AngleDiff returns the signed shortest rotation from a to b, in (-pi, pi].
func AngleDiff(a, b float64) float64 {
	return NormalizeAngle(b - a)
}

// InterpolateAngle moves a fraction t of the way from a to b along the shorter arc.
func InterpolateAngle(a, b, t float64) float64 {
	return NormalizeAngle(a + t*AngleDiff(a, b))
}
