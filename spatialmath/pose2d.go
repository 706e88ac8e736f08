package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Pose2D is a planar robot base pose. X and Y are in metres, Theta in radians counterclockwise
// from the world x axis.
type Pose2D struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// NewPose2D returns a Pose2D with a normalized heading.
func NewPose2D(x, y, theta float64) Pose2D {
	return Pose2D{X: x, Y: y, Theta: NormalizeAngle(theta)}
}

// Point returns the position on the ground plane.
func (p Pose2D) Point() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y}
}

// DistanceXY is the euclidean distance between the positions, ignoring heading.
func (p Pose2D) DistanceXY(o Pose2D) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// Compose applies delta expressed in p's frame, as when the robot drives relative to itself.
func (p Pose2D) Compose(delta Pose2D) Pose2D {
	s, c := math.Sincos(p.Theta)
	return NewPose2D(
		p.X+c*delta.X-s*delta.Y,
		p.Y+s*delta.X+c*delta.Y,
		p.Theta+delta.Theta,
	)
}

// Pose3D lifts the planar pose into a rigid transform about the world z axis.
func (p Pose2D) Pose3D() *Pose {
	s, c := math.Sincos(p.Theta)
	return NewPoseFromRows(
		[3][3]float64{{c, -s, 0}, {s, c, 0}, {0, 0, 1}},
		r3.Vector{X: p.X, Y: p.Y},
	)
}

func (p Pose2D) String() string {
	return fmt.Sprintf("{X:%.3f Y:%.3f Theta:%.3f}", p.X, p.Y, p.Theta)
}

// Pose2DAlmostEqual compares position within posTol and heading within rotTol.
func Pose2DAlmostEqual(a, b Pose2D, posTol, rotTol float64) bool {
	return a.DistanceXY(b) <= posTol && math.Abs(AngleDiff(a.Theta, b.Theta)) <= rotTol
}
