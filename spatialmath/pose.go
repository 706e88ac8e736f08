package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidPose is returned when a matrix is not a rigid 4x4 homogeneous transform.
var ErrInvalidPose = errors.New("not a rigid 4x4 transform")

const rigidTolerance = 1e-4

// Pose is a rigid 3D transform stored as a 4x4 homogeneous matrix.
type Pose struct {
	m *mat.Dense
}

// NewPoseFromMatrix validates m and copies it into a Pose.
func NewPoseFromMatrix(m mat.Matrix) (*Pose, error) {
	if m == nil {
		return nil, errors.Wrap(ErrInvalidPose, "nil matrix")
	}
	if r, c := m.Dims(); r != 4 || c != 4 {
		return nil, errors.Wrapf(ErrInvalidPose, "got %dx%d", r, c)
	}
	for j, want := range []float64{0, 0, 0, 1} {
		if math.Abs(m.At(3, j)-want) > rigidTolerance {
			return nil, errors.Wrap(ErrInvalidPose, "last row must be 0 0 0 1")
		}
	}
	rot := mat.NewDense(3, 3, nil)
	rot.Copy(m)
	var rtr mat.Dense
	rtr.Mul(rot.T(), rot)
	if !mat.EqualApprox(&rtr, eye3(), rigidTolerance) {
		return nil, errors.Wrap(ErrInvalidPose, "rotation block is not orthonormal")
	}
	if math.Abs(mat.Det(rot)-1) > rigidTolerance {
		return nil, errors.Wrap(ErrInvalidPose, "rotation block is a reflection")
	}
	return &Pose{m: mat.DenseCopyOf(m)}, nil
}

// NewPoseFromRows builds a pose from a row-major rotation and a translation.
func NewPoseFromRows(rot [3][3]float64, t r3.Vector) *Pose {
	data := []float64{
		rot[0][0], rot[0][1], rot[0][2], t.X,
		rot[1][0], rot[1][1], rot[1][2], t.Y,
		rot[2][0], rot[2][1], rot[2][2], t.Z,
		0, 0, 0, 1,
	}
	return &Pose{m: mat.NewDense(4, 4, data)}
}

// NewZeroPose returns the identity transform.
func NewZeroPose() *Pose {
	return NewPoseFromRows([3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, r3.Vector{})
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// Matrix returns a copy of the 4x4 matrix.
func (p *Pose) Matrix() *mat.Dense {
	return mat.DenseCopyOf(p.m)
}

// Point returns the translation.
func (p *Pose) Point() r3.Vector {
	return r3.Vector{X: p.m.At(0, 3), Y: p.m.At(1, 3), Z: p.m.At(2, 3)}
}

// Transform maps a point from the pose's local frame to its parent frame.
func (p *Pose) Transform(pt r3.Vector) r3.Vector {
	m := p.m
	return r3.Vector{
		X: m.At(0, 0)*pt.X + m.At(0, 1)*pt.Y + m.At(0, 2)*pt.Z + m.At(0, 3),
		Y: m.At(1, 0)*pt.X + m.At(1, 1)*pt.Y + m.At(1, 2)*pt.Z + m.At(1, 3),
		Z: m.At(2, 0)*pt.X + m.At(2, 1)*pt.Y + m.At(2, 2)*pt.Z + m.At(2, 3),
	}
}

// Compose returns p * other, i.e. other expressed in p's parent frame.
func (p *Pose) Compose(other *Pose) *Pose {
	var out mat.Dense
	out.Mul(p.m, other.m)
	return &Pose{m: &out}
}

// Flat returns the matrix in row-major order.
func (p *Pose) Flat() []float64 {
	out := make([]float64, 0, 16)
	for i := 0; i < 4; i++ {
		out = append(out, p.m.RawRowView(i)...)
	}
	return out
}

// Yaw is the heading of the pose's local z axis projected on the ground plane. For a camera in
// the optical convention that is the viewing direction.
func (p *Pose) Yaw() float64 {
	return math.Atan2(p.m.At(1, 2), p.m.At(0, 2))
}
