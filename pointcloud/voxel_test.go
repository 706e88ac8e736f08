package pointcloud

import (
	"bytes"
	"image/color"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestVoxelCoordinates(t *testing.T) {
	test.That(t, GetVoxelCoordinates(r3.Vector{X: 0.05, Y: -0.05, Z: 0.1}, 0.1), test.ShouldResemble, VoxelCoords{0, -1, 1})
	c := VoxelCoords{I: 2, J: -1, K: 0}.Center(0.1)
	test.That(t, c.X, test.ShouldAlmostEqual, 0.25)
	test.That(t, c.Y, test.ShouldAlmostEqual, -0.05)
}

func TestVoxelStats(t *testing.T) {
	v := NewVoxel(VoxelCoords{})
	v.AddPoint(r3.Vector{Z: 0.2}, color.NRGBA{R: 100, A: 255}, 3)
	v.AddPoint(r3.Vector{Z: 0.4}, color.NRGBA{R: 200, A: 255}, 1)
	v.AddPoint(r3.Vector{Z: 0.3}, color.NRGBA{R: 0, A: 255}, NoInstance)

	test.That(t, v.Count, test.ShouldEqual, 3)
	test.That(t, v.MeanHeight, test.ShouldAlmostEqual, 0.3)
	test.That(t, v.MinHeight, test.ShouldEqual, 0.2)
	test.That(t, v.MaxHeight, test.ShouldEqual, 0.4)
	test.That(t, v.MeanColor(), test.ShouldResemble, color.NRGBA{R: 100, A: 255})

	// one vote each, the lower id wins
	test.That(t, v.InstanceID(), test.ShouldEqual, 1)
	v.AddPoint(r3.Vector{Z: 0.3}, color.NRGBA{}, 3)
	test.That(t, v.InstanceID(), test.ShouldEqual, 3)
	test.That(t, v.Votes(3), test.ShouldEqual, 2)

	clone := v.Clone()
	clone.AddPoint(r3.Vector{}, color.NRGBA{}, 1)
	clone.AddPoint(r3.Vector{}, color.NRGBA{}, 1)
	test.That(t, v.Votes(1), test.ShouldEqual, 1)
	test.That(t, NewVoxel(VoxelCoords{}).InstanceID(), test.ShouldEqual, NoInstance)
}

func TestVoxelGrid(t *testing.T) {
	vg := NewVoxelGrid(0.5)
	vg.AddPoint(r3.Vector{X: 1.1}, color.NRGBA{}, NoInstance)
	vg.AddPoint(r3.Vector{X: 1.2}, color.NRGBA{}, NoInstance)
	vg.AddPoint(r3.Vector{X: -0.1}, color.NRGBA{}, NoInstance)
	vg.AddPoint(r3.Vector{X: 0.6, Y: 0.1}, color.NRGBA{}, NoInstance)
	test.That(t, vg.Len(), test.ShouldEqual, 3)
	test.That(t, vg.GetVoxelFromKey(VoxelCoords{I: 2}).Count, test.ShouldEqual, 2)
	test.That(t, vg.SortedKeys(), test.ShouldResemble, []VoxelCoords{{I: -1}, {I: 1}, {I: 2}})

	cloud := vg.ToPointCloud()
	test.That(t, len(cloud), test.ShouldEqual, 3)
	test.That(t, cloud[0].Position.X, test.ShouldAlmostEqual, -0.25)
}

func TestToPCD(t *testing.T) {
	cloud := PointCloud{
		{Position: r3.Vector{X: 1, Y: 2, Z: 3}, Color: color.NRGBA{R: 1, G: 2, B: 3, A: 255}, HasColor: true},
	}
	var buf bytes.Buffer
	test.That(t, ToPCD(cloud, &buf, PCDAscii), test.ShouldBeNil)
	out := buf.String()
	test.That(t, out, test.ShouldContainSubstring, "FIELDS x y z rgb\n")
	test.That(t, out, test.ShouldContainSubstring, "POINTS 1\n")
	test.That(t, strings.HasSuffix(out, "1.000000 2.000000 3.000000 66051\n"), test.ShouldBeTrue)

	buf.Reset()
	test.That(t, ToPCD(PointCloud{{Position: r3.Vector{X: 1}}}, &buf, PCDBinary), test.ShouldBeNil)
	header, data, found := strings.Cut(buf.String(), "DATA binary\n")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, header, test.ShouldContainSubstring, "FIELDS x y z\n")
	test.That(t, len(data), test.ShouldEqual, 12)
}
