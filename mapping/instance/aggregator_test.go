package instance

import (
	"image"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/voxelnav/logging"
	"go.viam.com/voxelnav/spatialmath"
	"go.viam.com/voxelnav/vision"
)

func box(min, max r3.Vector) spatialmath.Bounds {
	return spatialmath.Bounds{Min: min, Max: max}
}

func frameDet(frameID, category int, score float64, b spatialmath.Bounds, emb ...float64) FrameDetection {
	return FrameDetection{
		Detection: vision.Detection{InstanceID: frameID, CategoryID: category, Score: score, Embedding: emb},
		View:      &InstanceView{Bounds: b, Score: score, Embedding: emb},
	}
}

func newTestAggregator(t *testing.T, threshold float64) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(Config{OverlapThreshold: threshold}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return agg
}

var (
	unitBox = box(r3.Vector{}, r3.Vector{X: 1, Y: 1, Z: 1})
	// IoU with unitBox is exactly 0.5
	doubleBox = box(r3.Vector{}, r3.Vector{X: 2, Y: 1, Z: 1})
)

func TestAssociateThresholdBoundary(t *testing.T) {
	t.Run("iou equal to threshold merges", func(t *testing.T) {
		agg := newTestAggregator(t, 0.5)
		test.That(t, agg.Associate([]FrameDetection{frameDet(0, 1, 0.8, unitBox)}), test.ShouldResemble, []int{0})
		test.That(t, agg.Associate([]FrameDetection{frameDet(0, 1, 0.4, doubleBox)}), test.ShouldResemble, []int{0})
		test.That(t, agg.Len(), test.ShouldEqual, 1)

		inst, ok := agg.Get(0)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, len(inst.Views), test.ShouldEqual, 2)
		test.That(t, inst.Score, test.ShouldAlmostEqual, 0.6)
		test.That(t, inst.Bounds, test.ShouldResemble, doubleBox)
	})

	t.Run("iou just below threshold creates", func(t *testing.T) {
		agg := newTestAggregator(t, 0.5000001)
		agg.Associate([]FrameDetection{frameDet(0, 1, 0.8, unitBox)})
		test.That(t, agg.Associate([]FrameDetection{frameDet(0, 1, 0.8, doubleBox)}), test.ShouldResemble, []int{1})
		test.That(t, agg.Len(), test.ShouldEqual, 2)
	})

	t.Run("different category never merges", func(t *testing.T) {
		agg := newTestAggregator(t, 0.1)
		agg.Associate([]FrameDetection{frameDet(0, 1, 0.8, unitBox)})
		test.That(t, agg.Associate([]FrameDetection{frameDet(0, 2, 0.8, unitBox)}), test.ShouldResemble, []int{1})
	})
}

func TestAssociateTieBreak(t *testing.T) {
	agg := newTestAggregator(t, 0.2)
	left := box(r3.Vector{X: -1}, r3.Vector{X: 0.5, Y: 1, Z: 1})
	right := box(r3.Vector{X: 0.5}, r3.Vector{X: 2, Y: 1, Z: 1})
	// disjoint, so two instances
	test.That(t, agg.Associate([]FrameDetection{frameDet(0, 1, 1, left), frameDet(1, 1, 1, right)}), test.ShouldResemble, []int{0, 1})

	// symmetric about x=0.5, equal IoU against both
	mid := box(r3.Vector{X: -0.25}, r3.Vector{X: 1.25, Y: 1, Z: 1})
	test.That(t, spatialmath.IoU3D(mid, left), test.ShouldAlmostEqual, spatialmath.IoU3D(mid, right))
	test.That(t, agg.Associate([]FrameDetection{frameDet(0, 1, 1, mid)}), test.ShouldResemble, []int{0})
}

func TestAssociateDeterministicOrder(t *testing.T) {
	run := func(dets []FrameDetection) []int {
		agg := newTestAggregator(t, 0.5)
		return agg.Associate(dets)
	}
	far := box(r3.Vector{X: 10}, r3.Vector{X: 11, Y: 1, Z: 1})
	a := run([]FrameDetection{frameDet(3, 1, 1, far), frameDet(1, 1, 1, unitBox)})
	b := run([]FrameDetection{frameDet(1, 1, 1, unitBox), frameDet(3, 1, 1, far)})
	// frame id 1 is always processed first and so always becomes instance 0
	test.That(t, a, test.ShouldResemble, []int{1, 0})
	test.That(t, b, test.ShouldResemble, []int{0, 1})
}

func TestEmbeddingRecomputed(t *testing.T) {
	agg := newTestAggregator(t, 0.5)
	agg.Associate([]FrameDetection{frameDet(0, 1, 1, unitBox, 1, 0)})
	inst, _ := agg.Get(0)
	test.That(t, inst.Embedding(AggregationMean, false), test.ShouldResemble, []float64{1, 0})

	agg.Associate([]FrameDetection{frameDet(0, 1, 1, unitBox, 0, 1)})
	mean := inst.Embedding(AggregationMean, false)
	test.That(t, mean, test.ShouldResemble, []float64{0.5, 0.5})
	normed := inst.Embedding(AggregationMean, true)
	test.That(t, normed[0], test.ShouldAlmostEqual, 0.7071067811865476)
	test.That(t, inst.Embedding(AggregationMax, false), test.ShouldResemble, []float64{1, 1})

	// the returned slice is a copy
	mean[0] = 100
	test.That(t, inst.Embedding(AggregationMean, false)[0], test.ShouldEqual, 0.5)
}

func TestConfigValidate(t *testing.T) {
	_, err := NewAggregator(Config{OverlapThreshold: 0}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, DefaultConfig().Validate(), test.ShouldBeNil)
}

func TestMaskAt(t *testing.T) {
	m := Mask{Rect: image.Rect(2, 2, 4, 3), Pix: []bool{false, true}}
	test.That(t, m.At(3, 2), test.ShouldBeTrue)
	test.That(t, m.At(2, 2), test.ShouldBeFalse)
	test.That(t, m.At(0, 0), test.ShouldBeFalse)
	test.That(t, m.Count(), test.ShouldEqual, 1)
}
