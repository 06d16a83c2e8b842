package pointcloud

import (
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestConcatenateTwoSinglePoints(t *testing.T) {
	stamp := time.Now()
	a := NewXYZCloud("base", stamp, r3.Vector{X: 1})
	b := NewXYZCloud("base", stamp.Add(time.Millisecond), r3.Vector{X: 2})

	fused, err := Concatenate([]*Cloud{a, b})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fused.Width, test.ShouldEqual, 2)
	test.That(t, fused.Height, test.ShouldEqual, 1)
	test.That(t, fused.FrameID, test.ShouldEqual, "base")
	test.That(t, fused.Stamp, test.ShouldResemble, stamp)
	test.That(t, fused.Dense, test.ShouldBeTrue)
	test.That(t, fused.Validate(), test.ShouldBeNil)
	test.That(t, fused.Float32At(0, 0), test.ShouldEqual, 1)
	test.That(t, fused.Float32At(1, 0), test.ShouldEqual, 2)
}

func TestConcatenateDenseAnd(t *testing.T) {
	a := NewXYZCloud("base", time.Now(), r3.Vector{})
	b := NewXYZCloud("base", time.Now(), r3.Vector{})
	b.Dense = false
	fused, err := Concatenate([]*Cloud{a, b})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fused.Dense, test.ShouldBeFalse)
}

func TestConcatenateWidthSums(t *testing.T) {
	a := NewXYZCloud("base", time.Now(), r3.Vector{}, r3.Vector{}, r3.Vector{})
	b := NewXYZCloud("base", time.Now(), r3.Vector{})
	c := NewXYZCloud("base", time.Now(), r3.Vector{}, r3.Vector{})
	fused, err := Concatenate([]*Cloud{a, b, c})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fused.Width, test.ShouldEqual, 6)
	test.That(t, len(fused.Data), test.ShouldEqual, 6*12)
}

func TestConcatenateSchemaMismatch(t *testing.T) {
	a := NewXYZCloud("base", time.Now(), r3.Vector{})
	b := NewCloud("base", time.Now(), xyzDistanceFields(), 16, 1)
	_, err := Concatenate([]*Cloud{a, b})
	var mismatch *SchemaMismatchError
	test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)
	test.That(t, mismatch.Index, test.ShouldEqual, 1)
}

func TestConcatenateEmpty(t *testing.T) {
	_, err := Concatenate(nil)
	test.That(t, err, test.ShouldNotBeNil)
}
