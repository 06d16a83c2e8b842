package tf

import (
	"context"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/huamingduo/rtabmap-ros/spatialmath"
)

func TestStaticLookupSameFrame(t *testing.T) {
	b := NewStaticBuffer()
	tf, err := b.Lookup(context.Background(), "a", "a", time.Now(), time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tf.IsNull(), test.ShouldBeFalse)
	test.That(t, tf.Apply(r3.Vector{X: 1}), test.ShouldResemble, r3.Vector{X: 1})
}

func TestStaticLookupDirectEdge(t *testing.T) {
	b := NewStaticBuffer()
	err := b.SetTransform("base", "lidar", spatialmath.NewFromTranslation(r3.Vector{X: 1}))
	test.That(t, err, test.ShouldBeNil)

	tf, err := b.Lookup(context.Background(), "base", "lidar", time.Now(), time.Second)
	test.That(t, err, test.ShouldBeNil)
	got := tf.Apply(r3.Vector{})
	test.That(t, got.X, test.ShouldAlmostEqual, 1)

	// Reverse direction inverts.
	back, err := b.Lookup(context.Background(), "lidar", "base", time.Now(), time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Apply(r3.Vector{X: 1}).X, test.ShouldAlmostEqual, 0)
}

func TestStaticLookupThroughCommonAncestor(t *testing.T) {
	b := NewStaticBuffer()
	test.That(t, b.SetTransform("base", "front", spatialmath.NewFromTranslation(r3.Vector{X: 1})), test.ShouldBeNil)
	test.That(t, b.SetTransform("base", "rear", spatialmath.NewFromTranslation(r3.Vector{X: -1})), test.ShouldBeNil)

	tf, err := b.Lookup(context.Background(), "front", "rear", time.Now(), time.Second)
	test.That(t, err, test.ShouldBeNil)
	// Origin of rear is at x=-1 in base, which is x=-2 in front.
	test.That(t, tf.Apply(r3.Vector{}).X, test.ShouldAlmostEqual, -2)
}

func TestStaticLookupDisconnected(t *testing.T) {
	b := NewStaticBuffer()
	test.That(t, b.SetTransform("base", "lidar", spatialmath.NewTransform()), test.ShouldBeNil)

	_, err := b.Lookup(context.Background(), "base", "elsewhere", time.Now(), time.Second)
	var unknown *UnknownFrameError
	test.That(t, errors.As(err, &unknown), test.ShouldBeTrue)
	test.That(t, unknown.Frame, test.ShouldEqual, "elsewhere")
}

func TestStaticLookupBetween(t *testing.T) {
	b := NewStaticBuffer()
	test.That(t, b.SetTransform("odom", "base", spatialmath.NewFromTranslation(r3.Vector{Y: 3})), test.ShouldBeNil)

	now := time.Now()
	tf, err := b.LookupBetween(context.Background(), "base", "odom", now, now.Add(time.Millisecond), time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tf.Apply(r3.Vector{X: 1}), test.ShouldResemble, r3.Vector{X: 1})

	_, err = b.LookupBetween(context.Background(), "base", "mars", now, now, time.Second)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSetTransformValidation(t *testing.T) {
	b := NewStaticBuffer()
	test.That(t, b.SetTransform("a", "a", spatialmath.NewTransform()), test.ShouldNotBeNil)
	test.That(t, b.SetTransform("", "a", spatialmath.NewTransform()), test.ShouldNotBeNil)
	test.That(t, b.SetTransform("a", "b", nil), test.ShouldNotBeNil)
}

func TestCycleDetection(t *testing.T) {
	b := NewStaticBuffer()
	test.That(t, b.SetTransform("a", "b", spatialmath.NewTransform()), test.ShouldBeNil)
	test.That(t, b.SetTransform("b", "a", spatialmath.NewTransform()), test.ShouldBeNil)
	_, err := b.Lookup(context.Background(), "a", "b", time.Now(), time.Second)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cycle")
}
