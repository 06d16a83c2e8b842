// Package tf defines the transform-resolution contract the aggregator
// depends on, plus an in-memory implementation backed by static transforms
// for tests and offline replay.
package tf

import (
	"context"
	"fmt"
	"time"

	"github.com/huamingduo/rtabmap-ros/spatialmath"
)

// Buffer resolves named rigid transforms between coordinate frames. A ROS
// tf2 buffer fed by a listener satisfies this; so does a static table.
//
// Lookups are bounded by the given timeout and report failure either with an
// error or by returning the null transform.
type Buffer interface {
	// Lookup returns the transform taking points expressed in sourceFrame
	// to targetFrame at the given time.
	Lookup(ctx context.Context, targetFrame, sourceFrame string, at time.Time, timeout time.Duration) (*spatialmath.Transform, error)

	// LookupBetween returns the transform taking points expressed in
	// frame at sourceTime to the same frame at targetTime, traveling
	// through fixedFrame. It captures the motion of frame between the two
	// stamps and is used as a time-drift compensation displacement.
	LookupBetween(ctx context.Context, frame, fixedFrame string, sourceTime, targetTime time.Time, timeout time.Duration) (*spatialmath.Transform, error)
}

// UnknownFrameError indicates a lookup referenced a frame the buffer has no
// path to.
type UnknownFrameError struct {
	Frame string
}

func (e *UnknownFrameError) Error() string {
	return fmt.Sprintf("frame %q is not connected to the transform tree", e.Frame)
}
