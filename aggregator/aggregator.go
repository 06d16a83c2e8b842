// Package aggregator fuses multiple synchronized point cloud streams into a
// single cloud expressed in one reference frame.
//
// Samples enter through AddCloud, one call per source stream. A temporal
// matcher groups them into synchronized tuples; each tuple is aligned to the
// reference frame through transform lookups, optionally compensated for
// timestamp drift between streams, concatenated and handed to the publisher.
// Fusion is skipped entirely while the publisher reports no subscribers.
package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"github.com/huamingduo/rtabmap-ros/msgsync"
	"github.com/huamingduo/rtabmap-ros/pointcloud"
	"github.com/huamingduo/rtabmap-ros/spatialmath"
	"github.com/huamingduo/rtabmap-ros/tf"
)

// watchdogInterval is how long the aggregator tolerates silence before
// logging an advisory warning.
const watchdogInterval = 5 * time.Second

// Publisher is the output collaborator receiving fused clouds.
type Publisher interface {
	// SubscriberCount reports how many consumers are currently interested
	// in the fused output. Fusion work is skipped while it is zero.
	SubscriberCount() int

	// Publish hands off one fused cloud.
	Publish(ctx context.Context, cloud *pointcloud.Cloud) error
}

// Aggregator synchronizes, aligns and concatenates point cloud streams.
type Aggregator struct {
	frameID       string
	fixedFrameID  string
	lookupTimeout time.Duration
	exactSync     bool

	tfBuffer tf.Buffer
	pub      Publisher
	matcher  *msgsync.Synchronizer
	logger   golog.Logger
	clock    clock.Clock

	// lastActivity is the unix-nano stamp of startup or the latest match,
	// read by the watchdog.
	lastActivity atomic.Int64

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// New returns a running aggregator. Close must be called to release its
// watchdog.
func New(cfg Config, tfBuffer tf.Buffer, pub Publisher, logger golog.Logger) (*Aggregator, error) {
	return newWithClock(cfg, tfBuffer, pub, logger, clock.New())
}

func newWithClock(
	cfg Config, tfBuffer tf.Buffer, pub Publisher, logger golog.Logger, clk clock.Clock,
) (*Aggregator, error) {
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	a := &Aggregator{
		frameID:       cfg.FrameID,
		fixedFrameID:  cfg.FixedFrameID,
		lookupTimeout: cfg.lookupTimeout(),
		exactSync:     cfg.ExactSync,
		tfBuffer:      tfBuffer,
		pub:           pub,
		logger:        logger,
		clock:         clk,
		cancelCtx:     cancelCtx,
		cancelFunc:    cancelFunc,
	}
	matcher, err := msgsync.New(cfg.count(), cfg.policy(), cfg.queueSize(), a.combineClouds)
	if err != nil {
		cancelFunc()
		return nil, err
	}
	a.matcher = matcher
	a.lastActivity.Store(clk.Now().UnixNano())

	// The ticker is created before the goroutine starts so the watchdog is
	// already observing the clock by the time the constructor returns.
	ticker := clk.Ticker(watchdogInterval)
	a.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() { a.watchdog(ticker) }, a.activeBackgroundWorkers.Done)
	return a, nil
}

// SourceCount returns the number of input streams.
func (a *Aggregator) SourceCount() int {
	return a.matcher.SourceCount()
}

// AddCloud delivers one sample for the given source index. If the sample
// completes a synchronized tuple, the full fusion cycle runs on the calling
// goroutine before AddCloud returns.
func (a *Aggregator) AddCloud(ctx context.Context, source int, cloud *pointcloud.Cloud) error {
	return a.matcher.Add(ctx, source, cloud)
}

// Close stops the watchdog and waits for it to exit.
func (a *Aggregator) Close() error {
	a.cancelFunc()
	a.activeBackgroundWorkers.Wait()
	return nil
}

func (a *Aggregator) watchdog(ticker *clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-a.cancelCtx.Done():
			return
		case <-ticker.C:
		}
		last := time.Unix(0, a.lastActivity.Load())
		if a.clock.Now().Sub(last) < watchdogInterval {
			continue
		}
		msg := "no synchronized point clouds received in the last 5 seconds; " +
			"make sure all input streams are being delivered and their timestamps are set"
		if a.exactSync {
			msg += " (exact_sync requires bit-identical timestamps on every stream)"
		}
		a.logger.Warnw(msg, "streams", a.matcher.SourceCount())
	}
}

// combineClouds runs one fusion cycle for a synchronized tuple. Failures
// drop the tuple and never propagate; the matcher has already advanced.
func (a *Aggregator) combineClouds(ctx context.Context, clouds []*pointcloud.Cloud) {
	a.lastActivity.Store(a.clock.Now().UnixNano())
	if a.pub.SubscriberCount() == 0 {
		return
	}

	frameID := a.frameID
	reference := clouds[0]
	if frameID != "" && frameID != reference.FrameID {
		t, err := a.tfBuffer.Lookup(ctx, frameID, reference.FrameID, reference.Stamp, a.lookupTimeout)
		if err != nil || t.IsNull() {
			a.logger.Warnw("dropping tuple: cannot resolve reference transform",
				"target_frame", frameID, "source_frame", reference.FrameID, "error", err)
			return
		}
		transformed, err := pointcloud.ApplyTransform(t, reference)
		if err != nil {
			a.logger.Warnw("dropping tuple: cannot transform reference cloud", "error", err)
			return
		}
		reference = transformed
	} else {
		frameID = reference.FrameID
	}

	aligned := make([]*pointcloud.Cloud, 0, len(clouds))
	aligned = append(aligned, reference)
	for i := 1; i < len(clouds); i++ {
		cloud := clouds[i]

		// Streams matched approximately carry different stamps; if a
		// fixed frame is configured, look up how the target frame moved
		// between the two stamps so the older cloud can be carried
		// forward. Failure here degrades to no compensation.
		var displacement *spatialmath.Transform
		if a.fixedFrameID != "" && !clouds[0].Stamp.Equal(cloud.Stamp) {
			d, err := a.tfBuffer.LookupBetween(
				ctx, frameID, a.fixedFrameID, cloud.Stamp, clouds[0].Stamp, a.lookupTimeout)
			if err != nil {
				a.logger.Debugw("no drift compensation available, proceeding without",
					"source", i, "error", err)
			} else {
				displacement = d
			}
		}

		if frameID != cloud.FrameID {
			t, err := a.tfBuffer.Lookup(ctx, frameID, cloud.FrameID, cloud.Stamp, a.lookupTimeout)
			if err != nil || t.IsNull() {
				a.logger.Warnw("dropping tuple: cannot resolve stream transform",
					"source", i, "target_frame", frameID, "source_frame", cloud.FrameID, "error", err)
				return
			}
			transformed, err := pointcloud.ApplyTransform(t, cloud)
			if err != nil {
				a.logger.Warnw("dropping tuple: cannot transform stream cloud", "source", i, "error", err)
				return
			}
			cloud = transformed
		}

		if !displacement.IsNull() {
			moved, err := pointcloud.ApplyTransform(displacement, cloud)
			if err != nil {
				a.logger.Warnw("dropping tuple: cannot apply drift compensation", "source", i, "error", err)
				return
			}
			cloud = moved
		}

		aligned = append(aligned, cloud)
	}

	fused, err := pointcloud.Concatenate(aligned)
	if err != nil {
		a.logger.Warnw("dropping tuple: cannot concatenate aligned clouds", "error", err)
		return
	}
	fused.FrameID = frameID
	fused.Stamp = clouds[0].Stamp

	if err := a.pub.Publish(ctx, fused); err != nil {
		a.logger.Warnw("failed to publish fused cloud", "error", err)
	}
}
