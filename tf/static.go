package tf

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/huamingduo/rtabmap-ros/spatialmath"
)

// StaticBuffer is a Buffer backed by a table of time-invariant transforms
// arranged as a tree of child frame to parent frame edges.
type StaticBuffer struct {
	mu    sync.RWMutex
	edges map[string]staticEdge
}

type staticEdge struct {
	parent string
	// tf takes points in the child frame to the parent frame.
	tf *spatialmath.Transform
}

// NewStaticBuffer returns an empty static transform buffer.
func NewStaticBuffer() *StaticBuffer {
	return &StaticBuffer{edges: map[string]staticEdge{}}
}

// SetTransform registers the transform taking points in child to parent,
// replacing any previous parent of child.
func (b *StaticBuffer) SetTransform(parent, child string, tf *spatialmath.Transform) error {
	if tf.IsNull() {
		return errors.New("cannot register the null transform")
	}
	if parent == "" || child == "" || parent == child {
		return errors.Errorf("invalid frame pair %q -> %q", child, parent)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edges[child] = staticEdge{parent: parent, tf: tf}
	return nil
}

// rootChain walks child->parent edges from frame to its root, returning the
// root name and the composed transform taking points in frame to the root.
// Called with mu held.
func (b *StaticBuffer) rootChain(frame string) (string, *spatialmath.Transform, error) {
	current := frame
	acc := spatialmath.NewTransform()
	visited := map[string]bool{current: true}
	for {
		edge, ok := b.edges[current]
		if !ok {
			return current, acc, nil
		}
		acc = edge.tf.Compose(acc)
		current = edge.parent
		if visited[current] {
			return "", nil, errors.Errorf("transform tree has a cycle through frame %q", current)
		}
		visited[current] = true
	}
}

// Lookup implements Buffer. Static transforms are valid at every time, so
// the stamp and timeout are ignored.
func (b *StaticBuffer) Lookup(
	ctx context.Context, targetFrame, sourceFrame string, at time.Time, timeout time.Duration,
) (*spatialmath.Transform, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if targetFrame == sourceFrame {
		return spatialmath.NewTransform(), nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	targetRoot, toTargetRoot, err := b.rootChain(targetFrame)
	if err != nil {
		return nil, err
	}
	sourceRoot, toSourceRoot, err := b.rootChain(sourceFrame)
	if err != nil {
		return nil, err
	}
	if targetRoot != sourceRoot {
		return nil, &UnknownFrameError{Frame: sourceFrame}
	}
	return toTargetRoot.Invert().Compose(toSourceRoot), nil
}

// LookupBetween implements Buffer. A static world means a frame's pose in
// the fixed frame never changes, so the displacement between any two stamps
// is the identity, provided the frames are connected.
func (b *StaticBuffer) LookupBetween(
	ctx context.Context, frame, fixedFrame string, sourceTime, targetTime time.Time, timeout time.Duration,
) (*spatialmath.Transform, error) {
	if _, err := b.Lookup(ctx, fixedFrame, frame, sourceTime, timeout); err != nil {
		return nil, err
	}
	return spatialmath.NewTransform(), nil
}
