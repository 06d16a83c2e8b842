// Package msgsync matches time-stamped samples from multiple independent
// point cloud streams into synchronized tuples.
//
// A Synchronizer accepts one sample per source as it arrives and keeps a
// bounded per-source queue. Under PolicyExact a tuple is emitted only when
// every source holds a sample with an identical timestamp. Under
// PolicyApprox a tuple is emitted as soon as every queue is non-empty,
// choosing the combination that minimizes the maximum pairwise timestamp
// spread among the currently queued candidates. Samples displaced by the
// queue bound or left behind by a match are dropped silently.
package msgsync

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/huamingduo/rtabmap-ros/pointcloud"
)

// Policy selects how timestamps are matched across sources.
type Policy int

const (
	// PolicyExact requires identical timestamps on all sources.
	PolicyExact Policy = iota
	// PolicyApprox matches the closest available timestamps.
	PolicyApprox
)

// Source count limits and the default queue bound.
const (
	MinSources        = 2
	MaxSources        = 4
	DefaultQueueDepth = 5
)

// Callback receives one synchronized tuple, ordered by source index, along
// with the context of the Add call that completed the match. The
// synchronizer holds no lock on its queues while the callback runs.
type Callback func(ctx context.Context, clouds []*pointcloud.Cloud)

// Synchronizer is a multi-stream temporal matcher. It is safe for concurrent
// Add calls from distinct delivery contexts.
type Synchronizer struct {
	policy Policy
	depth  int
	cb     Callback

	mu     sync.Mutex
	queues [][]*pointcloud.Cloud

	// emitMu serializes callback invocations so tuples are delivered in
	// the order they were matched.
	emitMu sync.Mutex
}

// New returns a synchronizer for sourceCount streams. A non-positive
// queueDepth uses DefaultQueueDepth.
func New(sourceCount int, policy Policy, queueDepth int, cb Callback) (*Synchronizer, error) {
	if sourceCount < MinSources || sourceCount > MaxSources {
		return nil, errors.Errorf("source count must be between %d and %d, got %d",
			MinSources, MaxSources, sourceCount)
	}
	if cb == nil {
		return nil, errors.New("synchronizer needs a callback")
	}
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	return &Synchronizer{
		policy: policy,
		depth:  queueDepth,
		cb:     cb,
		queues: make([][]*pointcloud.Cloud, sourceCount),
	}, nil
}

// SourceCount returns the number of streams being synchronized.
func (s *Synchronizer) SourceCount() int {
	return len(s.queues)
}

// Add delivers one sample for the given source index, evaluating a match.
// If a tuple is matched, the callback runs on the calling goroutine before
// Add returns.
func (s *Synchronizer) Add(ctx context.Context, source int, cloud *pointcloud.Cloud) error {
	if source < 0 || source >= len(s.queues) {
		return errors.Errorf("source index %d out of range [0,%d)", source, len(s.queues))
	}
	if cloud == nil {
		return errors.New("nil cloud")
	}

	s.mu.Lock()
	q := append(s.queues[source], cloud)
	if len(q) > s.depth {
		// Bounded window: the oldest unmatched sample is dropped.
		q = q[1:]
	}
	s.queues[source] = q
	tuple := s.match()
	if tuple == nil {
		s.mu.Unlock()
		return nil
	}

	// emitMu is acquired before mu is released so a concurrent Add that
	// extracts the next tuple cannot deliver it first.
	s.emitMu.Lock()
	s.mu.Unlock()
	s.cb(ctx, tuple)
	s.emitMu.Unlock()
	return nil
}

// match is called with mu held. It extracts a matched tuple from the queues,
// pruning matched and older samples, or returns nil.
func (s *Synchronizer) match() []*pointcloud.Cloud {
	if s.policy == PolicyExact {
		return s.matchExact()
	}
	return s.matchApprox()
}

func (s *Synchronizer) matchExact() []*pointcloud.Cloud {
	for i0, c0 := range s.queues[0] {
		picks := make([]int, len(s.queues))
		picks[0] = i0
		complete := true
		for src := 1; src < len(s.queues); src++ {
			picks[src] = -1
			for k, c := range s.queues[src] {
				if c.Stamp.Equal(c0.Stamp) {
					picks[src] = k
					break
				}
			}
			if picks[src] < 0 {
				complete = false
				break
			}
		}
		if complete {
			return s.extract(picks)
		}
	}
	return nil
}

func (s *Synchronizer) matchApprox() []*pointcloud.Cloud {
	for _, q := range s.queues {
		if len(q) == 0 {
			return nil
		}
	}

	// Brute-force over all candidate combinations; with at most 4 sources
	// and a small queue bound the product stays tiny.
	idx := make([]int, len(s.queues))
	best := make([]int, len(s.queues))
	bestSpread := time.Duration(-1)
	for {
		var lo, hi time.Time
		for src, i := range idx {
			st := s.queues[src][i].Stamp
			if src == 0 || st.Before(lo) {
				lo = st
			}
			if src == 0 || st.After(hi) {
				hi = st
			}
		}
		if spread := hi.Sub(lo); bestSpread < 0 || spread < bestSpread {
			bestSpread = spread
			copy(best, idx)
		}

		k := len(idx) - 1
		for k >= 0 {
			idx[k]++
			if idx[k] < len(s.queues[k]) {
				break
			}
			idx[k] = 0
			k--
		}
		if k < 0 {
			break
		}
	}
	return s.extract(best)
}

// extract removes the picked sample and everything queued before it from
// each source and returns the tuple. Earlier samples are stale once a later
// match exists; dropping them keeps emission in timestamp order.
func (s *Synchronizer) extract(picks []int) []*pointcloud.Cloud {
	tuple := make([]*pointcloud.Cloud, len(s.queues))
	for src, i := range picks {
		tuple[src] = s.queues[src][i]
		s.queues[src] = append([]*pointcloud.Cloud(nil), s.queues[src][i+1:]...)
	}
	return tuple
}
