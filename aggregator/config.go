package aggregator

import (
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/huamingduo/rtabmap-ros/msgsync"
)

// Default configuration values, matching the historical aggregator node.
const (
	DefaultCount         = 2
	DefaultQueueSize     = msgsync.DefaultQueueDepth
	DefaultLookupTimeout = 100 * time.Millisecond
)

// Config holds the aggregator options.
type Config struct {
	// Count is the number of input streams (2 to 4). Zero means DefaultCount.
	Count int `json:"count"`

	// ExactSync requires bit-identical timestamps across streams. The
	// default (false) matches approximately by minimal timestamp spread.
	ExactSync bool `json:"exact_sync"`

	// QueueSize bounds each stream's matching window. Zero means
	// DefaultQueueSize.
	QueueSize int `json:"queue_size"`

	// FrameID is the target frame of the fused cloud. Empty means the
	// frame of the first stream's sample.
	FrameID string `json:"frame_id"`

	// FixedFrameID enables time-drift compensation between streams whose
	// stamps differ, expressed through this fixed frame. Empty disables it.
	FixedFrameID string `json:"fixed_frame_id"`

	// WaitForTransformSec is the transform lookup budget in seconds.
	// Zero means DefaultLookupTimeout.
	WaitForTransformSec float64 `json:"wait_for_transform"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Count != 0 && (cfg.Count < msgsync.MinSources || cfg.Count > msgsync.MaxSources) {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("count must be between %d and %d", msgsync.MinSources, msgsync.MaxSources))
	}
	if cfg.QueueSize < 0 {
		return goutils.NewConfigValidationError(path, errors.New("queue_size cannot be negative"))
	}
	if cfg.WaitForTransformSec < 0 {
		return goutils.NewConfigValidationError(path, errors.New("wait_for_transform cannot be negative"))
	}
	return nil
}

func (cfg *Config) count() int {
	if cfg.Count == 0 {
		return DefaultCount
	}
	return cfg.Count
}

func (cfg *Config) queueSize() int {
	if cfg.QueueSize == 0 {
		return DefaultQueueSize
	}
	return cfg.QueueSize
}

func (cfg *Config) policy() msgsync.Policy {
	if cfg.ExactSync {
		return msgsync.PolicyExact
	}
	return msgsync.PolicyApprox
}

func (cfg *Config) lookupTimeout() time.Duration {
	if cfg.WaitForTransformSec == 0 {
		return DefaultLookupTimeout
	}
	return time.Duration(cfg.WaitForTransformSec * float64(time.Second))
}
