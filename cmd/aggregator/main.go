// Package main contains a command to replay point cloud topics from a rosbag
// through the aggregator, writing each fused cloud out as a PCD file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/num/quat"

	"github.com/huamingduo/rtabmap-ros/aggregator"
	"github.com/huamingduo/rtabmap-ros/pointcloud"
	"github.com/huamingduo/rtabmap-ros/ros"
	"github.com/huamingduo/rtabmap-ros/spatialmath"
	"github.com/huamingduo/rtabmap-ros/tf"
)

var logger = golog.NewDevelopmentLogger("cloud_aggregator")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,usage=path to aggregator config JSON"`
	BagFile    string `flag:"bag,usage=path to rosbag holding the cloud topics"`
	OutDir     string `flag:"out,usage=directory fused PCD files are written to"`
}

// replayConfig extends the aggregator options with replay-only settings.
type replayConfig struct {
	aggregator.Config

	// Topics holds one topic name per source; defaults to cloud1..cloudN.
	Topics []string `json:"topics"`

	StaticTransforms []staticTransformConfig `json:"static_transforms"`
}

type staticTransformConfig struct {
	Parent      string `json:"parent"`
	Child       string `json:"child"`
	Translation struct {
		X, Y, Z float64
	} `json:"translation"`
	// Rotation is a quaternion; all zeroes means identity.
	Rotation struct {
		X, Y, Z, W float64
	} `json:"rotation"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.BagFile == "" {
		return errors.New("no rosbag given (-bag)")
	}
	if argsParsed.OutDir == "" {
		argsParsed.OutDir = "."
	}

	cfg, err := loadConfig(argsParsed.ConfigFile)
	if err != nil {
		return err
	}
	return replayBag(ctx, cfg, argsParsed.BagFile, argsParsed.OutDir, logger)
}

func loadConfig(path string) (*replayConfig, error) {
	var cfg replayConfig
	if path != "" {
		//nolint:gosec
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read config file")
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, errors.Wrap(err, "cannot parse config file")
		}
	}
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func buildTransformBuffer(cfg *replayConfig) (*tf.StaticBuffer, error) {
	buf := tf.NewStaticBuffer()
	for _, st := range cfg.StaticTransforms {
		rot := quat.Number{Real: st.Rotation.W, Imag: st.Rotation.X, Jmag: st.Rotation.Y, Kmag: st.Rotation.Z}
		if rot == (quat.Number{}) {
			rot.Real = 1
		}
		transform := spatialmath.NewFromQuaternion(
			r3.Vector{X: st.Translation.X, Y: st.Translation.Y, Z: st.Translation.Z}, rot)
		if err := buf.SetTransform(st.Parent, st.Child, transform); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func replayBag(ctx context.Context, cfg *replayConfig, bagFile, outDir string, logger golog.Logger) (err error) {
	buf, err := buildTransformBuffer(cfg)
	if err != nil {
		return err
	}

	pub := &pcdPublisher{dir: outDir, logger: logger}
	agg, err := aggregator.New(cfg.Config, buf, pub, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, agg.Close())
	}()

	topics := cfg.Topics
	for i := len(topics); i < agg.SourceCount(); i++ {
		topics = append(topics, fmt.Sprintf("cloud%d", i+1))
	}

	bag, err := ros.ReadBag(bagFile)
	if err != nil {
		return err
	}

	type sample struct {
		source int
		cloud  *pointcloud.Cloud
	}
	var samples []sample
	for source, topic := range topics[:agg.SourceCount()] {
		clouds, err := ros.CloudsForTopic(bag, topic)
		if err != nil {
			return errors.Wrapf(err, "cannot load topic %q", topic)
		}
		logger.Infow("loaded topic", "topic", topic, "clouds", len(clouds))
		for _, cloud := range clouds {
			samples = append(samples, sample{source: source, cloud: cloud})
		}
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].cloud.Stamp.Before(samples[j].cloud.Stamp)
	})

	for _, s := range samples {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := agg.AddCloud(ctx, s.source, s.cloud); err != nil {
			return err
		}
	}
	logger.Infow("replay finished", "samples", len(samples), "fused", pub.written)
	return nil
}

// pcdPublisher writes each fused cloud to a numbered PCD file.
type pcdPublisher struct {
	dir     string
	written int
	logger  golog.Logger
}

func (p *pcdPublisher) SubscriberCount() int {
	return 1
}

func (p *pcdPublisher) Publish(ctx context.Context, cloud *pointcloud.Cloud) (err error) {
	name := filepath.Join(p.dir, fmt.Sprintf("fused_%06d.pcd", p.written))
	//nolint:gosec
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	if err := pointcloud.ToPCD(cloud, f, pointcloud.PCDBinary); err != nil {
		return err
	}
	p.written++
	p.logger.Debugw("wrote fused cloud", "file", name, "points", cloud.Size())
	return nil
}
