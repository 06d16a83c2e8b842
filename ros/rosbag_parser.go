package ros

import (
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/huamingduo/rtabmap-ros/pointcloud"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	defer utils.UncheckedErrorFunc(f.Close)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}

	rb := rosbag.NewRosBag()

	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag")
	}

	return rb, nil
}

// bagMessage is the envelope gobag wraps each parsed message in.
type bagMessage struct {
	Meta struct {
		Secs  int64
		Nsecs int64
	}
	Data PointCloud2Message
}

// CloudsForTopic parses every PointCloud2 message on the given topic into
// clouds, sorted by capture stamp.
func CloudsForTopic(rb *rosbag.RosBag, topic string) ([]*pointcloud.Cloud, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return t == topic },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	msgs := rb.TopicsAsJSON[topic]
	if msgs == nil {
		return nil, errors.Errorf("no messages for topic %s", topic)
	}

	var clouds []*pointcloud.Cloud
	for {
		data, err := msgs.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		var msg bagMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, errors.Wrapf(err, "malformed message on topic %s", topic)
		}
		cloud, err := CloudFromMessage(&msg.Data)
		if err != nil {
			return nil, err
		}
		clouds = append(clouds, cloud)
	}

	sort.Slice(clouds, func(i, j int) bool {
		return clouds[i].Stamp.Before(clouds[j].Stamp)
	})
	return clouds, nil
}
