// Package ros bridges ROS point cloud data into the aggregator: message
// structures matching rosbag JSON output and conversions to the packed cloud
// model.
package ros

import (
	"time"

	"github.com/pkg/errors"

	"github.com/huamingduo/rtabmap-ros/pointcloud"
)

// PointCloud2Message mirrors sensor_msgs/PointCloud2 as emitted by rosbag
// JSON parsing.
type PointCloud2Message struct {
	Header struct {
		Seq   int `json:"seq"`
		Stamp struct {
			Secs  int64 `json:"secs"`
			Nsecs int64 `json:"nsecs"`
		} `json:"stamp"`
		FrameID string `json:"frame_id"`
	} `json:"header"`
	Height uint32 `json:"height"`
	Width  uint32 `json:"width"`
	Fields []struct {
		Name     string `json:"name"`
		Offset   uint32 `json:"offset"`
		Datatype uint8  `json:"datatype"`
		Count    uint32 `json:"count"`
	} `json:"fields"`
	IsBigendian bool   `json:"is_bigendian"`
	PointStep   uint32 `json:"point_step"`
	RowStep     uint32 `json:"row_step"`
	Data        []byte `json:"data"`
	IsDense     bool   `json:"is_dense"`
}

// CloudFromMessage converts a decoded message into a validated cloud.
func CloudFromMessage(msg *PointCloud2Message) (*pointcloud.Cloud, error) {
	cloud := &pointcloud.Cloud{
		FrameID:   msg.Header.FrameID,
		Stamp:     time.Unix(msg.Header.Stamp.Secs, msg.Header.Stamp.Nsecs).UTC(),
		Width:     msg.Width,
		Height:    msg.Height,
		Fields:    make([]pointcloud.Field, 0, len(msg.Fields)),
		BigEndian: msg.IsBigendian,
		PointStep: msg.PointStep,
		RowStep:   msg.RowStep,
		Data:      msg.Data,
		Dense:     msg.IsDense,
	}
	for _, f := range msg.Fields {
		cloud.Fields = append(cloud.Fields, pointcloud.Field{
			Name:     f.Name,
			Offset:   f.Offset,
			Datatype: pointcloud.FieldType(f.Datatype),
			Count:    f.Count,
		})
	}
	if err := cloud.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid PointCloud2 message")
	}
	return cloud, nil
}

// MessageFromCloud converts a cloud back into the message shape.
func MessageFromCloud(cloud *pointcloud.Cloud) *PointCloud2Message {
	msg := &PointCloud2Message{
		Height:      cloud.Height,
		Width:       cloud.Width,
		IsBigendian: cloud.BigEndian,
		PointStep:   cloud.PointStep,
		RowStep:     cloud.RowStep,
		Data:        cloud.Data,
		IsDense:     cloud.Dense,
	}
	msg.Header.FrameID = cloud.FrameID
	msg.Header.Stamp.Secs = cloud.Stamp.Unix()
	msg.Header.Stamp.Nsecs = int64(cloud.Stamp.Nanosecond())
	for _, f := range cloud.Fields {
		msg.Fields = append(msg.Fields, struct {
			Name     string `json:"name"`
			Offset   uint32 `json:"offset"`
			Datatype uint8  `json:"datatype"`
			Count    uint32 `json:"count"`
		}{f.Name, f.Offset, uint8(f.Datatype), f.Count})
	}
	return msg
}
