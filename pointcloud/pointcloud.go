// Package pointcloud defines the packed point cloud buffer exchanged between
// range sensor streams and the fusion pipeline, along with the operations the
// pipeline performs on it: spatial field resolution, rigid transformation and
// concatenation.
//
// A Cloud mirrors the common wire layout for sensor point clouds: one byte
// slice holding width*height fixed-stride records, described by a field
// table. Only the spatial fields (x/y/z, optional distance and viewpoint) are
// ever interpreted; everything else rides along untouched.
package pointcloud

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

// FieldType enumerates the primitive element types a field can hold. The
// values match the sensor_msgs/PointField constants so clouds can round-trip
// through ROS messages unmodified.
type FieldType uint8

// Supported field element types.
const (
	Int8    FieldType = 1
	UInt8   FieldType = 2
	Int16   FieldType = 3
	UInt16  FieldType = 4
	Int32   FieldType = 5
	UInt32  FieldType = 6
	Float32 FieldType = 7
	Float64 FieldType = 8
)

// Size returns the byte size of one element of the type, or 0 if unknown.
func (ft FieldType) Size() uint32 {
	switch ft {
	case Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// Field describes one named channel within a point record.
type Field struct {
	Name     string
	Offset   uint32
	Datatype FieldType
	Count    uint32
}

// Cloud is a packed point cloud sample.
type Cloud struct {
	FrameID string
	Stamp   time.Time

	Width  uint32
	Height uint32

	Fields    []Field
	BigEndian bool
	PointStep uint32
	RowStep   uint32
	Data      []byte
	Dense     bool
}

// Size returns the number of points in the cloud.
func (c *Cloud) Size() int {
	return int(c.Width) * int(c.Height)
}

// FieldIndex returns the index of the named field, or -1 if absent.
func (c *Cloud) FieldIndex(name string) int {
	for i, f := range c.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks the structural invariants of the cloud: the data length
// must match the declared point count and stride, and every field must fit
// within the stride.
func (c *Cloud) Validate() error {
	if want := int(c.PointStep) * c.Size(); len(c.Data) != want {
		return errors.Errorf("cloud data is %d bytes, want %d (%dx%d points, stride %d)",
			len(c.Data), want, c.Width, c.Height, c.PointStep)
	}
	for _, f := range c.Fields {
		size := f.Datatype.Size()
		if size == 0 {
			return errors.Errorf("field %q has unknown datatype %d", f.Name, f.Datatype)
		}
		if f.Count == 0 {
			return errors.Errorf("field %q has zero count", f.Name)
		}
		if f.Offset+size*f.Count > c.PointStep {
			return errors.Errorf("field %q (offset %d, %d bytes) exceeds point stride %d",
				f.Name, f.Offset, size*f.Count, c.PointStep)
		}
	}
	return nil
}

// Clone returns a deep copy of the cloud.
func (c *Cloud) Clone() *Cloud {
	out := *c
	out.Fields = append([]Field(nil), c.Fields...)
	out.Data = append([]byte(nil), c.Data...)
	return &out
}

func (c *Cloud) byteOrder() binary.ByteOrder {
	if c.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Float32At reads the float32 at the given field offset of point i.
func (c *Cloud) Float32At(i int, offset uint32) float32 {
	pos := i*int(c.PointStep) + int(offset)
	return math.Float32frombits(c.byteOrder().Uint32(c.Data[pos:]))
}

// SetFloat32 writes the float32 at the given field offset of point i.
func (c *Cloud) SetFloat32(i int, offset uint32, v float32) {
	pos := i*int(c.PointStep) + int(offset)
	c.byteOrder().PutUint32(c.Data[pos:], math.Float32bits(v))
}
