package pointcloud

import (
	"time"

	"github.com/golang/geo/r3"
)

// XYZFields returns the field table of a bare float32 x/y/z cloud with a
// 12-byte stride.
func XYZFields() []Field {
	return []Field{
		{Name: "x", Offset: 0, Datatype: Float32, Count: 1},
		{Name: "y", Offset: 4, Datatype: Float32, Count: 1},
		{Name: "z", Offset: 8, Datatype: Float32, Count: 1},
	}
}

// NewCloud returns an unstructured (height 1) little-endian cloud of count
// zeroed records with the given field table and stride.
func NewCloud(frameID string, stamp time.Time, fields []Field, pointStep uint32, count int) *Cloud {
	return &Cloud{
		FrameID:   frameID,
		Stamp:     stamp,
		Width:     uint32(count),
		Height:    1,
		Fields:    append([]Field(nil), fields...),
		PointStep: pointStep,
		RowStep:   pointStep * uint32(count),
		Data:      make([]byte, int(pointStep)*count),
		Dense:     true,
	}
}

// NewXYZCloud returns a dense cloud holding the given points as packed
// float32 x/y/z records.
func NewXYZCloud(frameID string, stamp time.Time, pts ...r3.Vector) *Cloud {
	c := NewCloud(frameID, stamp, XYZFields(), 12, len(pts))
	for i, p := range pts {
		c.SetFloat32(i, 0, float32(p.X))
		c.SetFloat32(i, 4, float32(p.Y))
		c.SetFloat32(i, 8, float32(p.Z))
	}
	return c
}
