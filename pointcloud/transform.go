package pointcloud

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/huamingduo/rtabmap-ros/spatialmath"
)

// pointKind tags the three states a packed point record can be in. The
// sentinel encoding (NaN coordinates, depth stashed in the distance field) is
// decoded into this variant up front and re-serialized on write-back so the
// transform math itself never compares NaNs.
type pointKind uint8

const (
	// pointValid: finite x/y/z, transformed normally.
	pointValid pointKind = iota
	// pointMaxRange: non-finite coordinates but a finite distance value.
	// The distance holds the pre-transform depth along the sensor x-axis.
	pointMaxRange
	// pointInvalid: non-finite coordinates, no usable distance. Passed
	// through untouched.
	pointInvalid
)

func finite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func classify(x, y, z, distance float32, hasDistance bool) pointKind {
	if finite32(x) && finite32(y) && finite32(z) {
		return pointValid
	}
	if hasDistance && finite32(distance) {
		return pointMaxRange
	}
	return pointInvalid
}

// ApplyTransform returns a copy of the cloud with every point moved by tf.
//
// Valid points transform normally. Max-range points (see pointMaxRange) are
// reconstituted as (distance, y, z), transformed, and re-encoded: the
// transformed x lands back in the distance field and the output x is NaN.
// Fully invalid points are copied through unchanged. If the cloud carries a
// viewpoint field group, every record's vp_x/vp_y/vp_z vector is transformed
// in a second pass regardless of point validity.
//
// Only field-schema problems abort the transform; individual points never do.
func ApplyTransform(tf *spatialmath.Transform, in *Cloud) (*Cloud, error) {
	if tf.IsNull() {
		return nil, errors.New("cannot transform cloud with the null transform")
	}
	sf, err := in.spatialOffsets()
	if err != nil {
		return nil, err
	}

	// Copy everything up front; only spatial fields are rewritten below.
	out := in.Clone()
	m := tf.Mat4f()
	nan := float32(math.NaN())

	for i := 0; i < in.Size(); i++ {
		x := in.Float32At(i, sf.x)
		y := in.Float32At(i, sf.y)
		z := in.Float32At(i, sf.z)

		var distance float32
		if sf.distance >= 0 {
			distance = in.Float32At(i, uint32(sf.distance))
		}

		switch classify(x, y, z, distance, sf.distance >= 0) {
		case pointValid:
			v := m.Mul4x1(mgl32.Vec4{x, y, z, 1})
			out.SetFloat32(i, sf.x, v.X())
			out.SetFloat32(i, sf.y, v.Y())
			out.SetFloat32(i, sf.z, v.Z())
		case pointMaxRange:
			v := m.Mul4x1(mgl32.Vec4{distance, y, z, 1})
			out.SetFloat32(i, uint32(sf.distance), v.X())
			out.SetFloat32(i, sf.x, nan)
			out.SetFloat32(i, sf.y, v.Y())
			out.SetFloat32(i, sf.z, v.Z())
		case pointInvalid:
			// Already copied verbatim by the clone.
		}
	}

	if sf.viewpoint >= 0 {
		vp := uint32(sf.viewpoint)
		for i := 0; i < out.Size(); i++ {
			v := m.Mul4x1(mgl32.Vec4{
				out.Float32At(i, vp),
				out.Float32At(i, vp+4),
				out.Float32At(i, vp+8),
				1,
			})
			out.SetFloat32(i, vp, v.X())
			out.SetFloat32(i, vp+4, v.Y())
			out.SetFloat32(i, vp+8, v.Z())
		}
	}
	return out, nil
}
