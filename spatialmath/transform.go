// Package spatialmath defines rigid 3D transforms and the operations the
// cloud pipeline needs on them.
package spatialmath

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Transform is a rigid transform (rotation plus translation) stored as a 4x4
// homogeneous matrix. A nil *Transform is the null transform, the "lookup
// failed / not available" sentinel; every method accepts a nil receiver.
type Transform struct {
	m mgl64.Mat4
}

// NewTransform returns the identity transform.
func NewTransform() *Transform {
	return &Transform{m: mgl64.Ident4()}
}

// NewFromMatrix returns a transform wrapping the given homogeneous matrix.
// The caller is responsible for m being rigid (orthonormal rotation block).
func NewFromMatrix(m mgl64.Mat4) *Transform {
	return &Transform{m: m}
}

// NewFromTranslation returns a pure translation.
func NewFromTranslation(t r3.Vector) *Transform {
	m := mgl64.Ident4()
	m.SetCol(3, mgl64.Vec4{t.X, t.Y, t.Z, 1})
	return &Transform{m: m}
}

// NewFromQuaternion returns the transform rotating by q (normalized first)
// and then translating by t. This is the form frame transforms arrive in
// from transform-resolution services.
func NewFromQuaternion(t r3.Vector, q quat.Number) *Transform {
	rot := mgl64.Quat{W: q.Real, V: mgl64.Vec3{q.Imag, q.Jmag, q.Kmag}}
	m := rot.Normalize().Mat4()
	m.SetCol(3, mgl64.Vec4{t.X, t.Y, t.Z, 1})
	return &Transform{m: m}
}

// IsNull reports whether the transform is the null sentinel.
func (t *Transform) IsNull() bool {
	return t == nil
}

// Mat4 returns the homogeneous matrix. The matrix of a null transform is the
// identity so that callers composing through an unavailable link degrade to a
// no-op rather than a garbage product.
func (t *Transform) Mat4() mgl64.Mat4 {
	if t == nil {
		return mgl64.Ident4()
	}
	return t.m
}

// Mat4f returns the matrix in single precision for use against packed
// float32 point records.
func (t *Transform) Mat4f() mgl32.Mat4 {
	m := t.Mat4()
	var out mgl32.Mat4
	for i := range m {
		out[i] = float32(m[i])
	}
	return out
}

// Compose returns t·other, the transform equivalent to applying other first
// and then t. Composing with the null transform yields the non-null operand.
func (t *Transform) Compose(other *Transform) *Transform {
	if t == nil {
		return other
	}
	if other == nil {
		return t
	}
	return &Transform{m: t.m.Mul4(other.m)}
}

// Invert returns the inverse transform, or nil for the null transform.
func (t *Transform) Invert() *Transform {
	if t == nil {
		return nil
	}
	return &Transform{m: t.m.Inv()}
}

// Apply transforms a single point.
func (t *Transform) Apply(p r3.Vector) r3.Vector {
	if t == nil {
		return p
	}
	v := t.m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	return r3.Vector{X: v.X(), Y: v.Y(), Z: v.Z()}
}

// Translation returns the translation component.
func (t *Transform) Translation() r3.Vector {
	if t == nil {
		return r3.Vector{}
	}
	c := t.m.Col(3)
	return r3.Vector{X: c.X(), Y: c.Y(), Z: c.Z()}
}

func (t *Transform) String() string {
	if t == nil {
		return "Transform(null)"
	}
	tr := t.Translation()
	return fmt.Sprintf("Transform(t=%.3f,%.3f,%.3f)", tr.X, tr.Y, tr.Z)
}
