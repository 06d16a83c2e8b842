package pointcloud

import (
	"fmt"

	"github.com/pkg/errors"
)

// SchemaMismatchError indicates two clouds in a concatenation do not share
// the same field layout. Concatenation requires bit-compatible records:
// identical field tables (name, offset, datatype, count) and point stride.
type SchemaMismatchError struct {
	Index int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("cloud %d has a different field layout than cloud 0, cannot concatenate", e.Index)
}

func sameSchema(a, b *Cloud) bool {
	if a.PointStep != b.PointStep || a.BigEndian != b.BigEndian || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return false
		}
	}
	return true
}

// Concatenate appends the point records of all clouds into one unstructured
// cloud (height 1). The output frame and stamp come from the first cloud,
// its width is the sum of the input point counts, and it is dense only if
// every input is dense.
func Concatenate(clouds []*Cloud) (*Cloud, error) {
	if len(clouds) == 0 {
		return nil, errors.New("no clouds to concatenate")
	}
	first := clouds[0]

	total := 0
	for i, c := range clouds {
		if !sameSchema(first, c) {
			return nil, &SchemaMismatchError{Index: i}
		}
		total += c.Size()
	}

	out := &Cloud{
		FrameID:   first.FrameID,
		Stamp:     first.Stamp,
		Width:     uint32(total),
		Height:    1,
		Fields:    append([]Field(nil), first.Fields...),
		BigEndian: first.BigEndian,
		PointStep: first.PointStep,
		RowStep:   first.PointStep * uint32(total),
		Data:      make([]byte, 0, total*int(first.PointStep)),
		Dense:     true,
	}
	for _, c := range clouds {
		out.Data = append(out.Data, c.Data...)
		out.Dense = out.Dense && c.Dense
	}
	return out, nil
}
