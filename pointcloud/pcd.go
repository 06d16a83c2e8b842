package pointcloud

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

// PCDType is the data encoding of a written PCD file.
type PCDType int

const (
	// PCDAscii writes one point per text line.
	PCDAscii PCDType = 0
	// PCDBinary writes packed little-endian float32 triples.
	PCDBinary PCDType = 1
)

// ToPCD writes the x/y/z channels of the cloud as a v0.7 PCD file. Points
// with non-finite coordinates (invalid and max-range sentinels) are skipped;
// PCD has no representation for them.
func ToPCD(cloud *Cloud, out io.Writer, outputType PCDType) error {
	sf, err := cloud.spatialOffsets()
	if err != nil {
		return err
	}

	type pt struct{ x, y, z float32 }
	pts := make([]pt, 0, cloud.Size())
	for i := 0; i < cloud.Size(); i++ {
		p := pt{
			x: cloud.Float32At(i, sf.x),
			y: cloud.Float32At(i, sf.y),
			z: cloud.Float32At(i, sf.z),
		}
		if finite32(p.x) && finite32(p.y) && finite32(p.z) {
			pts = append(pts, p)
		}
	}

	if _, err = fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS x y z\n"+
		"SIZE 4 4 4\n"+
		"TYPE F F F\n"+
		"COUNT 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n", len(pts), len(pts)); err != nil {
		return err
	}

	switch outputType {
	case PCDBinary:
		if _, err = fmt.Fprintf(out, "DATA binary\n"); err != nil {
			return err
		}
		buf := make([]byte, 12)
		for _, p := range pts {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(p.x))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(p.y))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(p.z))
			if _, err = out.Write(buf); err != nil {
				return err
			}
		}
	case PCDAscii:
		if _, err = fmt.Fprintf(out, "DATA ascii\n"); err != nil {
			return err
		}
		for _, p := range pts {
			if _, err = fmt.Fprintf(out, "%f %f %f\n", p.x, p.y, p.z); err != nil {
				return err
			}
		}
	default:
		return errors.Errorf("unknown PCD output type %d", outputType)
	}
	return nil
}
