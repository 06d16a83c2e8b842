package pointcloud

import "fmt"

// Spatial field names interpreted by the transform step.
const (
	fieldX        = "x"
	fieldY        = "y"
	fieldZ        = "z"
	fieldDistance = "distance"
	fieldVPX      = "vp_x"
	fieldVPY      = "vp_y"
	fieldVPZ      = "vp_z"
)

// MissingFieldError indicates a cloud lacks one of the required x/y/z fields.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("cloud has no %q field, cannot transform", e.Field)
}

// UnsupportedTypeError indicates a required spatial field is not 32-bit float.
type UnsupportedTypeError struct {
	Field    string
	Datatype FieldType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("field %q has datatype %d, only 32-bit float spatial fields are supported",
		e.Field, e.Datatype)
}

// spatialFields holds the resolved byte offsets of the fields the transform
// step touches. distance and viewpoint are -1 when absent.
type spatialFields struct {
	x, y, z   uint32
	distance  int
	viewpoint int
}

// spatialOffsets resolves and validates the spatial fields of the cloud.
// x/y/z must exist and be single floats; distance and the vp_x/vp_y/vp_z
// group are optional. Optional fields that exist with a non-float32 type are
// ignored rather than rejected, matching how permissive sensor drivers
// declare them.
func (c *Cloud) spatialOffsets() (spatialFields, error) {
	sf := spatialFields{distance: -1, viewpoint: -1}
	for _, name := range []string{fieldX, fieldY, fieldZ} {
		idx := c.FieldIndex(name)
		if idx < 0 {
			return sf, &MissingFieldError{Field: name}
		}
		f := c.Fields[idx]
		if f.Datatype != Float32 {
			return sf, &UnsupportedTypeError{Field: name, Datatype: f.Datatype}
		}
		switch name {
		case fieldX:
			sf.x = f.Offset
		case fieldY:
			sf.y = f.Offset
		case fieldZ:
			sf.z = f.Offset
		}
	}
	if idx := c.FieldIndex(fieldDistance); idx >= 0 && c.Fields[idx].Datatype == Float32 {
		sf.distance = int(c.Fields[idx].Offset)
	}
	if vp, ok := c.viewpointOffset(); ok {
		sf.viewpoint = int(vp)
	}
	return sf, nil
}

// viewpointOffset resolves the vp_x/vp_y/vp_z group. The group is only
// usable when all three members are consecutive single floats fitting within
// the point stride; anything less is ignored so a partial declaration can
// never cause reads past the record.
func (c *Cloud) viewpointOffset() (uint32, bool) {
	idx := c.FieldIndex(fieldVPX)
	if idx < 0 || c.Fields[idx].Datatype != Float32 {
		return 0, false
	}
	vp := c.Fields[idx].Offset
	if vp+12 > c.PointStep {
		return 0, false
	}
	for i, name := range []string{fieldVPY, fieldVPZ} {
		j := c.FieldIndex(name)
		if j < 0 || c.Fields[j].Datatype != Float32 || c.Fields[j].Offset != vp+uint32(4*(i+1)) {
			return 0, false
		}
	}
	return vp, true
}
