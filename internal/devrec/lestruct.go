package devrec

import "encoding/binary"

// rawField is one decoded 4-byte little-endian struct field: either an
// unsigned 32-bit integer ('L') or an IEEE-754 float32 ('f'), matching
// the struct format strings in se/dataparams.py (invInFmt, inv3PhInFmt).
type rawField struct {
	isFloat bool
	u       uint32
	f       float32
}

func (r rawField) AsUint32() uint32 { return r.u }
func (r rawField) AsFloat32() float32 {
	if r.isFloat {
		return r.f
	}
	return float32(r.u)
}

// decodeLEFields decodes body according to tags, a string of 'L' and
// 'f' characters each consuming 4 bytes, little-endian.
func decodeLEFields(tags string, body []byte) []rawField {
	out := make([]rawField, len(tags))
	for i, tag := range tags {
		off := i * 4
		switch tag {
		case 'L':
			out[i] = rawField{isFloat: false, u: binary.LittleEndian.Uint32(body[off : off+4])}
		case 'f':
			out[i] = rawField{isFloat: true, f: decodeFloat32(body[off : off+4])}
		}
	}
	return out
}
