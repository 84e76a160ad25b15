package devrec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// ExploredField is one candidate interpretation of the bytes at a given
// offset, produced by Explore.
type ExploredField struct {
	Offset int
	Label  string
	Value  string
}

// Explore is the offline schema-discovery decoder, grounded on
// seDataDevices.py's ParseDevice_Explorer. It is never part of Parse's
// production dispatch table; it exists for inspecting a record of
// unknown or not-yet-implemented seType by trying every plausible
// interpretation of each 2-byte-aligned window, most of which will be
// nonsense for any given offset.
func Explore(body []byte) []ExploredField {
	var out []ExploredField
	for off := 0; off+2 <= len(body); off += 2 {
		out = append(out, ExploredField{Offset: off, Label: "hex2", Value: hex.EncodeToString(body[off : off+2])})
		out = append(out, ExploredField{Offset: off, Label: "u16le", Value: fmt.Sprintf("%d", binary.LittleEndian.Uint16(body[off:off+2]))})

		if off+4 <= len(body) {
			b4 := body[off : off+4]
			out = append(out, ExploredField{Offset: off, Label: "hex4", Value: hex.EncodeToString(b4)})
			u32 := binary.LittleEndian.Uint32(b4)
			out = append(out, ExploredField{Offset: off, Label: "u32le", Value: fmt.Sprintf("%d", u32)})
			out = append(out, ExploredField{Offset: off, Label: "f32le", Value: fmt.Sprintf("%v", decodeFloat32(b4))})
			out = append(out, ExploredField{Offset: off, Label: "f32be", Value: fmt.Sprintf("%v", math.Float32frombits(binary.BigEndian.Uint32(b4)))})
			if t := tryEpoch(u32); t != "" {
				out = append(out, ExploredField{Offset: off, Label: "epoch", Value: t})
			}
		}
	}
	return out
}

func tryEpoch(v uint32) string {
	t := time.Unix(int64(v), 0).UTC()
	if t.Year() < 2000 || t.Year() > 2100 {
		return ""
	}
	return t.Format(time.RFC3339)
}
