// Package devrec decodes the per-device-type binary records nested
// inside a ServerPostData (0x0500) message.
package devrec

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"
)

// Type is the 16-bit seType device-record discriminator.
type Type uint16

const (
	TypeLegacyOptimizer Type = 0x0000
	TypePackedOptimizer Type = 0x0080
	TypeInverter1Ph      Type = 0x0010
	TypeInverter3Ph      Type = 0x0011
	TypeEvent            Type = 0x0300
	TypeBattery          Type = 0x0030
	TypeMeter            Type = 0x0022
)

// HeaderSize is the fixed 8-byte device header: seType(u16) seId(u32)
// devLen(u16), grounded on seDataDevices.py's ParseDevice.parseDevTable
// (devHdrLen = 8).
const HeaderSize = 8

// Header is the per-record device header preceding every record body.
type Header struct {
	SeType Type
	SeID   uint32
	DevLen uint16
}

// ParseHeader decodes the 8-byte device header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("devrec: header needs %d bytes, have %d", HeaderSize, len(b))
	}
	return Header{
		SeType: Type(binary.LittleEndian.Uint16(b[0:2])),
		SeID:   binary.LittleEndian.Uint32(b[2:6]),
		DevLen: binary.LittleEndian.Uint16(b[6:8]),
	}, nil
}

// idMask clears bit 0x00800000, a legacy quirk in how device
// identifiers are rendered.
const idMask = ^uint32(0x00800000)

// FormatID renders a raw device identifier the way every record type
// does: uppercase hex with bit 0x00800000 masked off.
func FormatID(raw uint32) string {
	return fmt.Sprintf("%X", raw&idMask)
}

// nanSentinel is the little-endian byte pattern that means "not
// reported" in a float32 field.
var nanSentinel = [4]byte{0xff, 0xff, 0x7f, 0xff}

func decodeFloat32(b []byte) float32 {
	if len(b) >= 4 && b[0] == nanSentinel[0] && b[1] == nanSentinel[1] && b[2] == nanSentinel[2] && b[3] == nanSentinel[3] {
		return float32(math.NaN())
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

// Field is one named, ordered output value. Records expose their data
// as a slice of Field rather than a map so that C9's sink can emit keys
// in a deterministic order.
type Field struct {
	Key   string
	Value any
}

// Record is a decoded device record ready for snapshot assembly.
type Record interface {
	// Namespace is the top-level telemetry-snapshot key for this record
	// type, e.g. "inverters", "optimizers", "batteries_0x0030".
	Namespace() string
	// ID is the hex device identifier, FormatID(header.SeID).
	ID() string
	// NestKey is a secondary discriminator for device types (meters,
	// batteries) where multiple concurrent records share a timestamp
	// and device id; empty for types that don't need it.
	NestKey() string
	// Fields returns the ordered, named values for this record.
	Fields() []Field
}

var ErrUnknownType = errors.New("devrec: unknown seType")

// Parse dispatches body (exactly header.DevLen bytes) to the decoder
// for header.SeType. now is not consulted: Date/Time are rendered in
// local time from each record's own timestamp.
func Parse(header Header, body []byte, now func() time.Time) (Record, error) {
	switch header.SeType {
	case TypeLegacyOptimizer:
		return parseLegacyOptimizer(header, body)
	case TypePackedOptimizer:
		return parsePackedOptimizer(header, body)
	case TypeInverter1Ph:
		return parseInverter1Ph(header, body)
	case TypeInverter3Ph:
		return parseInverter3Ph(header, body)
	case TypeEvent:
		return parseEvent(header, body)
	case TypeBattery:
		return parseBattery(header, body)
	case TypeMeter:
		return parseMeter(header, body)
	default:
		return nil, fmt.Errorf("%w: %#04x", ErrUnknownType, uint16(header.SeType))
	}
}

// undecipheredTail returns the bytes of body beyond consumed, hex
// encoded, or "" if body was fully consumed, surfacing the remainder
// rather than silently dropping or erroring on oversized records.
func undecipheredTail(body []byte, consumed int) string {
	if consumed >= len(body) {
		return ""
	}
	return hex.EncodeToString(body[consumed:])
}

func dateTimeFields(epoch uint32) (date, clock string) {
	t := time.Unix(int64(epoch), 0).Local()
	return t.Format("2006-01-02"), t.Format("15:04:05")
}

func shortBody(kind string, want, have int) error {
	return fmt.Errorf("devrec: %s body needs %d bytes, have %d", kind, want, have)
}
