// Package protocol dispatches a decrypted message's function code to the
// matching payload decoder.
package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// Function is the 16-bit application-level opcode.
type Function uint16

const (
	FunctionServerPostData       Function = 0x0500
	FunctionKeyExchange          Function = 0x0503
	FunctionEncryptedEnvelope    Function = 0x003d
	FunctionServerGetGmt         Function = 0x003f
	FunctionAck                  Function = 0x0080
	FunctionNack                 Function = 0x0081
	FunctionMisc                 Function = 0x0082
	FunctionParamsGetSingle      Function = 0x0200 // aliases UpgradeStart
	FunctionParamsSetSingle      Function = 0x0201
	FunctionUpgradeWrite         Function = 0x0203
	FunctionPolestarMasterGrant  Function = 0x0302
	FunctionPolestarGrantAck     Function = 0x0382
	FunctionPolestarGetStatus    Function = 0x039f
)

// Kind is the dispatch action C6's Classify step drives off of; several
// function codes share one Kind.
type Kind int

const (
	KindServerPostData Kind = iota
	KindKeyExchange
	KindEncryptedEnvelope
	KindServerGetGmt
	KindAck
	KindLoggedHex
	KindParam
	KindParamValue
	KindUpgradeWrite
	KindMasterGrant
	KindMasterGrantAck
	KindStatus
	KindUnknown
)

// Classify maps a function code to the dispatch Kind the session
// controller's state machine branches on.
func Classify(fn Function) Kind {
	switch fn {
	case FunctionServerPostData:
		return KindServerPostData
	case FunctionKeyExchange:
		return KindKeyExchange
	case FunctionEncryptedEnvelope:
		return KindEncryptedEnvelope
	case FunctionServerGetGmt:
		return KindServerGetGmt
	case FunctionAck:
		return KindAck
	case FunctionNack, FunctionMisc:
		return KindLoggedHex
	case FunctionParamsGetSingle:
		return KindParam
	case FunctionParamsSetSingle:
		return KindParamValue
	case FunctionUpgradeWrite:
		return KindUpgradeWrite
	case FunctionPolestarMasterGrant:
		return KindMasterGrant
	case FunctionPolestarGrantAck:
		return KindMasterGrantAck
	case FunctionPolestarGetStatus:
		return KindStatus
	default:
		return KindUnknown
	}
}

// Param is the decoded payload of ParamsGetSingle/UpgradeStart.
type Param struct {
	Param uint16
}

// ParseParam decodes a bare 2-byte parameter id, per se/data.py.parseParam.
func ParseParam(data []byte) (Param, error) {
	if len(data) < 2 {
		return Param{}, fmt.Errorf("protocol: param needs 2 bytes, have %d", len(data))
	}
	return Param{Param: binary.LittleEndian.Uint16(data[0:2])}, nil
}

// FormatParam is the inverse of ParseParam: it encodes the payload of a
// ParamsGetSingle/UpgradeStart request.
func FormatParam(param uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, param)
	return b
}

// ParamValue is the decoded payload of ParamsSetSingle: (u16 param, u32 value).
type ParamValue struct {
	Param uint16
	Value uint32
}

func ParseParamValue(data []byte) (ParamValue, error) {
	if len(data) < 6 {
		return ParamValue{}, fmt.Errorf("protocol: param-value needs 6 bytes, have %d", len(data))
	}
	return ParamValue{
		Param: binary.LittleEndian.Uint16(data[0:2]),
		Value: binary.LittleEndian.Uint32(data[2:6]),
	}, nil
}

// FormatParamValue is the inverse of ParseParamValue.
func FormatParamValue(param uint16, value uint32) []byte {
	b := make([]byte, 6)
	binary.LittleEndian.PutUint16(b[0:2], param)
	binary.LittleEndian.PutUint32(b[2:6], value)
	return b
}

// FormatLong encodes a bare uint32 parameter, the payload shape of
// requests whose reply is a plain 32-bit value (PROT_RESP_UPGRADE_SIZE and
// similar), per se/data.py.formatLong.
func FormatLong(param uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, param)
	return b
}

// OffsetLength is the decoded payload of an UpgradeWrite message.
type OffsetLength struct {
	Offset uint32
	Length uint32
	Data   []byte
}

// ParseOffsetLength decodes (u32 offset, u32 length) followed by length
// bytes of firmware payload, per se/data.py.parseOffsetLength.
func ParseOffsetLength(data []byte) (OffsetLength, error) {
	if len(data) < 8 {
		return OffsetLength{}, fmt.Errorf("protocol: offset/length needs 8 bytes, have %d", len(data))
	}
	offset := binary.LittleEndian.Uint32(data[0:4])
	length := binary.LittleEndian.Uint32(data[4:8])
	return OffsetLength{Offset: offset, Length: length, Data: data[8:]}, nil
}

// Version is the decoded payload of a firmware-version response.
type Version struct {
	Major, Minor uint16
}

func (v Version) String() string { return fmt.Sprintf("%04d.%04d", v.Major, v.Minor) }

// ParseVersion decodes two u16 version components, per
// se/data.py.parseVersion.
func ParseVersion(data []byte) (Version, error) {
	if len(data) < 4 {
		return Version{}, fmt.Errorf("protocol: version needs 4 bytes, have %d", len(data))
	}
	return Version{
		Major: binary.LittleEndian.Uint16(data[0:2]),
		Minor: binary.LittleEndian.Uint16(data[2:4]),
	}, nil
}

// TimeReply is the decoded payload of a ServerGetGmt reply: local epoch
// plus a signed tz offset in seconds.
type TimeReply struct {
	Epoch    uint32
	TZOffset int32
}

func ParseTime(data []byte) (TimeReply, error) {
	if len(data) < 8 {
		return TimeReply{}, fmt.Errorf("protocol: time needs 8 bytes, have %d", len(data))
	}
	return TimeReply{
		Epoch:    binary.LittleEndian.Uint32(data[0:4]),
		TZOffset: int32(binary.LittleEndian.Uint32(data[4:8])),
	}, nil
}

// FormatTime builds a ServerGetGmt reply payload, per
// se/data.py.formatTime.
func FormatTime(epoch uint32, tzOffsetSeconds int32) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], epoch)
	binary.LittleEndian.PutUint32(b[4:8], uint32(tzOffsetSeconds))
	return b
}

// LocalTimeReply builds the payload for a ServerGetGmt reply using now's
// local offset from UTC.
func LocalTimeReply(now time.Time) []byte {
	_, offset := now.Zone()
	return FormatTime(uint32(now.UTC().Unix()), int32(offset))
}

// HexDump renders an unparsed payload the way se/data.py's fallback
// branch does: a flat lowercase hex string for logging.
func HexDump(data []byte) string { return hex.EncodeToString(data) }
