// Package frame implements the SolarEdge wire framing: magic
// synchronization, header encode/decode, and CRC trailer handling.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jbuehl/semonitor/internal/crc"
)

// Magic is the 4-byte sequence that opens every frame.
var Magic = [4]byte{0x12, 0x34, 0x56, 0x79}

// HeaderSize is the length of the fixed header that follows the magic.
const HeaderSize = 16

// TrailerSize is the length of the CRC trailer.
const TrailerSize = 2

// MasterAddr is the reserved pseudo-address used by the master side of
// the protocol (and as the source address of an encryption wrapper frame).
// Grounded on the literal CRC ground-truth test vector in the protocol
// scenarios (to=0xFFFFFFFD) and on the wrapper-address swap in the
// original encryption code path.
const MasterAddr uint32 = 0xFFFFFFFD

// BroadcastAddr is the all-ones address used as the destination of an
// encryption-wrapper frame.
const BroadcastAddr uint32 = 0xFFFFFFFF

// EncryptedEnvelopeFunction is the fixed function code used to carry an
// encrypted inner frame.
const EncryptedEnvelopeFunction uint16 = 0x003d

var (
	ErrTooShort        = errors.New("frame: too short")
	ErrLengthMismatch  = errors.New("frame: dataLen/dataLenInv mismatch")
	ErrLengthOverrun   = errors.New("frame: declared length overruns buffer")
	ErrChecksum        = errors.New("frame: checksum mismatch")
)

// Header is the 16-byte fixed frame header, exclusive of magic and CRC.
type Header struct {
	DataLen    uint16
	DataLenInv uint16
	Seq        uint16
	FromAddr   uint32
	ToAddr     uint32
	Function   uint16
}

// Message is a parsed frame: header fields plus payload.
type Message struct {
	Seq      uint16
	FromAddr uint32
	ToAddr   uint32
	Function uint16
	Data     []byte
	// Extra holds bytes found after the declared payload+CRC, if any.
	Extra []byte
}

// ParseFrame decodes payload (the bytes immediately following the magic)
// into a Message, validating header consistency, length bounds, and CRC.
func ParseFrame(payload []byte) (*Message, error) {
	if len(payload) < HeaderSize+TrailerSize {
		return nil, fmt.Errorf("%w: have %d bytes, need at least %d", ErrTooShort, len(payload), HeaderSize+TrailerSize)
	}

	var h Header
	h.DataLen = binary.LittleEndian.Uint16(payload[0:2])
	h.DataLenInv = binary.LittleEndian.Uint16(payload[2:4])
	h.Seq = binary.LittleEndian.Uint16(payload[4:6])
	h.FromAddr = binary.LittleEndian.Uint32(payload[6:10])
	h.ToAddr = binary.LittleEndian.Uint32(payload[10:14])
	h.Function = binary.LittleEndian.Uint16(payload[14:16])

	if h.DataLen+h.DataLenInv != 0xFFFF {
		return nil, fmt.Errorf("%w: dataLen=%04x dataLenInv=%04x", ErrLengthMismatch, h.DataLen, h.DataLenInv)
	}

	total := HeaderSize + int(h.DataLen) + TrailerSize
	if total > len(payload) {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrLengthOverrun, total, len(payload))
	}

	data := payload[HeaderSize : HeaderSize+int(h.DataLen)]
	trailer := payload[HeaderSize+int(h.DataLen) : total]
	extra := payload[total:] // trailing bytes beyond the CRC; logged by the caller at data level

	crcInput := make([]byte, 0, 12+len(data))
	crcInput = binary.BigEndian.AppendUint16(crcInput, h.Seq)
	crcInput = binary.BigEndian.AppendUint32(crcInput, h.FromAddr)
	crcInput = binary.BigEndian.AppendUint32(crcInput, h.ToAddr)
	crcInput = binary.BigEndian.AppendUint16(crcInput, h.Function)
	crcInput = append(crcInput, data...)

	want := binary.LittleEndian.Uint16(trailer)
	got := crc.Checksum(crcInput)
	if got != want {
		return nil, fmt.Errorf("%w: expected %04x, got %04x", ErrChecksum, want, got)
	}

	return &Message{
		Seq:      h.Seq,
		FromAddr: h.FromAddr,
		ToAddr:   h.ToAddr,
		Function: h.Function,
		Data:     data,
		Extra:    extra,
	}, nil
}

// FormatFrame builds the header+payload+CRC bytes (excluding magic) for
// an outbound message. It does not perform encryption; see Encryptor for
// the wrapping step below.
func FormatFrame(seq uint16, from, to uint32, function uint16, data []byte) []byte {
	dataLen := uint16(len(data))
	out := make([]byte, 0, HeaderSize+len(data)+TrailerSize)
	out = binary.LittleEndian.AppendUint16(out, dataLen)
	out = binary.LittleEndian.AppendUint16(out, ^dataLen)
	out = binary.LittleEndian.AppendUint16(out, seq)
	out = binary.LittleEndian.AppendUint32(out, from)
	out = binary.LittleEndian.AppendUint32(out, to)
	out = binary.LittleEndian.AppendUint16(out, function)
	out = append(out, data...)

	crcInput := make([]byte, 0, 12+len(data))
	crcInput = binary.BigEndian.AppendUint16(crcInput, seq)
	crcInput = binary.BigEndian.AppendUint32(crcInput, from)
	crcInput = binary.BigEndian.AppendUint32(crcInput, to)
	crcInput = binary.BigEndian.AppendUint16(crcInput, function)
	crcInput = append(crcInput, data...)
	checksum := crc.Checksum(crcInput)

	out = binary.LittleEndian.AppendUint16(out, checksum)
	return out
}

// Encryptor is implemented by the session crypto context (internal/
// cryptosess.Cipher), kept as a narrow interface here so this package
// does not import the crypto package directly.
type Encryptor interface {
	Encrypt(plaintext []byte) []byte
}

// FormatEncryptedFrame wraps a plaintext frame (the output of
// FormatFrame, with magic prepended by the caller before encryption) in
// an EncryptedEnvelope frame.
func FormatEncryptedFrame(enc Encryptor, seq uint16, innerFrameWithMagic []byte) []byte {
	ciphertext := enc.Encrypt(innerFrameWithMagic)
	return FormatFrame(seq, MasterAddr, BroadcastAddr, EncryptedEnvelopeFunction, ciphertext)
}

// WithMagic prepends the magic bytes to a frame produced by FormatFrame.
func WithMagic(b []byte) []byte {
	out := make([]byte, 0, len(Magic)+len(b))
	out = append(out, Magic[:]...)
	out = append(out, b...)
	return out
}
