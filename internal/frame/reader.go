package frame

import (
	"bytes"
	"errors"
	"io"
)

// Reader performs magic-synchronized frame extraction from a byte
// stream, in either active (length-prefixed) or passive/RS485
// (byte-at-a-time resync) mode.
type Reader struct {
	src     io.Reader
	passive bool

	// passive-mode state
	synced bool
	window []byte
	buf    []byte
}

// NewReader wraps src. passiveOrRS485 selects the byte-at-a-time resync
// mode used for passive monitoring and RS485 bus sniffing; false selects
// the active, length-prefixed mode used when this side initiated the
// exchange.
func NewReader(src io.Reader, passiveOrRS485 bool) *Reader {
	return &Reader{src: src, passive: passiveOrRS485}
}

// ReadFrame returns the bytes following the magic for one frame
// (suitable for ParseFrame), or eof=true if the underlying source is
// exhausted. Soft I/O errors are reported as eof.
func (r *Reader) ReadFrame() (payload []byte, eof bool, err error) {
	if r.passive {
		return r.readFramePassive()
	}
	return r.readFrameActive()
}

func (r *Reader) readFrameActive() ([]byte, bool, error) {
	head := make([]byte, len(Magic)+HeaderSize)
	if _, err := io.ReadFull(r.src, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, true, nil
		}
		return nil, true, err
	}
	if !bytes.Equal(head[:len(Magic)], Magic[:]) {
		return nil, false, errors.New("frame: active read out of sync with magic")
	}
	header := head[len(Magic):]
	dataLen := int(header[0]) | int(header[1])<<8

	rest := make([]byte, dataLen+TrailerSize)
	if _, err := io.ReadFull(r.src, rest); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, true, nil
		}
		return nil, true, err
	}

	payload := make([]byte, 0, HeaderSize+len(rest))
	payload = append(payload, header...)
	payload = append(payload, rest...)
	return payload, false, nil
}

func (r *Reader) readFramePassive() ([]byte, bool, error) {
	one := make([]byte, 1)
	for {
		n, err := r.src.Read(one)
		if n == 0 || err != nil {
			if err == nil {
				continue
			}
			if errors.Is(err, io.EOF) {
				// End of stream completes the frame begun at the last magic.
				if r.synced && len(r.buf)+len(r.window) > 0 {
					payload := append(r.buf, r.window...)
					r.buf = nil
					r.window = nil
					return payload, false, nil
				}
				return nil, true, nil
			}
			return nil, true, err
		}
		b := one[0]

		r.window = append(r.window, b)
		if len(r.window) > len(Magic) {
			r.buf = append(r.buf, r.window[0])
			r.window = r.window[1:]
		}

		if len(r.window) == len(Magic) && bytes.Equal(r.window, Magic[:]) {
			if !r.synced {
				r.synced = true
				r.buf = nil
				r.window = nil
				continue
			}
			payload := r.buf
			r.buf = nil
			r.window = nil
			return payload, false, nil
		}
	}
}
