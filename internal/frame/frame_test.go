package frame

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	data := []byte("hello world")
	raw := FormatFrame(42, 0x11223344, 0x55667788, 0x0500, data)

	msg, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if msg.Seq != 42 || msg.FromAddr != 0x11223344 || msg.ToAddr != 0x55667788 || msg.Function != 0x0500 {
		t.Errorf("header mismatch: %+v", msg)
	}
	if !bytes.Equal(msg.Data, data) {
		t.Errorf("data mismatch: got %q want %q", msg.Data, data)
	}
}

func TestFrameRoundTripEmptyPayload(t *testing.T) {
	raw := FormatFrame(1, 0, 0xFFFFFFFD, 0x0080, nil)
	msg, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if len(msg.Data) != 0 {
		t.Errorf("expected empty data, got %d bytes", len(msg.Data))
	}
}

func TestParseFrameTooShort(t *testing.T) {
	_, err := ParseFrame([]byte{0x01, 0x02, 0x03})
	if err == nil {
		t.Fatal("expected error for too-short payload")
	}
}

func TestParseFrameLengthMismatch(t *testing.T) {
	raw := FormatFrame(1, 0, 0, 0x0080, []byte("x"))
	// Corrupt dataLenInv so it no longer complements dataLen.
	raw[2] = 0x00
	raw[3] = 0x00
	_, err := ParseFrame(raw)
	if err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestParseFrameLengthOverrun(t *testing.T) {
	raw := FormatFrame(1, 0, 0, 0x0080, []byte("hello"))
	truncated := raw[:HeaderSize+2] // claims 5 bytes of payload but only 2 are present
	_, err := ParseFrame(truncated)
	if err == nil {
		t.Fatal("expected length overrun error")
	}
}

func TestParseFrameChecksumError(t *testing.T) {
	raw := FormatFrame(1, 0, 0, 0x0080, []byte("hello"))
	raw[len(raw)-1] ^= 0xFF
	_, err := ParseFrame(raw)
	if err == nil {
		t.Fatal("expected checksum error")
	}
}

func TestParseFrameExtraTrailingBytes(t *testing.T) {
	raw := FormatFrame(1, 0, 0, 0x0080, []byte("hello"))
	raw = append(raw, 0xDE, 0xAD)
	msg, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if !bytes.Equal(msg.Extra, []byte{0xDE, 0xAD}) {
		t.Errorf("expected extra bytes to be surfaced, got %x", msg.Extra)
	}
}

func TestReaderActiveMode(t *testing.T) {
	raw := FormatFrame(7, 1, 2, 0x0500, []byte("payload"))
	stream := WithMagic(raw)

	r := NewReader(bytes.NewReader(stream), false)
	payload, eof, err := r.ReadFrame()
	if err != nil || eof {
		t.Fatalf("ReadFrame: eof=%v err=%v", eof, err)
	}
	msg, err := ParseFrame(payload)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if msg.Function != 0x0500 || !bytes.Equal(msg.Data, []byte("payload")) {
		t.Errorf("unexpected message: %+v", msg)
	}

	_, eof, err = r.ReadFrame()
	if err != nil {
		t.Fatalf("second ReadFrame: %v", err)
	}
	if !eof {
		t.Error("expected eof on second read of exhausted stream")
	}
}

func TestReaderPassiveModeSyncAfterNoise(t *testing.T) {
	raw := FormatFrame(7, 1, 2, 0x0500, []byte("abc"))
	frameBytes := WithMagic(raw)

	noise := bytes.Repeat([]byte{0xAA}, 37)
	stream := append(append(append([]byte{}, noise...), frameBytes...), 0xBB)

	r := NewReader(bytes.NewReader(stream), true)
	payload, eof, err := r.ReadFrame()
	if err != nil || eof {
		t.Fatalf("ReadFrame: eof=%v err=%v", eof, err)
	}
	msg, err := ParseFrame(payload)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if msg.Function != 0x0500 || !bytes.Equal(msg.Data, []byte("abc")) {
		t.Errorf("unexpected message after noise: %+v", msg)
	}

	_, eof, err = r.ReadFrame()
	if err != nil {
		t.Fatalf("second ReadFrame: %v", err)
	}
	if !eof {
		t.Error("expected eof once the trailing 0xBB byte is exhausted without another magic")
	}
}
