package devrec

import (
	"testing"
	"time"
)

func fixedNow() time.Time { return time.Unix(1_700_000_000, 0) }

func TestParseHeaderTooShort(t *testing.T) {
	_, err := ParseHeader(make([]byte, 4))
	if err == nil {
		t.Fatal("expected error for short header")
	}
}

func TestParseHeaderFields(t *testing.T) {
	body := []byte{0x10, 0x00, 0x34, 0x12, 0x00, 0x80, 0x24, 0x00}
	h, err := ParseHeader(body)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.SeType != TypeInverter1Ph {
		t.Errorf("SeType = %#04x", h.SeType)
	}
	if h.SeID != 0x80001234 {
		t.Errorf("SeID = %#08x", h.SeID)
	}
	if h.DevLen != 0x24 {
		t.Errorf("DevLen = %d", h.DevLen)
	}
}

func TestFormatIDMasksLegacyBit(t *testing.T) {
	if got := FormatID(0x00800001); got != "1" {
		t.Errorf("FormatID(0x00800001) = %q, want 1", got)
	}
	if got := FormatID(0xABCD1234); got != "AB4D1234" {
		t.Errorf("FormatID(0xABCD1234) = %q, want AB4D1234", got)
	}
}

func TestParseDispatchesAllKnownTypes(t *testing.T) {
	cases := []struct {
		typ  Type
		body []byte
	}{
		{TypeLegacyOptimizer, make([]byte, 36)},
		{TypePackedOptimizer, make([]byte, 13)},
		{TypeInverter1Ph, make([]byte, len(inverter1PhTags)*4)},
		{TypeInverter3Ph, make([]byte, len(inverter3PhTags)*4)},
		{TypeEvent, make([]byte, 28)},
		{TypeBattery, make([]byte, 86)},
		{TypeMeter, make([]byte, 58)},
	}
	for _, c := range cases {
		rec, err := Parse(Header{SeType: c.typ, DevLen: uint16(len(c.body))}, c.body, fixedNow)
		if err != nil {
			t.Errorf("Parse(%#04x): %v", c.typ, err)
			continue
		}
		if rec.Namespace() == "" {
			t.Errorf("Parse(%#04x): empty Namespace", c.typ)
		}
	}
}

func TestParseUnknownType(t *testing.T) {
	_, err := Parse(Header{SeType: 0x9999}, nil, fixedNow)
	if err == nil {
		t.Fatal("expected error for unknown seType")
	}
}

func TestUndecipheredTailSurfacesExtraBytes(t *testing.T) {
	body := append(make([]byte, 36), 0xDE, 0xAD)
	rec, err := parseLegacyOptimizer(Header{}, body)
	if err != nil {
		t.Fatalf("parseLegacyOptimizer: %v", err)
	}
	found := false
	for _, f := range rec.Fields() {
		if f.Key == "Undeciphered_data" {
			found = true
			if f.Value != "dead" {
				t.Errorf("Undeciphered_data = %v, want dead", f.Value)
			}
		}
	}
	if !found {
		t.Error("expected an Undeciphered_data field for oversized body")
	}
}
