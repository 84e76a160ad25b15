package devrec

import (
	"encoding/binary"
	"math"
	"testing"
)

func floatBits(v float32) uint32 { return math.Float32bits(v) }

func TestParseLegacyOptimizer(t *testing.T) {
	body := make([]byte, 36)
	binary.LittleEndian.PutUint32(body[0:4], 1_700_000_000)
	binary.LittleEndian.PutUint32(body[4:8], 0x00800042)
	binary.LittleEndian.PutUint32(body[12:16], 555) // Uptime
	binary.LittleEndian.PutUint32(body[16:20], floatBits(30.5))
	binary.LittleEndian.PutUint32(body[20:24], floatBits(29.8))
	binary.LittleEndian.PutUint32(body[24:28], floatBits(6.2))
	binary.LittleEndian.PutUint32(body[28:32], floatBits(1.1))
	binary.LittleEndian.PutUint32(body[32:36], floatBits(38.0))

	rec, err := parseLegacyOptimizer(Header{SeID: 0x00800001}, body)
	if err != nil {
		t.Fatalf("parseLegacyOptimizer: %v", err)
	}
	opt := rec.(*LegacyOptimizer)
	if opt.InverterID != "42" {
		t.Errorf("InverterID = %q, want 42 (legacy bit masked off)", opt.InverterID)
	}
	if opt.Uptime != 555 {
		t.Errorf("Uptime = %d", opt.Uptime)
	}
	if opt.Temp != 38.0 {
		t.Errorf("Temp = %v", opt.Temp)
	}
}

func TestParseLegacyOptimizerShortBody(t *testing.T) {
	_, err := parseLegacyOptimizer(Header{}, make([]byte, 10))
	if err == nil {
		t.Fatal("expected error for short body")
	}
}

// packedOptimizerExpected re-derives the bit-packed optimizer fields
// independently of parsePackedOptimizer's implementation, so the test
// isn't just restating the same arithmetic it's checking. It intentionally
// does not assert against the one published worked example, whose stated
// output only partially agrees with its own documented formula — see
// DESIGN.md.
func packedOptimizerExpected(b6, b7, b8, b9, b10, b11, b12 byte) (vPanel, vOpt, iMod, eToday, temp float64) {
	vPanelRaw := uint32(b6) + uint32(b7&0x03)*256
	vOptRaw := uint32(b7>>2) + uint32(b8&0x0F)*64
	iModRaw := uint32(b9)*16 + uint32((b8>>4)&0x0F)
	eTodayRaw := uint32(b11)*256 + uint32(b10)
	return 0.125 * float64(vPanelRaw), 0.125 * float64(vOptRaw), 0.00625 * float64(iModRaw), 0.25 * float64(eTodayRaw), 2.0 * float64(int8(b12))
}

func TestParsePackedOptimizerSelfConsistent(t *testing.T) {
	body := make([]byte, 13)
	binary.LittleEndian.PutUint32(body[0:4], 1_700_000_000)
	binary.LittleEndian.PutUint16(body[4:6], 777)
	body[6], body[7], body[8], body[9], body[10], body[11], body[12] = 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0x14

	rec, err := parsePackedOptimizer(Header{}, body)
	if err != nil {
		t.Fatalf("parsePackedOptimizer: %v", err)
	}
	opt := rec.(*PackedOptimizer)

	wantVPanel, wantVOpt, wantIMod, wantEToday, wantTemp := packedOptimizerExpected(
		body[6], body[7], body[8], body[9], body[10], body[11], body[12])

	if opt.VPanel != wantVPanel {
		t.Errorf("VPanel = %v, want %v", opt.VPanel, wantVPanel)
	}
	if opt.VOpt != wantVOpt {
		t.Errorf("VOpt = %v, want %v", opt.VOpt, wantVOpt)
	}
	if opt.IMod != wantIMod {
		t.Errorf("IMod = %v, want %v", opt.IMod, wantIMod)
	}
	if opt.EToday != wantEToday {
		t.Errorf("EToday = %v, want %v", opt.EToday, wantEToday)
	}
	if opt.Temp != wantTemp {
		t.Errorf("Temp = %v, want %v", opt.Temp, wantTemp)
	}
	if opt.Uptime != 777 {
		t.Errorf("Uptime = %d", opt.Uptime)
	}
}

func TestParsePackedOptimizerShortBody(t *testing.T) {
	_, err := parsePackedOptimizer(Header{}, make([]byte, 5))
	if err == nil {
		t.Fatal("expected error for short body")
	}
}
