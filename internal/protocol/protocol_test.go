package protocol

import (
	"testing"
	"time"
)

func TestClassifyKnownCodes(t *testing.T) {
	cases := []struct {
		fn   Function
		kind Kind
	}{
		{FunctionServerPostData, KindServerPostData},
		{FunctionKeyExchange, KindKeyExchange},
		{FunctionEncryptedEnvelope, KindEncryptedEnvelope},
		{FunctionServerGetGmt, KindServerGetGmt},
		{FunctionAck, KindAck},
		{FunctionNack, KindLoggedHex},
		{FunctionMisc, KindLoggedHex},
		{FunctionParamsGetSingle, KindParam},
		{FunctionParamsSetSingle, KindParamValue},
		{FunctionUpgradeWrite, KindUpgradeWrite},
		{FunctionPolestarMasterGrant, KindMasterGrant},
		{FunctionPolestarGrantAck, KindMasterGrantAck},
		{FunctionPolestarGetStatus, KindStatus},
		{0x9999, KindUnknown},
	}
	for _, c := range cases {
		if got := Classify(c.fn); got != c.kind {
			t.Errorf("Classify(%#04x) = %v, want %v", c.fn, got, c.kind)
		}
	}
}

func TestParamRoundTrip(t *testing.T) {
	want := uint16(0x1234)
	p, err := ParseParam(FormatParam(want))
	if err != nil {
		t.Fatalf("ParseParam: %v", err)
	}
	if p.Param != want {
		t.Errorf("Param = %#04x, want %#04x", p.Param, want)
	}
}

func TestParamValueRoundTrip(t *testing.T) {
	pv, err := ParseParamValue(FormatParamValue(7, 0xdeadbeef))
	if err != nil {
		t.Fatalf("ParseParamValue: %v", err)
	}
	if pv.Param != 7 || pv.Value != 0xdeadbeef {
		t.Errorf("ParamValue = %+v", pv)
	}
}

func TestParseOffsetLength(t *testing.T) {
	data := []byte{0x00, 0x10, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0xAA, 0xBB, 0xCC, 0xDD}
	ol, err := ParseOffsetLength(data)
	if err != nil {
		t.Fatalf("ParseOffsetLength: %v", err)
	}
	if ol.Offset != 0x1000 || ol.Length != 4 {
		t.Errorf("Offset/Length = %#x/%d", ol.Offset, ol.Length)
	}
	if len(ol.Data) != 4 {
		t.Errorf("Data len = %d, want 4", len(ol.Data))
	}
}

func TestParseOffsetLengthShort(t *testing.T) {
	_, err := ParseOffsetLength(make([]byte, 4))
	if err == nil {
		t.Fatal("expected error for short payload")
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion([]byte{0x05, 0x00, 0x02, 0x00})
	if err != nil {
		t.Fatalf("ParseVersion: %v", err)
	}
	if v.String() != "0005.0002" {
		t.Errorf("String() = %q", v.String())
	}
}

func TestTimeRoundTrip(t *testing.T) {
	tr, err := ParseTime(FormatTime(1_700_000_000, -18000))
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if tr.Epoch != 1_700_000_000 || tr.TZOffset != -18000 {
		t.Errorf("TimeReply = %+v", tr)
	}
}

func TestLocalTimeReplyRoundTrips(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := LocalTimeReply(now)
	tr, err := ParseTime(payload)
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if tr.Epoch != uint32(now.Unix()) {
		t.Errorf("Epoch = %d, want %d", tr.Epoch, now.Unix())
	}
}

func TestHexDump(t *testing.T) {
	if got := HexDump([]byte{0xDE, 0xAD}); got != "dead" {
		t.Errorf("HexDump = %q", got)
	}
}
