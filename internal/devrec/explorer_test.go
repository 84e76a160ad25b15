package devrec

import "testing"

func TestExploreCoversEveryAlignedOffset(t *testing.T) {
	body := make([]byte, 20)
	for i := range body {
		body[i] = byte(i)
	}
	fields := Explore(body)
	if len(fields) == 0 {
		t.Fatal("expected at least one candidate field")
	}
	offsets := map[int]bool{}
	for _, f := range fields {
		offsets[f.Offset] = true
	}
	if len(offsets) != 10 {
		t.Errorf("covered %d distinct offsets, want 10 (20 bytes / 2)", len(offsets))
	}
}

func TestExploreShortBodyNoPanic(t *testing.T) {
	fields := Explore(make([]byte, 1))
	if len(fields) != 0 {
		t.Errorf("expected no candidates for a 1-byte body, got %d", len(fields))
	}
}
