package main

import (
	"testing"

	"github.com/jbuehl/semonitor/internal/session"
)

func TestDeriveModePlainFileIsPassive(t *testing.T) {
	mode, _, _, err := deriveMode(settings{Source: "capture.bin"}, 0, 0)
	if err != nil {
		t.Fatalf("deriveMode: %v", err)
	}
	if mode != session.ModePassive {
		t.Errorf("mode = %v, want Passive", mode)
	}
}

func TestDeriveModeNetworkPortForcesServer(t *testing.T) {
	mode, _, _, err := deriveMode(settings{Ports: []int{22222}}, 0, 0)
	if err != nil {
		t.Fatalf("deriveMode: %v", err)
	}
	if mode != session.ModeServer {
		t.Errorf("mode = %v, want Server", mode)
	}
}

func TestDeriveModeMasterRequiresRS485AndSlaves(t *testing.T) {
	if _, _, _, err := deriveMode(settings{Master: true, SerialType: "2"}, 0, 1); err == nil {
		t.Error("expected error: master mode without RS485")
	}
	if _, _, _, err := deriveMode(settings{Master: true, SerialType: "4"}, 0, 0); err == nil {
		t.Error("expected error: master mode without slaves")
	}
	mode, rs485, master, err := deriveMode(settings{Master: true, SerialType: "4"}, 0, 2)
	if err != nil {
		t.Fatalf("deriveMode: %v", err)
	}
	if mode != session.ModeMaster || !rs485 || !master {
		t.Errorf("mode=%v rs485=%v master=%v, want Master/true/true", mode, rs485, master)
	}
}

func TestDeriveModeCommandingRequiresExactlyOneSlave(t *testing.T) {
	if _, _, _, err := deriveMode(settings{}, 1, 0); err == nil {
		t.Error("expected error: commanding mode without a slave")
	}
	if _, _, _, err := deriveMode(settings{}, 1, 2); err == nil {
		t.Error("expected error: commanding mode with more than one slave")
	}
	mode, _, master, err := deriveMode(settings{}, 1, 1)
	if err != nil {
		t.Fatalf("deriveMode: %v", err)
	}
	if mode != session.ModeCommanding {
		t.Errorf("mode = %v, want Commanding", mode)
	}
	if master {
		t.Errorf("master = true, want false when --master wasn't set")
	}
}

func TestDeriveModeCommandingWithMasterGrantsBusAccess(t *testing.T) {
	mode, rs485, master, err := deriveMode(settings{Master: true, SerialType: "4"}, 1, 1)
	if err != nil {
		t.Fatalf("deriveMode: %v", err)
	}
	if mode != session.ModeCommanding || !rs485 || !master {
		t.Errorf("mode=%v rs485=%v master=%v, want Commanding/true/true", mode, rs485, master)
	}
}

func TestParseSlavesAcceptsWithAndWithoutPrefix(t *testing.T) {
	got, err := parseSlaves([]string{"0xAAAA", "bbbb"})
	if err != nil {
		t.Fatalf("parseSlaves: %v", err)
	}
	want := []uint32{0xAAAA, 0xBBBB}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestParseSlavesRejectsMalformed(t *testing.T) {
	if _, err := parseSlaves([]string{"not-hex"}); err == nil {
		t.Error("expected error for malformed slave address")
	}
}
