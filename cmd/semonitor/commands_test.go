package main

import (
	"testing"

	"github.com/jbuehl/semonitor/internal/session"
)

func TestParseOneCommandNoArgs(t *testing.T) {
	cmd, err := parseOneCommand("200")
	if err != nil {
		t.Fatalf("parseOneCommand: %v", err)
	}
	if cmd.Function != 0x0200 || len(cmd.Data) != 0 {
		t.Errorf("got %+v", cmd)
	}
}

func TestParseOneCommandWithTypedArgs(t *testing.T) {
	cmd, err := parseOneCommand("201,h0064,l000000ff")
	if err != nil {
		t.Fatalf("parseOneCommand: %v", err)
	}
	if cmd.Function != 0x0201 {
		t.Fatalf("function = %#x", cmd.Function)
	}
	want := []byte{0x64, 0x00, 0xff, 0x00, 0x00, 0x00}
	if string(cmd.Data) != string(want) {
		t.Errorf("data = % x, want % x", cmd.Data, want)
	}
}

func TestParseOneCommandRejectsUnknownTag(t *testing.T) {
	if _, err := parseOneCommand("200,z01"); err == nil {
		t.Error("expected error for unknown type tag")
	}
}

func TestParseCommandsSplitsSlashSeparatedList(t *testing.T) {
	cmds, err := parseCommands([]string{"200/201,b01"})
	if err != nil {
		t.Fatalf("parseCommands: %v", err)
	}
	want := []session.Command{
		{Function: 0x0200},
		{Function: 0x0201, Data: []byte{0x01}},
	}
	if len(cmds) != len(want) {
		t.Fatalf("got %d commands, want %d", len(cmds), len(want))
	}
	for i := range want {
		if cmds[i].Function != want[i].Function || string(cmds[i].Data) != string(want[i].Data) {
			t.Errorf("command %d = %+v, want %+v", i, cmds[i], want[i])
		}
	}
}
