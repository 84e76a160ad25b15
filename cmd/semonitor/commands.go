package main

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/jbuehl/semonitor/internal/session"
)

// parseCommands decodes the repeatable --command flag's values into a
// list of session.Command. Each value is one or more "/"-separated
// commands; each command is a hex function code optionally followed by
// comma-separated, type-tagged hex arguments: b/h/l select a 1/2/4-byte
// little-endian field, grounded on se/env.py's validated_commands
// grammar (`^[0-9a-fA-F]+(,[bhlBHL][0-9a-fA-F]+)*$`).
func parseCommands(values []string) ([]session.Command, error) {
	var out []session.Command
	for _, value := range values {
		for _, part := range strings.Split(value, "/") {
			cmd, err := parseOneCommand(part)
			if err != nil {
				return nil, fmt.Errorf("command %q: %w", part, err)
			}
			out = append(out, cmd)
		}
	}
	return out, nil
}

func parseOneCommand(s string) (session.Command, error) {
	fields := strings.Split(s, ",")
	fn, err := strconv.ParseUint(fields[0], 16, 16)
	if err != nil {
		return session.Command{}, fmt.Errorf("function code: %w", err)
	}

	var data []byte
	for _, arg := range fields[1:] {
		if len(arg) < 2 {
			return session.Command{}, fmt.Errorf("argument %q too short for a type tag", arg)
		}
		tag := arg[0]
		hexVal := arg[1:]
		n, err := strconv.ParseUint(hexVal, 16, 32)
		if err != nil {
			return session.Command{}, fmt.Errorf("argument %q: %w", arg, err)
		}
		switch tag {
		case 'b', 'B':
			data = append(data, byte(n))
		case 'h', 'H':
			b := make([]byte, 2)
			binary.LittleEndian.PutUint16(b, uint16(n))
			data = append(data, b...)
		case 'l', 'L':
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, uint32(n))
			data = append(data, b...)
		default:
			return session.Command{}, fmt.Errorf("argument %q: unknown type tag %q", arg, tag)
		}
	}
	return session.Command{Function: uint16(fn), Data: data}, nil
}
