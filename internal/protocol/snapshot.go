package protocol

import (
	"fmt"
	"time"

	"github.com/jbuehl/semonitor/internal/devrec"
)

// Snapshot is the telemetry-snapshot data model: a mapping
// from device-type name to device identifier to record, with an extra
// nesting level for types (meter, battery) whose NestKey distinguishes
// several concurrent records sharing one timestamp and device id.
type Snapshot map[string]map[string]map[string]devrec.Record

func newSnapshot() Snapshot { return make(Snapshot) }

func (s Snapshot) add(rec devrec.Record) {
	byID, ok := s[rec.Namespace()]
	if !ok {
		byID = make(map[string]map[string]devrec.Record)
		s[rec.Namespace()] = byID
	}
	nested, ok := byID[rec.ID()]
	if !ok {
		nested = make(map[string]devrec.Record)
		byID[rec.ID()] = nested
	}
	nested[rec.NestKey()] = rec
}

// ParseServerPostData iterates the device records packed into a
// ServerPostData (0x0500) payload and composes a Snapshot, per
// se/data.py.parseDeviceData. A record that fails to parse (unknown
// seType, truncated body) is skipped rather than aborting the whole
// message — later records in the same payload are independent of it.
func ParseServerPostData(data []byte, now func() time.Time) (Snapshot, []error) {
	snap := newSnapshot()
	var errs []error

	offset := 0
	for offset+devrec.HeaderSize <= len(data) {
		header, err := devrec.ParseHeader(data[offset:])
		if err != nil {
			errs = append(errs, err)
			break
		}
		bodyStart := offset + devrec.HeaderSize
		bodyEnd := bodyStart + int(header.DevLen)
		if bodyEnd > len(data) {
			errs = append(errs, fmt.Errorf("protocol: device record at offset %d declares devLen %d beyond payload", offset, header.DevLen))
			break
		}

		rec, err := devrec.Parse(header, data[bodyStart:bodyEnd], now)
		if err != nil {
			errs = append(errs, fmt.Errorf("protocol: device record at offset %d: %w", offset, err))
		} else {
			snap.add(rec)
		}

		offset = bodyEnd
	}
	return snap, errs
}
