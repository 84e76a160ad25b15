// Package sink emits telemetry snapshots as line-delimited records: one
// flushed JSON object per message. Downstream consumers outside this
// module convert that into CSV, Graphite, MQTT, or time-series writes.
package sink

import (
	"bufio"
	"encoding/json"
	"io"
	"time"

	"github.com/jbuehl/semonitor/internal/devrec"
	"github.com/jbuehl/semonitor/internal/protocol"
)

// Sink writes telemetry snapshots to an underlying writer, flushing
// after every record so a tailing reader sees data promptly.
type Sink struct {
	w *bufio.Writer
}

// New wraps w as a Sink.
func New(w io.Writer) *Sink { return &Sink{w: bufio.NewWriter(w)} }

// record is the deterministic on-wire shape of one emitted snapshot:
// a timestamp plus the namespace/id/nestkey tree, each record rendered
// as an ordered list of key/value pairs (rather than a map) so repeated
// runs produce byte-identical output for the same input.
type record struct {
	Time string                    `json:"time"`
	Data map[string]deviceIDFields `json:"data"`
}

type deviceIDFields map[string]nestFields

type nestFields map[string][]fieldPair

type fieldPair struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Emit writes one newline-terminated JSON object for snap and flushes.
func (s *Sink) Emit(snap protocol.Snapshot, now time.Time) error {
	rec := record{
		Time: now.Format(time.RFC3339),
		Data: make(map[string]deviceIDFields, len(snap)),
	}
	for namespace, byID := range snap {
		ids := make(deviceIDFields, len(byID))
		for id, nested := range byID {
			nests := make(nestFields, len(nested))
			for nestKey, rec := range nested {
				nests[nestKey] = fieldsToPairs(rec.Fields())
			}
			ids[id] = nests
		}
		rec.Data[namespace] = ids
	}

	enc := json.NewEncoder(s.w)
	if err := enc.Encode(rec); err != nil {
		return err
	}
	return s.w.Flush()
}

func fieldsToPairs(fields []devrec.Field) []fieldPair {
	pairs := make([]fieldPair, len(fields))
	for i, f := range fields {
		pairs[i] = fieldPair{Key: f.Key, Value: f.Value}
	}
	return pairs
}
