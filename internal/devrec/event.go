package devrec

import "encoding/binary"

// Event is the 0x0300 28-byte event record, decoded per
// se/dataparams.py's eventInFmt "<LLLlLLL": ts(u32) Type(u32)
// Event1(u32) Event2(i32) Event3(u32), followed by two unused u32
// words. Event1 is always an epoch and is rendered as a date/time pair;
// Event2 or Event3 is a second epoch rendered the same way, selected by
// Type==0, per se/data.py's formatDateTime calls on these fields.
type Event struct {
	id                     string
	Date, Time             string
	Type                   uint32
	Event1Date, Event1Time string
	Event2                 int32
	Event2Date, Event2Time string // set when Type==0
	Event3                 uint32
	Event3Date, Event3Time string // set when Type!=0
}

func parseEvent(h Header, body []byte) (Record, error) {
	const bodyLen = 28
	if len(body) < bodyLen {
		return nil, shortBody("event", bodyLen, len(body))
	}
	ts := binary.LittleEndian.Uint32(body[0:4])
	typ := binary.LittleEndian.Uint32(body[4:8])
	event1 := binary.LittleEndian.Uint32(body[8:12])
	event2 := int32(binary.LittleEndian.Uint32(body[12:16]))
	event3 := binary.LittleEndian.Uint32(body[16:20])
	// body[20:28] unused

	date, clock := dateTimeFields(ts)
	event1Date, event1Time := dateTimeFields(event1)
	e := &Event{
		id:         FormatID(h.SeID),
		Date:       date,
		Time:       clock,
		Type:       typ,
		Event1Date: event1Date,
		Event1Time: event1Time,
		Event2:     event2,
		Event3:     event3,
	}
	if typ == 0 {
		e.Event2Date, e.Event2Time = dateTimeFields(uint32(event2))
	} else {
		e.Event3Date, e.Event3Time = dateTimeFields(event3)
	}
	return e, nil
}

func (r *Event) Namespace() string { return "events" }
func (r *Event) ID() string        { return r.id }
func (r *Event) NestKey() string   { return "" }
func (r *Event) Fields() []Field {
	fields := []Field{
		{"Date", r.Date}, {"Time", r.Time}, {"ID", r.id}, {"Type", r.Type},
		{"Event1Date", r.Event1Date}, {"Event1Time", r.Event1Time},
	}
	if r.Type == 0 {
		fields = append(fields, Field{"Event2Date", r.Event2Date}, Field{"Event2Time", r.Event2Time})
	} else {
		fields = append(fields, Field{"Event3Date", r.Event3Date}, Field{"Event3Time", r.Event3Time})
	}
	return fields
}
