package devrec

import "encoding/binary"

// LegacyOptimizer is the 0x0000 36-byte record, grounded on
// se/dataparams.py's optInFmt/optIdx ("<LLLLfffff").
type LegacyOptimizer struct {
	id                string
	InverterID        string // owning inverter, masked; body-local field
	Date, Time        string
	Uptime            uint32
	VModule, VOpt     float32
	IModule           float32
	EToday            float32
	Temp              float32
	UndecipheredData  string
}

func parseLegacyOptimizer(h Header, body []byte) (Record, error) {
	const bodyLen = 36
	if len(body) < bodyLen {
		return nil, shortBody("legacy optimizer", bodyLen, len(body))
	}
	ts := binary.LittleEndian.Uint32(body[0:4])
	inverterID := binary.LittleEndian.Uint32(body[4:8])
	// body[8:12] is unused
	uptime := binary.LittleEndian.Uint32(body[12:16])
	vMod := decodeFloat32(body[16:20])
	vOpt := decodeFloat32(body[20:24])
	iMod := decodeFloat32(body[24:28])
	eToday := decodeFloat32(body[28:32])
	temp := decodeFloat32(body[32:36])

	date, clock := dateTimeFields(ts)
	return &LegacyOptimizer{
		id:               FormatID(h.SeID),
		InverterID:       FormatID(inverterID),
		Date:             date,
		Time:             clock,
		Uptime:           uptime,
		VModule:          vMod,
		VOpt:             vOpt,
		IModule:          iMod,
		EToday:           eToday,
		Temp:             temp,
		UndecipheredData: undecipheredTail(body, bodyLen),
	}, nil
}

func (r *LegacyOptimizer) Namespace() string { return "optimizers" }
func (r *LegacyOptimizer) ID() string        { return r.id }
func (r *LegacyOptimizer) NestKey() string   { return "" }
func (r *LegacyOptimizer) Fields() []Field {
	f := []Field{
		{"Date", r.Date}, {"Time", r.Time}, {"ID", r.id},
		{"Inverter", r.InverterID}, {"Uptime", r.Uptime},
		{"Vmod", r.VModule}, {"Vopt", r.VOpt}, {"Imod", r.IModule},
		{"Eday", r.EToday}, {"Temp", r.Temp},
	}
	if r.UndecipheredData != "" {
		f = append(f, Field{"Undeciphered_data", r.UndecipheredData})
	}
	return f
}

// PackedOptimizer is the 0x0080 13-byte bit-packed record.
type PackedOptimizer struct {
	Date, Time       string
	Uptime           uint16
	VPanel, VOpt     float64
	IMod             float64
	EToday           float64
	Temp             float64
	UndecipheredData string
}

func parsePackedOptimizer(h Header, body []byte) (Record, error) {
	const bodyLen = 13
	if len(body) < bodyLen {
		return nil, shortBody("packed optimizer", bodyLen, len(body))
	}
	ts := binary.LittleEndian.Uint32(body[0:4])
	uptime := binary.LittleEndian.Uint16(body[4:6])

	b6, b7, b8, b9, b10, b11, b12 := body[6], body[7], body[8], body[9], body[10], body[11], body[12]

	vPanelRaw := uint32(b6) | (uint32(b7&0x03) << 8)
	vOptRaw := uint32(b7>>2) | (uint32(b8&0x0F) << 6)
	iModRaw := (uint32(b9) << 4) | uint32((b8>>4)&0x0F)
	eTodayRaw := (uint32(b11) << 8) | uint32(b10)
	temp := 2.0 * float64(int8(b12))

	date, clock := dateTimeFields(ts)
	return &PackedOptimizer{
		Date:             date,
		Time:             clock,
		Uptime:           uptime,
		VPanel:           0.125 * float64(vPanelRaw),
		VOpt:             0.125 * float64(vOptRaw),
		IMod:             0.00625 * float64(iModRaw),
		EToday:           0.25 * float64(eTodayRaw),
		Temp:             temp,
		UndecipheredData: undecipheredTail(body, bodyLen),
	}, nil
}

func (r *PackedOptimizer) Namespace() string { return "optimizers" }
func (r *PackedOptimizer) ID() string        { return "0" } // the packed body carries no device identifier
func (r *PackedOptimizer) NestKey() string   { return "" }
func (r *PackedOptimizer) Fields() []Field {
	f := []Field{
		{"Date", r.Date}, {"Time", r.Time}, {"ID", r.ID()},
		{"Inverter", "0"}, {"Uptime", r.Uptime},
		{"Vmod", r.VPanel}, {"Vopt", r.VOpt}, {"Imod", r.IMod},
		{"Eday", r.EToday}, {"Temp", r.Temp},
	}
	if r.UndecipheredData != "" {
		f = append(f, Field{"Undeciphered_data", r.UndecipheredData})
	}
	return f
}
