package devrec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Meter is the 0x0022 58-byte record; ParseDevice_0x0022's field table
// (cross-checked the same way as Battery) puts the body at 58 bytes,
// longer than early documentation suggests. See DESIGN.md.
type Meter struct {
	id                string
	Date, Time        string
	RecType           uint8
	OnlyIntervalData  bool
	TotalE2Grid       uint32
	FlagE2Grid        uint16
	TotalEFromGrid    uint32
	FlagEFromGrid     uint16
	Total22           uint32
	Flag22            uint16
	Total30           uint32
	Flag30            uint16
	Interval          uint32
	E2X               uint32
	EFromX            uint32
	P2X               float32
	PFromX            float32
}

// meterNestKeys mirrors ParseDevice_0x0022.wrap_in_ids' recTypeLabels.
var meterNestKeys = map[uint8]string{
	3: "3_Consumption",
	5: "5_GridImportExport",
	7: "7_Battery",
	8: "8_MostlyZeroes",
	9: "9_PVProduction",
}

func parseMeter(h Header, body []byte) (Record, error) {
	const bodyLen = 58
	if len(body) < bodyLen {
		return nil, shortBody("meter", bodyLen, len(body))
	}
	ts := binary.LittleEndian.Uint32(body[0:4])
	recType := body[4]
	onlyIntervalData := body[5] != 0
	totalE2Grid := binary.LittleEndian.Uint32(body[6:10])
	// body[10:12] AlwaysZero_off10_int2, unused
	flagE2Grid := binary.LittleEndian.Uint16(body[12:14])
	totalEFromGrid := binary.LittleEndian.Uint32(body[14:18])
	// body[18:20] AlwaysZero_off18_int2, unused
	flagEFromGrid := binary.LittleEndian.Uint16(body[20:22])
	total22 := binary.LittleEndian.Uint32(body[22:26])
	// body[26:28] AlwaysZero_off26_int2, unused
	flag22 := binary.LittleEndian.Uint16(body[28:30])
	total30 := binary.LittleEndian.Uint32(body[30:34])
	// body[34:36] AlwaysZero_off34_int2, unused
	flag30 := binary.LittleEndian.Uint16(body[36:38])
	interval := binary.LittleEndian.Uint32(body[38:42])
	e2x := binary.LittleEndian.Uint32(body[42:46])
	efromx := binary.LittleEndian.Uint32(body[46:50])
	p2x := decodeFloat32(body[50:54])
	pfromx := decodeFloat32(body[54:58])

	// codeDerivations: a secondary, narrower NaN sentinel specific to P2X,
	// the byte-swapped (big-endian-shaped) NaN pattern read as little-endian.
	if p2x < -3e38 {
		p2x = float32(math.NaN())
	}

	date, clock := dateTimeFields(ts)
	return &Meter{
		id:               FormatID(h.SeID),
		Date:             date,
		Time:             clock,
		RecType:          recType,
		OnlyIntervalData: onlyIntervalData,
		TotalE2Grid:      totalE2Grid,
		FlagE2Grid:       flagE2Grid,
		TotalEFromGrid:   totalEFromGrid,
		FlagEFromGrid:    flagEFromGrid,
		Total22:          total22,
		Flag22:           flag22,
		Total30:          total30,
		Flag30:           flag30,
		Interval:         interval,
		E2X:              e2x,
		EFromX:           efromx,
		P2X:              p2x,
		PFromX:           pfromx,
	}, nil
}

func (r *Meter) Namespace() string { return "meters_0x0022" }
func (r *Meter) ID() string        { return r.id }

// NestKey distinguishes the several concurrently-reported 0x0022 records
// sharing one timestamp and device id, per ParseDevice_0x0022.wrap_in_ids.
func (r *Meter) NestKey() string {
	if label, ok := meterNestKeys[r.RecType]; ok {
		return label
	}
	return fmt.Sprintf("%d_UnrecognisedRecType", r.RecType)
}

func (r *Meter) Fields() []Field {
	return []Field{
		{"Date", r.Date}, {"Time", r.Time}, {"ID", r.id},
		{"recType", r.RecType}, {"onlyIntervalData", r.OnlyIntervalData},
		{"TotalE2Grid", r.TotalE2Grid}, {"FlagE2Grid", r.FlagE2Grid},
		{"TotalEfromGrid", r.TotalEFromGrid}, {"FlagEfromGrid", r.FlagEFromGrid},
		{"Totaloff22", r.Total22}, {"Flagoff22", r.Flag22},
		{"Totaloff30", r.Total30}, {"Flagoff30", r.Flag30},
		{"Interval", r.Interval}, {"E2X", r.E2X}, {"EfromX", r.EFromX},
		{"P2X", r.P2X}, {"PfromX", r.PFromX},
	}
}
