package devrec

import "fmt"

// inverter1PhTags is se/dataparams.py's invInFmt ("<LLLffffffLLfLffLfffffLLffL"),
// 26 little-endian 4-byte fields.
const inverter1PhTags = "LLLffffffLLfLffLfffffLLffL"

// Inverter1Ph is the 0x0010 single-phase inverter record.
type Inverter1Ph struct {
	id               string
	Date, Time       string
	Uptime           uint32
	Interval         uint32
	Temp             float32
	EToday           float32
	EAC              float32
	VAC              float32
	IAC              float32
	Freq             float32
	VDC              float32
	ETotal           float32
	PMax             float32
	PAC              float32
	UndecipheredData string
}

func parseInverter1Ph(h Header, body []byte) (Record, error) {
	bodyLen := len(inverter1PhTags) * 4
	if len(body) < bodyLen {
		return nil, shortBody("single-phase inverter", bodyLen, len(body))
	}
	f := decodeLEFields(inverter1PhTags, body[:bodyLen])

	date, clock := dateTimeFields(f[0].AsUint32())
	return &Inverter1Ph{
		id:               FormatID(h.SeID),
		Date:             date,
		Time:             clock,
		Uptime:           f[1].AsUint32(),
		Interval:         f[2].AsUint32(),
		Temp:             f[3].AsFloat32(),
		EToday:           f[4].AsFloat32(),
		EAC:              f[5].AsFloat32(),
		VAC:              f[6].AsFloat32(),
		IAC:              f[7].AsFloat32(),
		Freq:             f[8].AsFloat32(),
		VDC:              f[11].AsFloat32(),
		ETotal:           f[13].AsFloat32(),
		PMax:             f[18].AsFloat32(),
		PAC:              f[23].AsFloat32(),
		UndecipheredData: undecipheredTail(body, bodyLen),
	}, nil
}

func (r *Inverter1Ph) Namespace() string { return "inverters" }
func (r *Inverter1Ph) ID() string        { return r.id }
func (r *Inverter1Ph) NestKey() string   { return "" }
func (r *Inverter1Ph) Fields() []Field {
	f := []Field{
		{"Date", r.Date}, {"Time", r.Time}, {"ID", r.id},
		{"Uptime", r.Uptime}, {"Interval", r.Interval}, {"Temp", r.Temp},
		{"Eday", r.EToday}, {"Eac", r.EAC}, {"Vac", r.VAC}, {"Iac", r.IAC},
		{"Freq", r.Freq}, {"Vdc", r.VDC}, {"Etot", r.ETotal},
		{"Pmax", r.PMax}, {"Pac", r.PAC},
	}
	if r.UndecipheredData != "" {
		f = append(f, Field{"Undeciphered_data", r.UndecipheredData})
	}
	return f
}

// inverter3PhTags is se/dataparams.py's inv3PhInFmt, 32 fields.
const inverter3PhTags = "LLLffffffffffffLLfLffLLLfffLfffL"

// InverterMode is the non-contiguous three-phase inverter operating
// mode enum.
type InverterMode uint32

const (
	InverterModeOff          InverterMode = 1
	InverterModeSleeping     InverterMode = 2
	InverterModeStarting     InverterMode = 3
	InverterModeMPPT         InverterMode = 4
	InverterModeShuttingDown InverterMode = 6
	InverterModeStandby      InverterMode = 8
)

func (m InverterMode) String() string {
	switch m {
	case InverterModeOff:
		return "Off"
	case InverterModeSleeping:
		return "Sleeping"
	case InverterModeStarting:
		return "Starting"
	case InverterModeMPPT:
		return "MPPT"
	case InverterModeShuttingDown:
		return "ShuttingDown"
	case InverterModeStandby:
		return "Standby"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(m))
	}
}

// Inverter3Ph is the 0x0011 three-phase inverter record. All 32 decoded
// fields are retained, including the ones the original source could
// only label as "data21"/"data29"/etc.
type Inverter3Ph struct {
	id                         string
	Date, Time                 string
	Uptime, Interval           uint32
	Temp                       float32
	EToday, EAC                float32
	VAC1, VAC2, VAC3           float32
	IAC1, IAC2, IAC3           float32
	Freq1, Freq2, Freq3        float32
	EDayDC, EDC                uint32 // obfuscated by the manufacturer; decoded as the wire's raw uint32
	VDC                        float32
	IDC                        uint32
	ETotal, GroundFaultCurrent float32
	Data21, Data22, Data23     uint32
	CosPhi1, CosPhi2, CosPhi3  float32
	Mode                       InverterMode
	GroundFaultR               float32
	Data29                     float32
	IOutDC                     float32
	Data31                     uint32
	UndecipheredData           string
}

func parseInverter3Ph(h Header, body []byte) (Record, error) {
	bodyLen := len(inverter3PhTags) * 4
	if len(body) < bodyLen {
		return nil, shortBody("three-phase inverter", bodyLen, len(body))
	}
	f := decodeLEFields(inverter3PhTags, body[:bodyLen])

	date, clock := dateTimeFields(f[0].AsUint32())
	return &Inverter3Ph{
		id:                 FormatID(h.SeID),
		Date:               date,
		Time:               clock,
		Uptime:             f[1].AsUint32(),
		Interval:           f[2].AsUint32(),
		Temp:               f[3].AsFloat32(),
		EToday:             f[4].AsFloat32(),
		EAC:                f[5].AsFloat32(),
		VAC1:               f[6].AsFloat32(),
		VAC2:               f[7].AsFloat32(),
		VAC3:               f[8].AsFloat32(),
		IAC1:               f[9].AsFloat32(),
		IAC2:               f[10].AsFloat32(),
		IAC3:               f[11].AsFloat32(),
		Freq1:              f[12].AsFloat32(),
		Freq2:              f[13].AsFloat32(),
		Freq3:              f[14].AsFloat32(),
		EDayDC:             f[15].AsUint32(),
		EDC:                f[16].AsUint32(),
		VDC:                f[17].AsFloat32(),
		IDC:                f[18].AsUint32(),
		ETotal:             f[19].AsFloat32(),
		GroundFaultCurrent: f[20].AsFloat32(),
		Data21:             f[21].AsUint32(),
		Data22:             f[22].AsUint32(),
		Data23:             f[23].AsUint32(),
		CosPhi1:            f[24].AsFloat32(),
		CosPhi2:            f[25].AsFloat32(),
		CosPhi3:            f[26].AsFloat32(),
		Mode:               InverterMode(f[27].AsUint32()),
		GroundFaultR:       f[28].AsFloat32(),
		Data29:             f[29].AsFloat32(),
		IOutDC:             f[30].AsFloat32(),
		Data31:             f[31].AsUint32(),
		UndecipheredData:   undecipheredTail(body, bodyLen),
	}, nil
}

func (r *Inverter3Ph) Namespace() string { return "inverters" }
func (r *Inverter3Ph) ID() string        { return r.id }
func (r *Inverter3Ph) NestKey() string   { return "" }
func (r *Inverter3Ph) Fields() []Field {
	f := []Field{
		{"Date", r.Date}, {"Time", r.Time}, {"ID", r.id},
		{"Uptime", r.Uptime}, {"Interval", r.Interval}, {"Temp", r.Temp},
		{"Eday", r.EToday}, {"Eac", r.EAC},
		{"Vac1", r.VAC1}, {"Vac2", r.VAC2}, {"Vac3", r.VAC3},
		{"Iac1", r.IAC1}, {"Iac2", r.IAC2}, {"Iac3", r.IAC3},
		{"Freq1", r.Freq1}, {"Freq2", r.Freq2}, {"Freq3", r.Freq3},
		{"EdayDC", r.EDayDC}, {"Edc", r.EDC}, {"Vdc", r.VDC}, {"Idc", r.IDC},
		{"Etot", r.ETotal}, {"Irdc", r.GroundFaultCurrent},
		{"data21", r.Data21}, {"data22", r.Data22}, {"data23", r.Data23},
		{"CosPhi1", r.CosPhi1}, {"CosPhi2", r.CosPhi2}, {"CosPhi3", r.CosPhi3},
		{"Mode", r.Mode.String()}, {"GndFltR", r.GroundFaultR},
		{"data29", r.Data29}, {"IoutDC", r.IOutDC}, {"data31", r.Data31},
	}
	if r.UndecipheredData != "" {
		f = append(f, Field{"Undeciphered_data", r.UndecipheredData})
	}
	return f
}
