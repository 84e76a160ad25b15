package devrec

import "encoding/binary"

// Battery is the 0x0030 86-byte record; the field table in
// seDataDevices.py's ParseDevice_0x0030 (cross-checked via its own
// offset-embedded field names, e.g. AlwaysZero_40_float actually
// starting at byte 40) puts the body at 86 bytes, longer than early
// documentation suggests. See DESIGN.md.
type Battery struct {
	id                 string
	BatteryID          string // 12-byte identifier, distinguishes multiple batteries on one inverter
	Date, Time         string
	VDC                float32
	IDC                float32
	CapacityNominal    float32
	CapacityActual     float32
	ChargeLevel        float32
	EnergyInTotal      uint32
	EnergyOutTotal     uint32
	Temp               float32
	ChargingStatus     uint16 // 3=Charging, 4=Discharging, 6=Holding
	Interval           uint32
	EnergyIn           uint32
	EnergyOut          uint32
}

func parseBattery(h Header, body []byte) (Record, error) {
	const bodyLen = 86
	if len(body) < bodyLen {
		return nil, shortBody("battery", bodyLen, len(body))
	}
	ts := binary.LittleEndian.Uint32(body[0:4])
	batteryID := string(body[4:16])
	vdc := decodeFloat32(body[16:20])
	idc := decodeFloat32(body[20:24])
	capNom := decodeFloat32(body[24:28])
	capActual := decodeFloat32(body[28:32])
	charge := decodeFloat32(body[32:36])
	energyInTotal := binary.LittleEndian.Uint32(body[36:40])
	// body[40:44] AlwaysZero_40_float, unused
	energyOutTotal := binary.LittleEndian.Uint32(body[44:48])
	// body[48:52] AlwaysZero_48_float, unused
	// body[52:56], body[56:60] HexConst_52/56, unused constants
	temp := decodeFloat32(body[60:64])
	chargingStatus := binary.LittleEndian.Uint16(body[64:66])
	// body[66:70], body[70:74] AlwaysZero_66_float/AlwaysZero_70_float, unused
	interval := binary.LittleEndian.Uint32(body[74:78])
	energyIn := binary.LittleEndian.Uint32(body[78:82])
	energyOut := binary.LittleEndian.Uint32(body[82:86])

	date, clock := dateTimeFields(ts)
	return &Battery{
		id:              FormatID(h.SeID),
		BatteryID:       batteryID,
		Date:            date,
		Time:            clock,
		VDC:             vdc,
		IDC:             idc,
		CapacityNominal: capNom,
		CapacityActual:  capActual,
		ChargeLevel:     charge,
		EnergyInTotal:   energyInTotal,
		EnergyOutTotal:  energyOutTotal,
		Temp:            temp,
		ChargingStatus:  chargingStatus,
		Interval:        interval,
		EnergyIn:        energyIn,
		EnergyOut:       energyOut,
	}, nil
}

func (r *Battery) Namespace() string { return "batteries_0x0030" }
func (r *Battery) ID() string        { return r.id }

// NestKey distinguishes multiple batteries reported under the same
// inverter, per ParseDevice_0x0030.wrap_in_ids.
func (r *Battery) NestKey() string { return r.BatteryID }

func (r *Battery) Fields() []Field {
	return []Field{
		{"Date", r.Date}, {"Time", r.Time}, {"ID", r.id}, {"BatteryId", r.BatteryID},
		{"Vdc", r.VDC}, {"Idc", r.IDC},
		{"BattCapacityNom", r.CapacityNominal}, {"BattCapacityActual", r.CapacityActual},
		{"BattCharge", r.ChargeLevel},
		{"TotalEnergyIn", r.EnergyInTotal}, {"TotalEnergyOut", r.EnergyOutTotal},
		{"Temp", r.Temp}, {"BattChargingStatus", r.ChargingStatus},
		{"Interval", r.Interval}, {"EIn", r.EnergyIn}, {"EOut", r.EnergyOut},
	}
}
