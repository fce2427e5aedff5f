package knx

import (
	"fmt"
	"strconv"
)

// undefinedPrefix marks payloads that could not be rendered with a
// known datapoint type.
const undefinedPrefix = "undefined:0x"

// dptFormat renders a payload of at least size bytes.
type dptFormat struct {
	size   int
	render func(data []byte) string
}

func boolFormat(off, on string) dptFormat {
	return dptFormat{size: 1, render: func(b []byte) string {
		if b[0]&0x01 != 0 {
			return on
		}
		return off
	}}
}

func float9Format(unit string) dptFormat {
	return dptFormat{size: 2, render: func(b []byte) string { //nolint:mnd // 2-byte float
		v, _ := DecodeDPT9(b)
		return strconv.FormatFloat(float64(v), 'f', 2, 32) + " " + unit
	}}
}

func float14Format(unit string) dptFormat {
	return dptFormat{size: 4, render: func(b []byte) string { //nolint:mnd // 4-byte float
		v, _ := DecodeDPT14(b)
		return strconv.FormatFloat(float64(v), 'f', 2, 32) + " " + unit
	}}
}

// displayFormats is the closed set of datapoint types Display can render.
var displayFormats = map[DPT]dptFormat{
	DPTSwitch:     boolFormat("Off", "On"),
	DPTBool:       boolFormat("False", "True"),
	DPTEnable:     boolFormat("Disable", "Enable"),
	DPTAlarm:      boolFormat("No alarm", "Alarm"),
	DPTStep:       boolFormat("Decrease", "Increase"),
	DPTUpDown:     boolFormat("Up", "Down"),
	DPTOpenClose:  boolFormat("Open", "Close"),
	DPTStart:      boolFormat("Stop", "Start"),
	DPTState:      boolFormat("Inactive", "Active"),
	DPTTrigger:    boolFormat("Trigger", "Trigger"),
	DPTWindowDoor: boolFormat("Closed", "Open"),

	DPTPercentage: {size: 1, render: func(b []byte) string {
		v, _ := DecodeDPT5(b)
		return strconv.FormatFloat(float64(v), 'f', 1, 32) + " %"
	}},
	DPTAngle: {size: 1, render: func(b []byte) string {
		v := float32(b[0]) / dpt5MaxValue * 360 //nolint:mnd // degrees
		return strconv.FormatFloat(float64(v), 'f', 1, 32) + " °"
	}},
	DPTPercentU8: {size: 1, render: func(b []byte) string { return fmt.Sprintf("%d %%", b[0]) }},
	DPTCounterU8: {size: 1, render: func(b []byte) string { return fmt.Sprintf("%d pulses", b[0]) }},

	DPTTemperature: float9Format("°C"),
	DPTTempDiff:    float9Format("K"),
	DPTLux:         float9Format("lux"),
	DPTSpeed:       float9Format("m/s"),
	DPTPressure:    float9Format("Pa"),
	DPTHumidity:    float9Format("%"),
	DPTAirQuality:  float9Format("ppm"),

	DPTTimeOfDay: {size: 3, render: func(b []byte) string { //nolint:mnd // 3-byte time
		t, _ := DecodeDPT10(b)
		return t.String()
	}},
	DPTDate: {size: 3, render: func(b []byte) string { //nolint:mnd // 3-byte date
		d, _ := DecodeDPT11(b)
		return d.Format("2006-01-02")
	}},

	DPTCounterU32: {size: 4, render: func(b []byte) string { //nolint:mnd // 4-byte value
		v, _ := DecodeDPT12(b)
		return fmt.Sprintf("%d pulses", v)
	}},
	DPTCounterS32: {size: 4, render: func(b []byte) string { //nolint:mnd // 4-byte value
		v, _ := DecodeDPT13(b)
		return fmt.Sprintf("%d pulses", v)
	}},
	DPTActiveEnergy: {size: 4, render: func(b []byte) string { //nolint:mnd // 4-byte value
		v, _ := DecodeDPT13(b)
		return fmt.Sprintf("%d Wh", v)
	}},
	DPTElectricAmps:   float14Format("A"),
	DPTPower:          float14Format("W"),
	DPTTemperatureF32: float14Format("°C"),
	DPTVolume:         float14Format("m³"),
}

// Display renders payload as text for the given datapoint type.
//
// Display is total: an unknown type, or a payload shorter than the
// type requires, renders as "undefined:0x" followed by the payload hex.
func Display(payload []byte, dpt DPT) string {
	f, ok := displayFormats[dpt]
	if !ok || len(payload) < f.size {
		return undefinedPrefix + ToHex(payload)
	}
	return f.render(payload[:f.size])
}

// Numeric returns the payload as a float64 for numeric datapoint types.
// The second result is false for booleans, time/date and unknown types.
func Numeric(payload []byte, dpt DPT) (float64, bool) {
	var (
		v   float64
		err error
	)
	switch dpt.Major() {
	case "5":
		if len(payload) < 1 {
			return 0, false
		}
		switch dpt {
		case DPTPercentage:
			f, _ := DecodeDPT5(payload)
			v = float64(f)
		case DPTAngle:
			v = float64(float32(payload[0]) / dpt5MaxValue * 360) //nolint:mnd // degrees
		default:
			v = float64(payload[0])
		}
	case "9":
		var f float32
		f, err = DecodeDPT9(payload)
		v = float64(f)
	case "12":
		var u uint32
		u, err = DecodeDPT12(payload)
		v = float64(u)
	case "13":
		var i int32
		i, err = DecodeDPT13(payload)
		v = float64(i)
	case "14":
		var f float32
		f, err = DecodeDPT14(payload)
		v = float64(f)
	default:
		return 0, false
	}
	if err != nil || !dpt.IsKnown() {
		return 0, false
	}
	return v, true
}
