package knx

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// KNX Datapoint Type encoding constants.
const (
	// dpt5MaxValue is the maximum raw value for DPT5 (1-byte unsigned).
	dpt5MaxValue = 255

	// dpt9MaxExponent is the maximum exponent for DPT9 2-byte float.
	dpt9MaxExponent = 15

	// dpt9MantissaMask is the mask for extracting mantissa from DPT9.
	dpt9MantissaMask = 0x07FF

	// dpt9SignOffset is subtracted from the mantissa when the sign bit is set.
	dpt9SignOffset = 2048

	// dpt11CenturyPivot splits 2-digit years between 19xx and 20xx.
	dpt11CenturyPivot = 90

	// byteShift is the bit shift for byte extraction.
	byteShift = 8
)

// DPT represents a KNX Datapoint Type identifier.
//
// Format: "major.minor" (e.g., "1.001", "9.001")
type DPT string

// Supported DPT identifiers.
const (
	// 1-bit types (DPT 1.xxx)
	DPTSwitch     DPT = "1.001" // Off/On
	DPTBool       DPT = "1.002" // False/True
	DPTEnable     DPT = "1.003" // Disable/Enable
	DPTAlarm      DPT = "1.005" // No alarm/Alarm
	DPTStep       DPT = "1.007" // Decrease/Increase
	DPTUpDown     DPT = "1.008" // Up/Down
	DPTOpenClose  DPT = "1.009" // Open/Close
	DPTStart      DPT = "1.010" // Stop/Start
	DPTState      DPT = "1.011" // Inactive/Active
	DPTTrigger    DPT = "1.017" // Trigger
	DPTWindowDoor DPT = "1.019" // Closed/Open

	// 1-byte unsigned types (DPT 5.xxx)
	DPTPercentage DPT = "5.001" // 0-100%
	DPTAngle      DPT = "5.003" // 0-360°
	DPTPercentU8  DPT = "5.004" // 0-255 raw percent
	DPTCounterU8  DPT = "5.010" // 0-255 pulses

	// 2-byte float types (DPT 9.xxx)
	DPTTemperature DPT = "9.001" // °C
	DPTTempDiff    DPT = "9.002" // K
	DPTLux         DPT = "9.004" // lux
	DPTSpeed       DPT = "9.005" // m/s
	DPTPressure    DPT = "9.006" // Pa
	DPTHumidity    DPT = "9.007" // %
	DPTAirQuality  DPT = "9.008" // ppm

	// 3-byte time and date (DPT 10/11)
	DPTTimeOfDay DPT = "10.001"
	DPTDate      DPT = "11.001"

	// 4-byte integer and float types (DPT 12/13/14)
	DPTCounterU32     DPT = "12.001" // pulses
	DPTCounterS32     DPT = "13.001" // pulses
	DPTActiveEnergy   DPT = "13.010" // Wh
	DPTElectricAmps   DPT = "14.019" // A
	DPTPower          DPT = "14.056" // W
	DPTTemperatureF32 DPT = "14.068" // °C
	DPTVolume         DPT = "14.076" // m³

	// DefaultDPT is assumed for group addresses with no configured type.
	DefaultDPT = DPTBool
)

// Major returns the main number of the DPT ("9" for "9.001").
func (d DPT) Major() string {
	major, _, _ := strings.Cut(string(d), ".")
	return major
}

// IsKnown reports whether the DPT has a display format.
func (d DPT) IsKnown() bool {
	_, ok := displayFormats[d]
	return ok
}

// ParseDPT validates a "major.minor" identifier against the supported set.
func ParseDPT(s string) (DPT, error) {
	d := DPT(strings.TrimSpace(s))
	if !d.IsKnown() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDPT, s)
	}
	return d, nil
}

// EncodeDPT1 encodes a boolean value to 1-bit KNX format.
//
// Returns a single byte with the LSB set to 0 or 1.
func EncodeDPT1(value bool) []byte {
	if value {
		return []byte{0x01}
	}
	return []byte{0x00}
}

// DecodeDPT1 decodes a 1-bit KNX value to boolean.
//
// Parameters:
//   - data: KNX data (at least 1 byte)
//
// Returns:
//   - bool: Bit 0 of the first byte
//   - error: If data is empty
func DecodeDPT1(data []byte) (bool, error) {
	if len(data) < 1 {
		return false, fmt.Errorf("%w: DPT1 requires 1 byte, got %d", ErrDecodingFailed, len(data))
	}
	return (data[0] & 0x01) != 0, nil
}

// EncodeDPT5 encodes a percentage (0-100) to 1-byte KNX format.
//
// DPT 5.001: Scales 0-100% to 0-255. Values outside the range are clamped.
func EncodeDPT5(percent float64) []byte {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	value := uint8(math.Round(percent * dpt5MaxValue / 100))
	return []byte{value}
}

// DecodeDPT5 decodes a 1-byte KNX value to percentage.
//
// DPT 5.001: value/255 * 100 in single precision.
func DecodeDPT5(data []byte) (float32, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: DPT5 requires 1 byte, got %d", ErrDecodingFailed, len(data))
	}
	return float32(data[0]) / dpt5MaxValue * 100, nil
}

// EncodeDPT9 encodes a float value to 2-byte KNX floating point format.
//
// KNX 2-byte float format:
//
//	Byte 0: SEEE EMMM (Sign, Exponent, Mantissa high)
//	Byte 1: MMMM MMMM (Mantissa low)
//
// Value = (Mantissa << Exponent) / 100, mantissa two's complement.
//
// Parameters:
//   - value: Float value to encode
//
// Returns:
//   - []byte: Two bytes in KNX format
//   - error: If value is out of range
func EncodeDPT9(value float64) ([]byte, error) {
	if value < -671088.64 || value > 670760.96 {
		return nil, fmt.Errorf("%w: DPT9 value out of range: %.2f (valid: -671088.64 to 670760.96)", ErrEncodingFailed, value)
	}

	mantissa := math.Round(value * 100)
	exp := 0
	for mantissa > 2047 || mantissa < -2048 {
		mantissa = math.Round(mantissa / 2)
		exp++
	}
	if exp > dpt9MaxExponent {
		return nil, fmt.Errorf("%w: DPT9 exponent overflow for value %.2f", ErrEncodingFailed, value)
	}

	m := int32(mantissa)
	var sign uint16
	if m < 0 {
		sign = 0x8000
		m += dpt9SignOffset
	}

	encoded := sign | uint16(exp)<<11 | uint16(m)&dpt9MantissaMask //nolint:gosec // exp ≤15, m masked to 11 bits
	return []byte{byte(encoded >> byteShift), byte(encoded)}, nil
}

// DecodeDPT9 decodes a 2-byte KNX floating point value.
//
// The sign bit (15) selects a two's-complement mantissa: 2048 is
// subtracted from the low 11 bits when it is set. The mantissa is
// shifted left by the 4-bit exponent (bits 11-14) and divided by 100
// in single precision.
func DecodeDPT9(data []byte) (float32, error) {
	if len(data) < 2 { //nolint:mnd // 2-byte float
		return 0, fmt.Errorf("%w: DPT9 requires 2 bytes, got %d", ErrDecodingFailed, len(data))
	}

	raw := binary.BigEndian.Uint16(data)
	exp := (raw >> 11) & 0x0F
	mantissa := int32(raw & dpt9MantissaMask)
	if raw&0x8000 != 0 {
		mantissa -= dpt9SignOffset
	}

	return float32(mantissa<<exp) / 100, nil
}

// TimeOfDay is a decoded DPT 10.001 value.
type TimeOfDay struct {
	// Weekday is 1 (Monday) to 7 (Sunday); 0 means no day given.
	Weekday uint8
	Hour    uint8
	Minute  uint8
	Second  uint8
}

var weekdayNames = [...]string{"", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// String renders "Mon 14:30:05", or "14:30:05" when no weekday is set.
func (t TimeOfDay) String() string {
	clock := fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	if t.Weekday == 0 || int(t.Weekday) >= len(weekdayNames) {
		return clock
	}
	return weekdayNames[t.Weekday] + " " + clock
}

// DecodeDPT10 decodes a 3-byte time of day.
//
//	Byte 0: DDDH HHHH (weekday, hour)
//	Byte 1: 00MM MMMM (minutes)
//	Byte 2: 00SS SSSS (seconds)
func DecodeDPT10(data []byte) (TimeOfDay, error) {
	if len(data) < 3 { //nolint:mnd // 3-byte time
		return TimeOfDay{}, fmt.Errorf("%w: DPT10 requires 3 bytes, got %d", ErrDecodingFailed, len(data))
	}
	return TimeOfDay{
		Weekday: data[0] >> 5,   //nolint:mnd // top 3 bits
		Hour:    data[0] & 0x1F, //nolint:mnd // low 5 bits
		Minute:  data[1] & 0x3F, //nolint:mnd // low 6 bits
		Second:  data[2] & 0x3F, //nolint:mnd // low 6 bits
	}, nil
}

// DecodeDPT11 decodes a 3-byte date.
//
//	Byte 0: 000D DDDD (day)
//	Byte 1: 0000 MMMM (month)
//	Byte 2: 0YYY YYYY (two-digit year)
//
// Years below 90 are 20xx, the rest 19xx.
func DecodeDPT11(data []byte) (time.Time, error) {
	if len(data) < 3 { //nolint:mnd // 3-byte date
		return time.Time{}, fmt.Errorf("%w: DPT11 requires 3 bytes, got %d", ErrDecodingFailed, len(data))
	}
	day := int(data[0] & 0x1F)   //nolint:mnd // low 5 bits
	month := int(data[1] & 0x0F) //nolint:mnd // low 4 bits
	year := int(data[2] & 0x7F)  //nolint:mnd // low 7 bits
	if year < dpt11CenturyPivot {
		year += 2000
	} else {
		year += 1900
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// DecodeDPT12 decodes a 4-byte unsigned counter.
func DecodeDPT12(data []byte) (uint32, error) {
	if len(data) < 4 { //nolint:mnd // 4-byte value
		return 0, fmt.Errorf("%w: DPT12 requires 4 bytes, got %d", ErrDecodingFailed, len(data))
	}
	return binary.BigEndian.Uint32(data), nil
}

// DecodeDPT13 decodes a 4-byte signed counter.
func DecodeDPT13(data []byte) (int32, error) {
	v, err := DecodeDPT12(data)
	if err != nil {
		return 0, fmt.Errorf("%w: DPT13 requires 4 bytes, got %d", ErrDecodingFailed, len(data))
	}
	return int32(v), nil //nolint:gosec // two's complement reinterpretation
}

// DecodeDPT14 decodes a 4-byte IEEE-754 float.
func DecodeDPT14(data []byte) (float32, error) {
	v, err := DecodeDPT12(data)
	if err != nil {
		return 0, fmt.Errorf("%w: DPT14 requires 4 bytes, got %d", ErrDecodingFailed, len(data))
	}
	return math.Float32frombits(v), nil
}

// EncodeDPT14 encodes a 4-byte IEEE-754 float.
func EncodeDPT14(value float32) []byte {
	out := make([]byte, 4) //nolint:mnd // 4-byte value
	binary.BigEndian.PutUint32(out, math.Float32bits(value))
	return out
}
