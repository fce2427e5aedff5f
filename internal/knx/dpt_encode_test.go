package knx

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name  string
		dpt   DPT
		value any
		want  []byte
	}{
		{"switch true", DPTSwitch, true, []byte{0x01}},
		{"switch string off", DPTSwitch, "Off", []byte{0x00}},
		{"switch number", DPTSwitch, float64(1), []byte{0x01}},
		{"percentage", DPTPercentage, float64(100), []byte{0xFF}},
		{"angle", DPTAngle, float64(360), []byte{0xFF}},
		{"raw counter", DPTCounterU8, 42, []byte{42}},
		{"temperature", DPTTemperature, 21.0, []byte{0x0C, 0x1A}},
		{"counter u32", DPTCounterU32, float64(258), []byte{0x00, 0x00, 0x01, 0x02}},
		{"counter s32", DPTCounterS32, float64(-1), []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{"power", DPTPower, float64(1), []byte{0x3F, 0x80, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeValue(tt.dpt, tt.value)
			if err != nil {
				t.Fatalf("EncodeValue(%s, %v) error = %v", tt.dpt, tt.value, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeValue(%s, %v) = % X, want % X", tt.dpt, tt.value, got, tt.want)
			}
		})
	}
}

func TestEncodeValueRoundTrip(t *testing.T) {
	data, err := EncodeValue(DPTTemperature, 21.0)
	if err != nil {
		t.Fatalf("EncodeValue() error = %v", err)
	}
	if got := Display(data, DPTTemperature); got != "21.00 °C" {
		t.Errorf("Display() = %q, want %q", got, "21.00 °C")
	}
}

func TestEncodeValueErrors(t *testing.T) {
	tests := []struct {
		name  string
		dpt   DPT
		value any
		want  error
	}{
		{"switch garbage", DPTSwitch, "maybe", ErrEncodingFailed},
		{"number from string", DPTTemperature, "21", ErrEncodingFailed},
		{"raw u8 overflow", DPTCounterU8, float64(256), ErrEncodingFailed},
		{"angle overflow", DPTAngle, float64(361), ErrEncodingFailed},
		{"u32 negative", DPTCounterU32, float64(-1), ErrEncodingFailed},
		{"dpt9 overflow", DPTTemperature, 1e9, ErrEncodingFailed},
		{"time has no encoder", DPTTimeOfDay, float64(1), ErrInvalidDPT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeValue(tt.dpt, tt.value); !errors.Is(err, tt.want) {
				t.Errorf("EncodeValue(%s, %v) error = %v, want %v", tt.dpt, tt.value, err, tt.want)
			}
		})
	}
}
