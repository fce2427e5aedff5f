package knx

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// EncodeValue converts a loosely typed value, as found in JSON command
// payloads, into the payload for dpt.
//
// Accepted inputs:
//   - 1.xxx: bool, a number (non-zero is true) or "on"/"off"/"true"/"false"
//   - 5.001: percent 0-100; 5.003: degrees 0-360; other 5.xxx: raw 0-255
//   - 9.xxx, 14.xxx: any number
//   - 12.001: 0 to 2^32-1; 13.xxx: signed 32-bit
func EncodeValue(dpt DPT, v any) ([]byte, error) {
	if dpt.Major() == "1" {
		b, err := asBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrEncodingFailed, dpt, err)
		}
		return EncodeDPT1(b), nil
	}

	f, err := asFloat(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEncodingFailed, dpt, err)
	}

	switch dpt.Major() {
	case "5":
		switch dpt {
		case DPTPercentage:
			return EncodeDPT5(f), nil
		case DPTAngle:
			if f < 0 || f > 360 { //nolint:mnd // degrees
				return nil, fmt.Errorf("%w: %s: %v out of range 0-360", ErrEncodingFailed, dpt, f)
			}
			return []byte{uint8(math.Round(f * dpt5MaxValue / 360))}, nil //nolint:mnd // degrees
		default:
			if f < 0 || f > dpt5MaxValue {
				return nil, fmt.Errorf("%w: %s: %v out of range 0-255", ErrEncodingFailed, dpt, f)
			}
			return []byte{uint8(math.Round(f))}, nil
		}
	case "9":
		return EncodeDPT9(f)
	case "12":
		if f < 0 || f > math.MaxUint32 {
			return nil, fmt.Errorf("%w: %s: %v out of range", ErrEncodingFailed, dpt, f)
		}
		return binary.BigEndian.AppendUint32(nil, uint32(f)), nil
	case "13":
		if f < math.MinInt32 || f > math.MaxInt32 {
			return nil, fmt.Errorf("%w: %s: %v out of range", ErrEncodingFailed, dpt, f)
		}
		return binary.BigEndian.AppendUint32(nil, uint32(int32(f))), nil //nolint:gosec // two's complement
	case "14":
		return EncodeDPT14(float32(f)), nil
	default:
		return nil, fmt.Errorf("%w: %s has no encoder", ErrInvalidDPT, dpt)
	}
}

func asBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "on", "true", "1":
			return true, nil
		case "off", "false", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("cannot use %v (%T) as a boolean", v, v)
}

func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot use %v (%T) as a number", v, v)
}
