package knx

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ToHex renders b as lowercase hex digits with no separator.
func ToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// FromHex parses a hex string with an optional "0x" prefix.
//
// Returns ErrInvalidHex if the digit count is odd or a character is not
// a hex digit. Upper and lower case digits are both accepted.
func FromHex(s string) ([]byte, error) {
	digits := s
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits = digits[2:]
	}
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("%w: odd digit count %d in %q", ErrInvalidHex, len(digits), s)
	}
	out, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidHex, s, err)
	}
	return out, nil
}
