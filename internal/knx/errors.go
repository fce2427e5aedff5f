package knx

import "errors"

// Domain errors for the KNX codec package.
var (
	// ErrTruncated is returned when a decoder runs out of input bytes.
	ErrTruncated = errors.New("knx: truncated input")

	// ErrInvalidHex is returned when a hex string has an odd number of
	// digits or contains a non-hex character.
	ErrInvalidHex = errors.New("knx: invalid hex string")

	// ErrInvalidGroupAddress is returned when a group address string
	// cannot be parsed.
	ErrInvalidGroupAddress = errors.New("knx: invalid group address")

	// ErrInvalidPhysicalAddress is returned when an individual address
	// string cannot be parsed.
	ErrInvalidPhysicalAddress = errors.New("knx: invalid physical address")

	// ErrInvalidDPT is returned when a datapoint type identifier is invalid.
	ErrInvalidDPT = errors.New("knx: invalid datapoint type")

	// ErrEncodingFailed is returned when encoding a value to KNX format fails.
	ErrEncodingFailed = errors.New("knx: encoding failed")

	// ErrDecodingFailed is returned when decoding KNX data to a value fails.
	ErrDecodingFailed = errors.New("knx: decoding failed")

	// ErrMalformedCEMI is returned when a CEMI frame violates its
	// structural invariants (message code, lengths).
	ErrMalformedCEMI = errors.New("knx: malformed cemi frame")
)
