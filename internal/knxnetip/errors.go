package knxnetip

import "errors"

// Domain errors for the KNXnet/IP frame package.
var (
	// ErrMalformedFrame is returned when a datagram violates a structural
	// invariant: bad constant byte, length mismatch or invalid enum value.
	// Truncation errors from the cursor are wrapped with it as well.
	ErrMalformedFrame = errors.New("knxnetip: malformed frame")

	// ErrUnknownServiceType classifies a valid header whose service code
	// is outside the enumerated set. Callers usually ignore it.
	ErrUnknownServiceType = errors.New("knxnetip: unknown service type")
)
