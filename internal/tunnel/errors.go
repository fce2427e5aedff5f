package tunnel

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
)

// Domain-specific errors for the tunnel session.
var (
	// ErrProtocolStatus matches every *StatusError.
	ErrProtocolStatus = errors.New("tunnel: gateway returned error status")

	// ErrTransport wraps failures reported by a transport collaborator.
	ErrTransport = errors.New("tunnel: transport error")

	// ErrInvalidState is returned when a command is not allowed in the
	// session's current state.
	ErrInvalidState = errors.New("tunnel: invalid state for operation")

	// ErrNoTransport is returned when the collaborator an operation needs
	// was not supplied.
	ErrNoTransport = errors.New("tunnel: transport not configured")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("tunnel: session closed")
)

// StatusError reports a non-success status from a gateway response.
type StatusError struct {
	Op     string
	Status knxnetip.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tunnel: %s: gateway status %s (0x%02X)", e.Op, e.Status, uint8(e.Status))
}

// Is makes errors.Is(err, ErrProtocolStatus) true for any StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrProtocolStatus
}
