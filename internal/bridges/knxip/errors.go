package knxip

import "errors"

// Domain errors for the bridge.
var (
	// ErrInvalidCommand is returned when a command payload cannot be used.
	ErrInvalidCommand = errors.New("knxip: invalid command")

	// ErrRateLimited is returned when a command cannot be sent within
	// its context because of the send rate limit.
	ErrRateLimited = errors.New("knxip: send rate exceeded")

	// ErrNoSession is returned by NewBridge without a session.
	ErrNoSession = errors.New("knxip: session is required")
)
