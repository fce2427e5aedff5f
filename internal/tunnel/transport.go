package tunnel

import "net/netip"

// MulticastTransport sends search requests to the discovery group and
// delivers every datagram received on the discovery socket.
//
// Callbacks may be invoked from any goroutine. Implementations must
// register callbacks before the first datagram can arrive.
type MulticastTransport interface {
	SendBroadcast(b []byte) error
	OnReceive(fn func(from netip.AddrPort, data []byte))
	OnError(fn func(err error))
	Close() error
}

// PointToPoint is a unicast channel to one gateway.
//
// OnReceiveMessage is called with either a datagram or an error; it is
// set before Start.
type PointToPoint interface {
	Start() error
	Send(b []byte) error
	OnReceiveMessage(fn func(data []byte, err error))
	Stop() error
}

// LocalAddresser is implemented by point-to-point transports that know
// the local endpoint they are bound to. The session announces that
// endpoint in its ConnectRequest when the configured one is unspecified.
type LocalAddresser interface {
	LocalAddr() netip.AddrPort
}

// DialFunc opens a point-to-point transport to a gateway endpoint.
type DialFunc func(remote netip.AddrPort) (PointToPoint, error)
