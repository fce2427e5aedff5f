// Package tunnel implements the KNXnet/IP client session: gateway
// discovery, tunnel connection setup, the acknowledged receive path and
// caller-initiated disconnect.
//
// A Session is an actor. One goroutine owns all session state and reads
// a single inbox channel that carries both caller commands and inbound
// datagrams from the transports, so no mutex guards the state machine.
// Socket I/O is delegated to the collaborators in transport.go; the
// session never blocks on the network and exposes no timeouts of its
// own. Callers bound Connect and Disconnect with their context.
//
// Every TunnellingRequest received on the open channel is acknowledged
// immediately with the same channel ID and sequence counter. Retry and
// reconnect policy belongs to the caller.
package tunnel
