// Package transport provides the UDP sockets behind a tunnel session:
// a discovery socket that sends search requests to the KNXnet/IP
// multicast group, and a unicast socket for one tunnel connection.
//
// Both deliver datagrams through callbacks from a single read goroutine
// and stop it when closed.
package transport
