package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

// Unicast is the point-to-point socket of one tunnel connection.
//
// Thread Safety: Send and Stop are safe for concurrent use. The receive
// callback runs on the read goroutine started by Start.
type Unicast struct {
	remote netip.AddrPort
	conn   *net.UDPConn
	local  netip.AddrPort
	log    Logger

	mu    sync.Mutex
	onMsg func([]byte, error)

	started bool
	done    *closeOnce
	wg      sync.WaitGroup
}

var (
	_ tunnel.PointToPoint   = (*Unicast)(nil)
	_ tunnel.LocalAddresser = (*Unicast)(nil)
)

// DialUnicast binds a socket on local for talking to remote. An invalid
// or unspecified local address binds all interfaces; LocalAddr then
// reports the interface address that routes to remote.
func DialUnicast(remote, local netip.AddrPort, log Logger) (*Unicast, error) {
	if !remote.IsValid() || !remote.Addr().Is4() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEndpoint, remote)
	}
	if log == nil {
		log = nopLogger{}
	}

	laddr := &net.UDPAddr{Port: int(local.Port())}
	if local.Addr().IsValid() && !local.Addr().IsUnspecified() {
		laddr.IP = local.Addr().AsSlice()
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrListen, laddr, err)
	}

	bound := conn.LocalAddr().(*net.UDPAddr).AddrPort() //nolint:forcetypeassert // ListenUDP
	addr := bound.Addr().Unmap()
	if addr.IsUnspecified() {
		if ip, err := LocalIPFor(remote.Addr()); err == nil {
			addr = ip
		} else {
			log.Warn("could not determine local address", "remote", remote.String(), "error", err)
		}
	}

	return &Unicast{
		remote: remote,
		conn:   conn,
		local:  netip.AddrPortFrom(addr, bound.Port()),
		log:    log,
		done:   newCloseOnce(),
	}, nil
}

// Dialer returns a tunnel.DialFunc binding each connection on local.
func Dialer(local netip.AddrPort, log Logger) tunnel.DialFunc {
	return func(remote netip.AddrPort) (tunnel.PointToPoint, error) {
		return DialUnicast(remote, local, log)
	}
}

// LocalAddr returns the endpoint to announce to the gateway.
func (u *Unicast) LocalAddr() netip.AddrPort { return u.local }

// OnReceiveMessage sets the receive callback. Call before Start.
func (u *Unicast) OnReceiveMessage(fn func(data []byte, err error)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onMsg = fn
}

// Start begins reading.
func (u *Unicast) Start() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.started {
		return ErrAlreadyStarted
	}
	u.started = true
	u.wg.Add(1)
	go u.readLoop()
	return nil
}

// Send writes b to the gateway.
func (u *Unicast) Send(b []byte) error {
	if _, err := u.conn.WriteToUDPAddrPort(b, u.remote); err != nil {
		return fmt.Errorf("send to %s: %w", u.remote, err)
	}
	return nil
}

// Stop closes the socket and waits for the read goroutine.
func (u *Unicast) Stop() error {
	u.done.Close()
	err := u.conn.Close()
	u.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (u *Unicast) readLoop() {
	defer u.wg.Done()

	u.mu.Lock()
	onMsg := u.onMsg
	u.mu.Unlock()

	buf := make([]byte, readBufferSize)
	for {
		n, from, err := u.conn.ReadFromUDPAddrPort(buf)
		select {
		case <-u.done.Done():
			return
		default:
		}
		if err != nil {
			if onMsg != nil {
				onMsg(nil, err)
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		if from.Addr().Unmap() != u.remote.Addr() {
			u.log.Debug("dropping datagram from unexpected sender", "from", from.String(), "remote", u.remote.String())
			continue
		}
		if onMsg != nil {
			onMsg(append([]byte(nil), buf[:n]...), nil)
		}
	}
}
