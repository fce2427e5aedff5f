package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"golang.org/x/net/ipv4"

	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

// readBufferSize holds any KNXnet/IP datagram.
const readBufferSize = 1500

// defaultTTL keeps search requests inside the local network.
const defaultTTL = 16

// MulticastConfig configures the discovery socket.
type MulticastConfig struct {
	// Group is the discovery destination. Default: 224.0.23.12:3671.
	Group netip.AddrPort

	// LocalPort is the bound port. Zero picks an ephemeral port.
	LocalPort uint16

	// Interface names the network interface used for outgoing
	// multicast and group membership. Empty uses the system default.
	Interface string

	// JoinGroup also receives traffic sent to the group, such as other
	// clients' search requests and routing indications.
	JoinGroup bool

	// TTL for outgoing multicast. Default: 16.
	TTL int

	// Loopback delivers our own multicast back to local sockets.
	Loopback bool
}

// Multicast is the discovery socket.
//
// Thread Safety: all methods are safe for concurrent use. Callbacks run
// on the read goroutine.
type Multicast struct {
	cfg   MulticastConfig
	conn  *net.UDPConn
	pconn *ipv4.PacketConn
	log   Logger

	mu     sync.RWMutex
	onRecv func(netip.AddrPort, []byte)
	onErr  func(error)

	done *closeOnce
	wg   sync.WaitGroup
}

var _ tunnel.MulticastTransport = (*Multicast)(nil)

// ListenMulticast binds the discovery socket and starts reading.
func ListenMulticast(cfg MulticastConfig, log Logger) (*Multicast, error) {
	if !cfg.Group.IsValid() {
		cfg.Group = netip.AddrPortFrom(netip.MustParseAddr(knxnetip.DefaultMulticastGroup), knxnetip.DefaultPort)
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaultTTL
	}
	if log == nil {
		log = nopLogger{}
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(cfg.LocalPort)})
	if err != nil {
		return nil, fmt.Errorf("%w: listen on port %d: %w", ErrListen, cfg.LocalPort, err)
	}

	m := &Multicast{
		cfg:   cfg,
		conn:  conn,
		pconn: ipv4.NewPacketConn(conn),
		log:   log,
		done:  newCloseOnce(),
	}
	if err := m.configure(); err != nil {
		conn.Close()
		return nil, err
	}

	m.wg.Add(1)
	go m.readLoop()
	return m, nil
}

func (m *Multicast) configure() error {
	var iface *net.Interface
	if m.cfg.Interface != "" {
		ifi, err := net.InterfaceByName(m.cfg.Interface)
		if err != nil {
			return fmt.Errorf("%w: interface %q: %w", ErrListen, m.cfg.Interface, err)
		}
		iface = ifi
		if err := m.pconn.SetMulticastInterface(iface); err != nil {
			return fmt.Errorf("%w: set multicast interface: %w", ErrListen, err)
		}
	}
	if err := m.pconn.SetMulticastTTL(m.cfg.TTL); err != nil {
		m.log.Warn("could not set multicast TTL", "error", err)
	}
	if err := m.pconn.SetMulticastLoopback(m.cfg.Loopback); err != nil {
		m.log.Warn("could not set multicast loopback", "error", err)
	}

	if !m.cfg.JoinGroup || !m.cfg.Group.Addr().IsMulticast() {
		return nil
	}
	group := &net.UDPAddr{IP: m.cfg.Group.Addr().AsSlice()}
	if iface != nil {
		if err := m.pconn.JoinGroup(iface, group); err != nil {
			return fmt.Errorf("%w: join %s on %s: %w", ErrListen, group.IP, iface.Name, err)
		}
		return nil
	}
	return m.joinAll(group)
}

// joinAll joins the group on every multicast-capable interface that is up.
func (m *Multicast) joinAll(group *net.UDPAddr) error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return fmt.Errorf("%w: list interfaces: %w", ErrListen, err)
	}
	joined := 0
	for i := range ifaces {
		ifi := &ifaces[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		if err := m.pconn.JoinGroup(ifi, group); err != nil {
			m.log.Debug("join group failed", "interface", ifi.Name, "error", err)
			continue
		}
		joined++
	}
	if joined == 0 {
		return fmt.Errorf("%w: no interface joined %s", ErrListen, group.IP)
	}
	return nil
}

// LocalAddr returns the bound address.
func (m *Multicast) LocalAddr() netip.AddrPort {
	return m.conn.LocalAddr().(*net.UDPAddr).AddrPort() //nolint:forcetypeassert // ListenUDP
}

// SendBroadcast sends b to the discovery group.
func (m *Multicast) SendBroadcast(b []byte) error {
	if _, err := m.conn.WriteToUDPAddrPort(b, m.cfg.Group); err != nil {
		return fmt.Errorf("send to %s: %w", m.cfg.Group, err)
	}
	return nil
}

// OnReceive sets the datagram callback.
func (m *Multicast) OnReceive(fn func(from netip.AddrPort, data []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRecv = fn
}

// OnError sets the error callback.
func (m *Multicast) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onErr = fn
}

// Close stops the read goroutine and closes the socket.
func (m *Multicast) Close() error {
	var err error
	m.done.Close()
	if m.conn != nil {
		err = m.conn.Close()
	}
	m.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (m *Multicast) readLoop() {
	defer m.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, from, err := m.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if m.isClosed() {
				return
			}
			m.mu.RLock()
			onErr := m.onErr
			m.mu.RUnlock()
			if onErr != nil {
				onErr(err)
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		m.mu.RLock()
		onRecv := m.onRecv
		m.mu.RUnlock()
		if onRecv == nil {
			continue
		}
		onRecv(netip.AddrPortFrom(from.Addr().Unmap(), from.Port()), append([]byte(nil), buf[:n]...))
	}
}

func (m *Multicast) isClosed() bool {
	select {
	case <-m.done.Done():
		return true
	default:
		return false
	}
}
