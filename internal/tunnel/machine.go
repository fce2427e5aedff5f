package tunnel

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
)

// machine holds the session state and applies transitions. It performs
// no I/O: each method returns the frame to send and what happened.
// Only the actor goroutine touches it.
type machine struct {
	state    State
	gateways []Gateway

	target     Gateway
	channel    uint8
	tunnelAddr knx.PhysicalAddress

	outSeq uint8
	lastIn int // last delivered inbound sequence, -1 for none
}

func newMachine() machine {
	return machine{lastIn: -1}
}

// step is the outcome of one inbound frame.
type step struct {
	// reply goes back over the tunnel before anything else happens.
	reply knxnetip.Frame

	events []Event

	// settled is true when the frame resolves the pending connect or
	// disconnect; result is the value handed to its caller.
	settled bool
	result  error

	// closed is true when the tunnel should be torn down.
	closed bool

	// note explains a frame that caused no transition.
	note string
}

// discover enters Discovering and returns the search request. Searching
// again while discovering keeps the gateways found so far.
func (m *machine) discover(discovery knxnetip.HPAI) (knxnetip.Frame, error) {
	switch m.state {
	case StateIdle:
		m.gateways = nil
	case StateDiscovering:
	default:
		return nil, fmt.Errorf("%w: discover while %s", ErrInvalidState, m.state)
	}
	m.state = StateDiscovering
	return knxnetip.SearchRequestFrame{Discovery: discovery}, nil
}

// connect enters Connecting and returns the connect request for gw.
func (m *machine) connect(gw Gateway, local knxnetip.HPAI) (knxnetip.Frame, error) {
	if m.state != StateIdle && m.state != StateDiscovering {
		return nil, fmt.Errorf("%w: connect while %s", ErrInvalidState, m.state)
	}
	m.state = StateConnecting
	m.target = gw
	return knxnetip.ConnectRequestFrame{Control: local, Data: local, CRI: knxnetip.TunnelCRI()}, nil
}

// disconnect enters Disconnecting and returns the disconnect request.
func (m *machine) disconnect(local knxnetip.HPAI) (knxnetip.Frame, error) {
	if m.state != StateConnected {
		return nil, fmt.Errorf("%w: disconnect while %s", ErrInvalidState, m.state)
	}
	m.state = StateDisconnecting
	return knxnetip.DisconnectRequestFrame{ChannelID: m.channel, Control: local}, nil
}

// tunnel wraps cemi in a tunnelling request with the next outbound
// sequence number.
func (m *machine) tunnel(cemi knx.Frame) (knxnetip.Frame, error) {
	if m.state != StateConnected {
		return nil, fmt.Errorf("%w: send while %s", ErrInvalidState, m.state)
	}
	req := knxnetip.NewTunnellingRequest(m.channel, m.outSeq, cemi)
	m.outSeq++
	return req, nil
}

// reset returns to Idle and forgets the connection. Discovered gateways
// are kept.
func (m *machine) reset() {
	m.state = StateIdle
	m.channel = 0
	m.tunnelAddr = 0
	m.target = Gateway{}
	m.outSeq = 0
	m.lastIn = -1
}

// handle applies one decoded inbound frame.
func (m *machine) handle(f knxnetip.Frame, from netip.AddrPort, now time.Time) step {
	switch f := f.(type) {
	case knxnetip.SearchResponseFrame:
		return m.onSearchResponse(f, from, now)
	case knxnetip.ConnectResponseFrame:
		return m.onConnectResponse(f)
	case knxnetip.TunnellingRequestFrame:
		return m.onTunnellingRequest(f, now)
	case knxnetip.TunnellingAckFrame:
		if m.state != StateConnected || f.ChannelID != m.channel {
			return step{note: "unsolicited tunnelling ack"}
		}
		if f.Status != knxnetip.StatusNoError {
			return step{note: fmt.Sprintf("tunnelling ack for seq %d: %s", f.Sequence, f.Status)}
		}
		return step{}
	case knxnetip.DisconnectResponseFrame:
		if m.state != StateDisconnecting || f.ChannelID != m.channel {
			return step{note: "unsolicited disconnect response"}
		}
		s := step{settled: true, closed: true}
		if f.Status != knxnetip.StatusNoError {
			s.result = &StatusError{Op: "disconnect", Status: f.Status}
		}
		m.reset()
		return s
	case knxnetip.DisconnectRequestFrame:
		if m.state != StateConnected || f.ChannelID != m.channel {
			return step{note: "disconnect request for unknown channel"}
		}
		s := step{
			reply:  knxnetip.DisconnectResponseFrame{ChannelID: m.channel, Status: knxnetip.StatusNoError},
			closed: true,
		}
		m.reset()
		return s
	case knxnetip.ConnectionStateResponseFrame:
		return step{note: fmt.Sprintf("connection state: %s", f.Status)}
	default:
		return step{note: fmt.Sprintf("ignored %s", f.Service())}
	}
}

func (m *machine) onSearchResponse(f knxnetip.SearchResponseFrame, from netip.AddrPort, now time.Time) step {
	if m.state != StateDiscovering {
		return step{note: "search response outside discovery"}
	}
	gw := GatewayFromResponse(f, from, now)
	m.gateways = append(m.gateways, gw)
	return step{events: []Event{GatewayEvent{Time: now, Gateway: gw}}}
}

func (m *machine) onConnectResponse(f knxnetip.ConnectResponseFrame) step {
	if m.state != StateConnecting {
		return step{note: "unsolicited connect response"}
	}
	if f.Status != knxnetip.StatusNoError {
		m.reset()
		return step{settled: true, closed: true, result: &StatusError{Op: "connect", Status: f.Status}}
	}
	m.state = StateConnected
	m.channel = f.ChannelID
	m.tunnelAddr = f.CRD.Address
	m.outSeq = 0
	m.lastIn = -1
	return step{settled: true}
}

func (m *machine) onTunnellingRequest(f knxnetip.TunnellingRequestFrame, now time.Time) step {
	if m.state != StateConnected {
		return step{note: "tunnelling request while " + m.state.String()}
	}
	if f.ChannelID != m.channel {
		return step{note: fmt.Sprintf("tunnelling request for channel %d, open channel is %d", f.ChannelID, m.channel)}
	}

	s := step{reply: knxnetip.TunnellingAckFrame{ChannelID: f.ChannelID, Sequence: f.Sequence, Status: knxnetip.StatusNoError}}

	// A repeated sequence means our previous ACK was lost: acknowledge
	// again without delivering the frame twice.
	if m.lastIn == int(f.Sequence) {
		s.note = fmt.Sprintf("repeated tunnelling request seq %d", f.Sequence)
		return s
	}
	m.lastIn = int(f.Sequence)
	s.events = []Event{TelegramEvent{
		Time:      now,
		ChannelID: f.ChannelID,
		Sequence:  f.Sequence,
		CEMI:      f.CEMI,
		Frame:     f.Frame,
	}}
	return s
}
