package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
)

const (
	// defaultEventBuffer is the Events channel capacity.
	defaultEventBuffer = 256

	// inboxSize bounds commands and datagrams waiting for the actor.
	inboxSize = 64
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Observer receives counters from the actor. Implementations must not
// block.
type Observer interface {
	FrameReceived(svc knxnetip.ServiceType)
	FrameSent(svc knxnetip.ServiceType)
	DecodeFailed()
	EventDropped()
	StateChanged(st State)
}

// Config holds session settings.
type Config struct {
	// Local is the control and data endpoint announced in connect and
	// disconnect requests. When its address is unspecified the local
	// address of the point-to-point transport is used instead.
	Local knxnetip.HPAI

	// Discovery is the endpoint announced in search requests. The zero
	// value (0.0.0.0:0) asks gateways to answer to the sender.
	Discovery knxnetip.HPAI

	// Decoder decodes inbound datagrams, including CEMI rendering.
	Decoder knxnetip.Decoder

	// EventBuffer is the Events channel capacity. Default: 256.
	EventBuffer int

	Logger   Logger
	Observer Observer
}

// Stats is a point-in-time snapshot of session counters.
type Stats struct {
	State         State
	ChannelID     uint8
	FramesRx      uint64
	FramesTx      uint64
	AcksSent      uint64
	DecodeErrors  uint64
	EventsDropped uint64
	LastActivity  time.Time
}

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Session is a KNXnet/IP tunnelling client.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - Session state is owned by a single goroutine; methods talk to it
//     through the inbox channel.
//   - Events are delivered on a buffered channel. When the consumer
//     falls behind, events are dropped and counted.
type Session struct {
	id   string
	cfg  Config
	mc   MulticastTransport
	dial DialFunc
	log  Logger
	obs  Observer

	inbox  chan any
	events chan Event
	done   *closeOnce
	wg     sync.WaitGroup

	closeErr error

	// Mirrors of actor state for lock-free reads.
	state   atomic.Int32
	channel atomic.Uint32

	framesRx      atomic.Uint64
	framesTx      atomic.Uint64
	acksSent      atomic.Uint64
	decodeErrors  atomic.Uint64
	eventsDropped atomic.Uint64
	lastActivity  atomic.Int64

	// Owned by the actor goroutine.
	m       machine
	p2p     PointToPoint
	link    *tunnelLink
	links   uint64
	local   knxnetip.HPAI
	pending chan error
	now     func() time.Time
}

// tunnelLink ties datagrams to the point-to-point transport that read
// them. Closing stop releases a reader blocked on a full inbox, so the
// transport's Stop can wait for it from the actor.
type tunnelLink struct {
	gen  uint64
	stop chan struct{}
	once sync.Once
}

func (l *tunnelLink) close() {
	l.once.Do(func() { close(l.stop) })
}

// New creates a session and starts its actor goroutine. mc may be nil
// when discovery is not used; dial may be nil when the session only
// discovers.
func New(cfg Config, mc MulticastTransport, dial DialFunc) *Session {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	s := &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		mc:     mc,
		dial:   dial,
		log:    cfg.Logger,
		obs:    cfg.Observer,
		inbox:  make(chan any, inboxSize),
		events: make(chan Event, cfg.EventBuffer),
		done:   newCloseOnce(),
		m:      newMachine(),
		now:    time.Now,
	}
	if s.log == nil {
		s.log = nopLogger{}
	}
	if s.obs == nil {
		s.obs = nopObserver{}
	}

	if mc != nil {
		mc.OnReceive(func(from netip.AddrPort, data []byte) {
			s.post(datagram{from: from, data: data})
		})
		mc.OnError(func(err error) {
			s.post(transportFault{err: err})
		})
	}

	s.wg.Add(1)
	go s.run()
	return s
}

// ID returns the session identifier used in logs and published payloads.
func (s *Session) ID() string { return s.id }

// Events returns the event stream. It is closed after Close.
func (s *Session) Events() <-chan Event { return s.events }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	var last time.Time
	if ts := s.lastActivity.Load(); ts != 0 {
		last = time.Unix(0, ts)
	}
	return Stats{
		State:         s.State(),
		ChannelID:     uint8(s.channel.Load()), //nolint:gosec // stored from a uint8
		FramesRx:      s.framesRx.Load(),
		FramesTx:      s.framesTx.Load(),
		AcksSent:      s.acksSent.Load(),
		DecodeErrors:  s.decodeErrors.Load(),
		EventsDropped: s.eventsDropped.Load(),
		LastActivity:  last,
	}
}

// Discover broadcasts a search request. Responses arrive as
// GatewayEvents and accumulate in Gateways until the next Discover from
// Idle. Discovery has no end of its own: the caller decides when enough
// responses have arrived.
func (s *Session) Discover(ctx context.Context) error {
	return s.call(ctx, func(reply chan error) any { return discoverCmd{reply: reply} })
}

// Gateways returns the gateways found so far, in arrival order.
func (s *Session) Gateways(ctx context.Context) ([]Gateway, error) {
	reply := make(chan []Gateway, 1)
	if err := s.send(ctx, gatewaysCmd{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case gws := <-reply:
		return gws, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done.Done():
		return nil, ErrClosed
	}
}

// Connect opens a tunnel to gw and waits for the connect response.
//
// Returns:
//   - nil once the session is Connected
//   - *StatusError when the gateway refuses; the session is Idle again
//   - ctx.Err() when ctx ends first; the attempt is abandoned
//
// There is no automatic retry.
func (s *Session) Connect(ctx context.Context, gw Gateway) error {
	return s.call(ctx, func(reply chan error) any { return connectCmd{gw: gw, reply: reply} })
}

// Disconnect closes the tunnel and waits for the disconnect response.
// The session returns to Idle whatever status the gateway reports; a
// non-zero status is returned as *StatusError.
func (s *Session) Disconnect(ctx context.Context) error {
	return s.call(ctx, func(reply chan error) any { return disconnectCmd{reply: reply} })
}

// Send writes a GroupValue_Write through the tunnel. The request is sent
// once with the next outbound sequence number and is not retransmitted.
func (s *Session) Send(ctx context.Context, ga knx.GroupAddress, dpt knx.DPT, data []byte) error {
	t := knx.NewWriteTelegram(ga, dpt, data)
	return s.sendFrame(ctx, t.Frame(knx.MessageLDataReq, knx.DefaultFlags()))
}

// SendRead writes a GroupValue_Read through the tunnel.
func (s *Session) SendRead(ctx context.Context, ga knx.GroupAddress) error {
	t := knx.NewReadTelegram(ga)
	return s.sendFrame(ctx, t.Frame(knx.MessageLDataReq, knx.DefaultFlags()))
}

func (s *Session) sendFrame(ctx context.Context, f knx.Frame) error {
	return s.call(ctx, func(reply chan error) any { return sendCmd{frame: f, reply: reply} })
}

// Close stops the actor, tears down any open tunnel without a
// disconnect handshake and closes the multicast transport. Close is
// idempotent.
func (s *Session) Close() error {
	s.done.Close()
	s.wg.Wait()
	return s.closeErr
}

// ─── Caller side ────────────────────────────────────────────────────

type (
	discoverCmd struct{ reply chan error }
	connectCmd  struct {
		gw    Gateway
		reply chan error
	}
	disconnectCmd struct{ reply chan error }
	sendCmd       struct {
		frame knx.Frame
		reply chan error
	}
	gatewaysCmd struct{ reply chan []Gateway }
	abandonCmd  struct{ reply chan error }

	// link is zero for multicast traffic, otherwise the generation of
	// the tunnel transport that delivered the message.
	datagram struct {
		from netip.AddrPort
		data []byte
		link uint64
	}
	transportFault struct {
		err  error
		link uint64
	}
)

// call sends a command built around a fresh reply channel and waits for
// the answer. When ctx ends first the actor is told to abandon the
// operation.
func (s *Session) call(ctx context.Context, build func(reply chan error) any) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, build(reply)); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		s.post(abandonCmd{reply: reply})
		return ctx.Err()
	case <-s.done.Done():
		return ErrClosed
	}
}

func (s *Session) send(ctx context.Context, cmd any) error {
	select {
	case <-s.done.Done():
		return ErrClosed
	default:
	}
	select {
	case s.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done.Done():
		return ErrClosed
	}
}

// post delivers a message from a transport callback. It blocks only
// until the session closes.
func (s *Session) post(msg any) {
	select {
	case s.inbox <- msg:
	case <-s.done.Done():
	}
}

// postTunnel is post for a tunnel transport. It also gives up once the
// link is stopped.
func (s *Session) postTunnel(l *tunnelLink, msg any) {
	select {
	case <-l.stop:
		return
	default:
	}
	select {
	case s.inbox <- msg:
	case <-l.stop:
	case <-s.done.Done():
	}
}

// stale reports whether msg came from a tunnel transport that has
// since been stopped.
func (s *Session) stale(link uint64) bool {
	return link != 0 && (s.link == nil || s.link.gen != link)
}

// ─── Actor ──────────────────────────────────────────────────────────

func (s *Session) run() {
	defer s.wg.Done()
	defer close(s.events)

	s.log.Debug("session started", "session_id", s.id)
	for {
		select {
		case <-s.done.Done():
			s.shutdown()
			return
		case msg := <-s.inbox:
			s.dispatch(msg)
		}
	}
}

func (s *Session) dispatch(msg any) {
	switch msg := msg.(type) {
	case datagram:
		if s.stale(msg.link) {
			s.log.Debug("dropping datagram from stopped tunnel", "session_id", s.id, "from", msg.from.String())
			return
		}
		s.onDatagram(msg)
	case transportFault:
		if s.stale(msg.link) {
			return
		}
		s.log.Warn("transport error", "session_id", s.id, "error", msg.err)
		s.emit(TransportErrorEvent{Time: s.now(), Err: fmt.Errorf("%w: %w", ErrTransport, msg.err)})
	case discoverCmd:
		msg.reply <- s.doDiscover()
	case connectCmd:
		s.doConnect(msg)
	case disconnectCmd:
		s.doDisconnect(msg)
	case sendCmd:
		msg.reply <- s.doSend(msg.frame)
	case gatewaysCmd:
		msg.reply <- append([]Gateway(nil), s.m.gateways...)
	case abandonCmd:
		s.doAbandon(msg.reply)
	}
}

func (s *Session) doDiscover() error {
	if s.mc == nil {
		return fmt.Errorf("%w: multicast", ErrNoTransport)
	}
	prev := s.m.state
	f, err := s.m.discover(s.cfg.Discovery)
	if err != nil {
		return err
	}
	if err := s.mc.SendBroadcast(knxnetip.Encode(f)); err != nil {
		s.m.state = prev
		return fmt.Errorf("%w: search request: %w", ErrTransport, err)
	}
	s.sent(f)
	s.transition(prev)
	s.log.Info("search request sent", "session_id", s.id, "discovery", s.cfg.Discovery.String())
	return nil
}

func (s *Session) doConnect(cmd connectCmd) {
	if s.dial == nil {
		cmd.reply <- fmt.Errorf("%w: point-to-point", ErrNoTransport)
		return
	}
	if s.m.state != StateIdle && s.m.state != StateDiscovering {
		cmd.reply <- fmt.Errorf("%w: connect while %s", ErrInvalidState, s.m.state)
		return
	}

	remote := cmd.gw.Endpoint()
	p2p, err := s.dial(remote)
	if err != nil {
		cmd.reply <- fmt.Errorf("%w: dial %s: %w", ErrTransport, remote, err)
		return
	}
	s.links++
	link := &tunnelLink{gen: s.links, stop: make(chan struct{})}
	p2p.OnReceiveMessage(func(data []byte, err error) {
		if err != nil {
			s.postTunnel(link, transportFault{err: err, link: link.gen})
			return
		}
		s.postTunnel(link, datagram{from: remote, data: data, link: link.gen})
	})
	release := func() {
		link.close()
		_ = p2p.Stop()
	}
	if err := p2p.Start(); err != nil {
		release()
		cmd.reply <- fmt.Errorf("%w: start %s: %w", ErrTransport, remote, err)
		return
	}

	s.local = s.localHPAI(p2p)
	prev := s.m.state
	f, err := s.m.connect(cmd.gw, s.local)
	if err != nil {
		release()
		cmd.reply <- err
		return
	}
	if err := p2p.Send(knxnetip.Encode(f)); err != nil {
		release()
		s.m.reset()
		cmd.reply <- fmt.Errorf("%w: connect request: %w", ErrTransport, err)
		return
	}
	s.p2p = p2p
	s.link = link
	s.pending = cmd.reply
	s.sent(f)
	s.transition(prev)
	s.log.Info("connect request sent", "session_id", s.id, "gateway", cmd.gw.Name(), "endpoint", remote.String())
}

func (s *Session) localHPAI(p2p PointToPoint) knxnetip.HPAI {
	local := s.cfg.Local
	if local.Addr.IsValid() && !local.Addr.IsUnspecified() {
		return local
	}
	if la, ok := p2p.(LocalAddresser); ok {
		if ap := la.LocalAddr(); ap.Addr().IsValid() {
			return knxnetip.NewHPAI(ap)
		}
	}
	return local
}

func (s *Session) doDisconnect(cmd disconnectCmd) {
	prev := s.m.state
	f, err := s.m.disconnect(s.local)
	if err != nil {
		cmd.reply <- err
		return
	}
	if err := s.p2p.Send(knxnetip.Encode(f)); err != nil {
		s.m.state = prev
		cmd.reply <- fmt.Errorf("%w: disconnect request: %w", ErrTransport, err)
		return
	}
	s.pending = cmd.reply
	s.sent(f)
	s.transition(prev)
	s.log.Info("disconnect request sent", "session_id", s.id, "channel", s.m.channel)
}

func (s *Session) doSend(cemi knx.Frame) error {
	f, err := s.m.tunnel(cemi)
	if err != nil {
		return err
	}
	if err := s.p2p.Send(knxnetip.Encode(f)); err != nil {
		return fmt.Errorf("%w: tunnelling request: %w", ErrTransport, err)
	}
	s.sent(f)
	return nil
}

// doAbandon drops a connect or disconnect whose caller gave up.
func (s *Session) doAbandon(reply chan error) {
	if s.pending != reply {
		return
	}
	s.pending = nil
	prev := s.m.state
	s.log.Warn("operation abandoned by caller", "session_id", s.id, "state", prev.String())
	s.stopTunnel()
	s.m.reset()
	s.transition(prev)
}

func (s *Session) onDatagram(d datagram) {
	s.lastActivity.Store(s.now().UnixNano())

	f, err := s.cfg.Decoder.Decode(d.data)
	if err != nil {
		if errors.Is(err, knxnetip.ErrUnknownServiceType) {
			s.log.Debug("ignoring unknown service", "session_id", s.id, "from", d.from.String(), "error", err)
			return
		}
		s.decodeErrors.Add(1)
		s.obs.DecodeFailed()
		s.log.Warn("decode failed", "session_id", s.id, "from", d.from.String(),
			"raw_hex", knx.ToHex(d.data), "error", err)
		s.emit(DecodeErrorEvent{Time: s.now(), From: d.from, Raw: d.data, Err: err})
		return
	}

	s.framesRx.Add(1)
	s.obs.FrameReceived(f.Service())

	prev := s.m.state
	st := s.m.handle(f, d.from, s.now())

	if st.reply != nil && s.p2p != nil {
		if err := s.p2p.Send(knxnetip.Encode(st.reply)); err != nil {
			s.log.Error("reply failed", "session_id", s.id, "service", st.reply.Service().String(), "error", err)
		} else {
			s.sent(st.reply)
			if _, ok := st.reply.(knxnetip.TunnellingAckFrame); ok {
				s.acksSent.Add(1)
			}
		}
	}
	if st.note != "" {
		s.log.Debug(st.note, "session_id", s.id, "service", f.Service().String())
	}
	if st.closed {
		s.stopTunnel()
	}
	s.transition(prev)
	for _, e := range st.events {
		s.emit(e)
	}
	if st.settled && s.pending != nil {
		s.pending <- st.result
		s.pending = nil
	}
}

func (s *Session) stopTunnel() {
	if s.p2p == nil {
		return
	}
	// Release the reader first: Stop waits for it and only this
	// goroutine drains the inbox.
	s.link.close()
	if err := s.p2p.Stop(); err != nil {
		s.log.Warn("stopping tunnel transport failed", "session_id", s.id, "error", err)
	}
	s.p2p = nil
	s.link = nil
}

// transition publishes a state change made by the machine since prev.
func (s *Session) transition(prev State) {
	cur := s.m.state
	s.channel.Store(uint32(s.m.channel))
	if cur == prev {
		return
	}
	s.state.Store(int32(cur))
	s.obs.StateChanged(cur)
	s.log.Info("session state changed", "session_id", s.id, "from", prev.String(), "to", cur.String(),
		"channel", s.m.channel)
	s.emit(StateEvent{Time: s.now(), From: prev, To: cur})
}

func (s *Session) sent(f knxnetip.Frame) {
	s.framesTx.Add(1)
	s.obs.FrameSent(f.Service())
}

// emit queues an event without blocking the actor.
func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		s.eventsDropped.Add(1)
		s.obs.EventDropped()
	}
}

func (s *Session) shutdown() {
	if s.pending != nil {
		s.pending <- ErrClosed
		s.pending = nil
	}
	s.stopTunnel()
	if s.mc != nil {
		if err := s.mc.Close(); err != nil {
			s.closeErr = fmt.Errorf("%w: close multicast: %w", ErrTransport, err)
		}
	}
	s.log.Debug("session stopped", "session_id", s.id)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type nopObserver struct{}

func (nopObserver) FrameReceived(knxnetip.ServiceType) {}
func (nopObserver) FrameSent(knxnetip.ServiceType)     {}
func (nopObserver) DecodeFailed()                      {}
func (nopObserver) EventDropped()                      {}
func (nopObserver) StateChanged(State)                 {}
