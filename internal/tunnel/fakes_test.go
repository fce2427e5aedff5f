package tunnel

import (
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
)

const waitTimeout = 2 * time.Second

// fakeMulticast records broadcasts and lets tests inject datagrams.
type fakeMulticast struct {
	mu      sync.Mutex
	sent    [][]byte
	onRecv  func(netip.AddrPort, []byte)
	onErr   func(error)
	closed  bool
	sendErr error
}

func (f *fakeMulticast) SendBroadcast(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), b...))
	return nil
}

func (f *fakeMulticast) OnReceive(fn func(netip.AddrPort, []byte)) { f.onRecv = fn }
func (f *fakeMulticast) OnError(fn func(error))                    { f.onErr = fn }

func (f *fakeMulticast) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeMulticast) deliver(from string, frame knxnetip.Frame) {
	f.onRecv(netip.MustParseAddrPort(from), knxnetip.Encode(frame))
}

func (f *fakeMulticast) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

// fakeTunnel is a point-to-point transport that hands every sent
// datagram to the test through a channel.
type fakeTunnel struct {
	mu       sync.Mutex
	onMsg    func([]byte, error)
	started  bool
	stopped  bool
	sent     chan []byte
	sendErr  error
	startErr error
	local    netip.AddrPort
}

func newFakeTunnel() *fakeTunnel {
	return &fakeTunnel{sent: make(chan []byte, 32)}
}

func (f *fakeTunnel) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeTunnel) Send(b []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent <- append([]byte(nil), b...)
	return nil
}

func (f *fakeTunnel) OnReceiveMessage(fn func([]byte, error)) { f.onMsg = fn }

func (f *fakeTunnel) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeTunnel) LocalAddr() netip.AddrPort { return f.local }

func (f *fakeTunnel) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakeTunnel) deliver(frame knxnetip.Frame) {
	f.onMsg(knxnetip.Encode(frame), nil)
}

func (f *fakeTunnel) deliverRaw(raw []byte) {
	f.onMsg(raw, nil)
}

// next waits for the next outbound datagram and decodes it.
func (f *fakeTunnel) next(t *testing.T) knxnetip.Frame {
	t.Helper()
	select {
	case raw := <-f.sent:
		fr, err := knxnetip.Decode(raw)
		if err != nil {
			t.Fatalf("outbound datagram %X does not decode: %v", raw, err)
		}
		return fr
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for outbound datagram")
		return nil
	}
}

func (f *fakeTunnel) pending() int { return len(f.sent) }

func dialTo(ft *fakeTunnel) (DialFunc, *[]netip.AddrPort) {
	var dialed []netip.AddrPort
	return func(remote netip.AddrPort) (PointToPoint, error) {
		dialed = append(dialed, remote)
		return ft, nil
	}, &dialed
}

func failingDial(err error) DialFunc {
	return func(netip.AddrPort) (PointToPoint, error) { return nil, err }
}

var errSocket = errors.New("socket gone")

// recordingObserver counts observer callbacks.
type recordingObserver struct {
	mu       sync.Mutex
	received map[knxnetip.ServiceType]int
	sent     map[knxnetip.ServiceType]int
	failed   int
	dropped  int
	states   []State
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		received: make(map[knxnetip.ServiceType]int),
		sent:     make(map[knxnetip.ServiceType]int),
	}
}

func (o *recordingObserver) FrameReceived(svc knxnetip.ServiceType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.received[svc]++
}

func (o *recordingObserver) FrameSent(svc knxnetip.ServiceType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent[svc]++
}

func (o *recordingObserver) DecodeFailed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed++
}

func (o *recordingObserver) EventDropped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped++
}

func (o *recordingObserver) StateChanged(st State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, st)
}
