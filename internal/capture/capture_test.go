package capture

import (
	"bytes"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
)

var (
	client  = netip.MustParseAddrPort("192.168.1.50:40000")
	gateway = netip.MustParseAddrPort("192.168.1.10:3671")
	epoch   = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

type testPacket struct {
	src, dst netip.AddrPort
	tcp      bool
	payload  []byte
}

// serialize builds an Ethernet/IPv4/UDP (or TCP) frame.
func serialize(t *testing.T, p testPacket) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    p.src.Addr().AsSlice(),
		DstIP:    p.dst.Addr().AsSlice(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	var err error
	if p.tcp {
		ip.Protocol = layers.IPProtocolTCP
		tcp := &layers.TCP{SrcPort: layers.TCPPort(p.src.Port()), DstPort: layers.TCPPort(p.dst.Port()), ACK: true, PSH: true}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			t.Fatalf("SetNetworkLayerForChecksum() error = %v", err)
		}
		err = gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(p.payload))
	} else {
		udp := &layers.UDP{SrcPort: layers.UDPPort(p.src.Port()), DstPort: layers.UDPPort(p.dst.Port())}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			t.Fatalf("SetNetworkLayerForChecksum() error = %v", err)
		}
		err = gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(p.payload))
	}
	if err != nil {
		t.Fatalf("SerializeLayers() error = %v", err)
	}
	return buf.Bytes()
}

func writePCAP(t *testing.T, packets []testPacket) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	w := pcapgo.NewWriter(&out)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("WriteFileHeader() error = %v", err)
	}
	for i, p := range packets {
		data := serialize(t, p)
		ci := gopacket.CaptureInfo{Timestamp: epoch.Add(time.Duration(i) * time.Second), CaptureLength: len(data), Length: len(data)}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("WritePacket() error = %v", err)
		}
	}
	return &out
}

func writePCAPNG(t *testing.T, packets []testPacket) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	w, err := pcapgo.NewNgWriter(&out, layers.LinkTypeEthernet)
	if err != nil {
		t.Fatalf("NewNgWriter() error = %v", err)
	}
	for i, p := range packets {
		data := serialize(t, p)
		ci := gopacket.CaptureInfo{Timestamp: epoch.Add(time.Duration(i) * time.Second), CaptureLength: len(data), Length: len(data)}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("WritePacket() error = %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	return &out
}

func sampleTraffic() []testPacket {
	search := knxnetip.Encode(knxnetip.SearchRequestFrame{Discovery: knxnetip.NewHPAI(client)})
	disconnect := knxnetip.Encode(knxnetip.DisconnectRequestFrame{ChannelID: 3, Control: knxnetip.NewHPAI(client)})

	return []testPacket{
		{src: client, dst: gateway, payload: search},
		{src: client, dst: gateway, tcp: true, payload: search},
		{src: client, dst: netip.MustParseAddrPort("192.168.1.10:5353"), payload: search},
		{src: gateway, dst: client, payload: []byte{0x06, 0x10, 0x01, 0x99, 0x00, 0x06}},
		{src: gateway, dst: client, payload: []byte{0x06, 0x10, 0x02, 0x09, 0x00, 0x0A, 0x01, 0x00, 0x08, 0x01}},
		{src: client, dst: gateway, payload: disconnect},
	}
}

// ─── Datagrams ────────────────────────────────────────────────────

func TestDatagrams(t *testing.T) {
	var got []Datagram
	err := Datagrams(writePCAP(t, sampleTraffic()), Options{}, func(d Datagram) error {
		got = append(got, d)
		return nil
	})
	if err != nil {
		t.Fatalf("Datagrams() error = %v", err)
	}

	// TCP and the other UDP port are skipped.
	if len(got) != 4 {
		t.Fatalf("Datagrams() yielded %d, want 4", len(got))
	}

	first := got[0]
	if first.Index != 1 || first.Src != client || first.Dst != gateway {
		t.Errorf("first = #%d %v -> %v, want #1 %v -> %v", first.Index, first.Src, first.Dst, client, gateway)
	}
	if !first.Time.Equal(epoch) {
		t.Errorf("first.Time = %v, want %v", first.Time, epoch)
	}
	if got[1].Index != 4 {
		t.Errorf("second Index = %d, want 4", got[1].Index)
	}
}

func TestDatagramsStopsOnError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := Datagrams(writePCAP(t, sampleTraffic()), Options{}, func(Datagram) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("Datagrams() = %v after %d calls, want stop after 1", err, calls)
	}
}

func TestDatagramsOtherPort(t *testing.T) {
	n := 0
	err := Datagrams(writePCAP(t, sampleTraffic()), Options{Port: 5353}, func(Datagram) error {
		n++
		return nil
	})
	if err != nil || n != 1 {
		t.Errorf("Datagrams(port 5353) = %d, %v; want 1, nil", n, err)
	}
}

func TestBadFormat(t *testing.T) {
	tests := map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not a capture file"),
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			err := Datagrams(bytes.NewReader(in), Options{}, func(Datagram) error { return nil })
			if !errors.Is(err, ErrFormat) {
				t.Errorf("Datagrams() error = %v, want ErrFormat", err)
			}
		})
	}
}

// ─── Decode ───────────────────────────────────────────────────────

func TestDecode(t *testing.T) {
	var records []Record
	err := Decode(writePCAP(t, sampleTraffic()), Options{}, func(r Record) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	// The unknown service is dropped.
	if len(records) != 3 {
		t.Fatalf("Decode() yielded %d records, want 3", len(records))
	}
	if records[0].Err != nil || records[0].Frame.Service() != knxnetip.SearchRequest {
		t.Errorf("record 0 = %v, %v; want SEARCH_REQUEST", records[0].Frame, records[0].Err)
	}
	if !errors.Is(records[1].Err, knxnetip.ErrMalformedFrame) || records[1].Frame != nil {
		t.Errorf("record 1 err = %v, want ErrMalformedFrame", records[1].Err)
	}
	dr, ok := records[2].Frame.(knxnetip.DisconnectRequestFrame)
	if !ok || dr.ChannelID != 3 {
		t.Errorf("record 2 = %#v, want DisconnectRequest on channel 3", records[2].Frame)
	}
}

func TestSummarize(t *testing.T) {
	for name, buf := range map[string]*bytes.Buffer{
		"pcap":   writePCAP(t, sampleTraffic()),
		"pcapng": writePCAPNG(t, sampleTraffic()),
	} {
		t.Run(name, func(t *testing.T) {
			s, err := Summarize(buf, Options{})
			if err != nil {
				t.Fatalf("Summarize() error = %v", err)
			}
			if s.Datagrams != 3 || s.DecodeErrors != 1 {
				t.Errorf("Datagrams=%d DecodeErrors=%d, want 3 and 1", s.Datagrams, s.DecodeErrors)
			}
			if s.ByService[knxnetip.SearchRequest] != 1 || s.ByService[knxnetip.DisconnectRequest] != 1 {
				t.Errorf("ByService = %v", s.ByService)
			}
			if !s.First.Equal(epoch) || !s.Last.Equal(epoch.Add(5*time.Second)) {
				t.Errorf("span = %v..%v", s.First, s.Last)
			}
		})
	}
}
