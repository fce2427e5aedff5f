package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
)

// DefaultPort is the KNXnet/IP UDP port.
const DefaultPort = 3671

// pcapngMagic is the section header block type of a pcapng file.
var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

// ErrFormat is returned when the input is neither pcap nor pcapng.
var ErrFormat = errors.New("capture: unrecognised file format")

// Datagram is one UDP payload lifted from a capture.
type Datagram struct {
	Index   int
	Time    time.Time
	Src     netip.AddrPort
	Dst     netip.AddrPort
	Payload []byte
}

// Record is a datagram with its decode result. Frame is nil when Err is
// set.
type Record struct {
	Datagram
	Frame knxnetip.Frame
	Err   error
}

// Options filters and decodes a capture.
type Options struct {
	// Port matches either UDP port. Zero means DefaultPort.
	Port uint16

	// Decoder decodes payloads; the zero value is used when unset.
	Decoder knxnetip.Decoder
}

func (o Options) port() layers.UDPPort {
	if o.Port == 0 {
		return DefaultPort
	}
	return layers.UDPPort(o.Port)
}

type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

func newReader(r io.Reader) (packetReader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(pcapngMagic))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		return ng, nil
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return pr, nil
}

// Datagrams calls fn for each matching UDP payload in capture order.
// Packets that are not IPv4/UDP on the port are skipped. Returning an
// error from fn stops the walk and returns that error.
func Datagrams(r io.Reader, opts Options, fn func(Datagram) error) error {
	pr, err := newReader(r)
	if err != nil {
		return err
	}

	port := opts.port()
	src := gopacket.NewPacketSource(pr, pr.LinkType())
	src.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	index := 0
	for {
		packet, err := src.NextPacket()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading packet %d: %w", index+1, err)
		}
		index++

		d, ok := extract(packet, port)
		if !ok {
			continue
		}
		d.Index = index
		if err := fn(d); err != nil {
			return err
		}
	}
}

func extract(packet gopacket.Packet, port layers.UDPPort) (Datagram, bool) {
	ipLayer, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		return Datagram{}, false
	}
	udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !ok || (udp.SrcPort != port && udp.DstPort != port) || len(udp.Payload) == 0 {
		return Datagram{}, false
	}

	srcIP, _ := netip.AddrFromSlice(ipLayer.SrcIP.To4())
	dstIP, _ := netip.AddrFromSlice(ipLayer.DstIP.To4())

	return Datagram{
		Time:    packet.Metadata().Timestamp,
		Src:     netip.AddrPortFrom(srcIP, uint16(udp.SrcPort)),
		Dst:     netip.AddrPortFrom(dstIP, uint16(udp.DstPort)),
		Payload: bytes.Clone(udp.Payload),
	}, true
}

// Decode walks the capture and decodes each datagram. Datagrams with an
// unknown service type are skipped, matching the live session.
func Decode(r io.Reader, opts Options, fn func(Record) error) error {
	return Datagrams(r, opts, func(d Datagram) error {
		f, err := opts.Decoder.Decode(d.Payload)
		if errors.Is(err, knxnetip.ErrUnknownServiceType) {
			return nil
		}
		return fn(Record{Datagram: d, Frame: f, Err: err})
	})
}

// Summary counts what a capture contains.
type Summary struct {
	Datagrams    int
	DecodeErrors int
	ByService    map[knxnetip.ServiceType]int
	First, Last  time.Time
}

// Summarize decodes the whole capture and tallies it.
func Summarize(r io.Reader, opts Options) (Summary, error) {
	s := Summary{ByService: make(map[knxnetip.ServiceType]int)}
	err := Decode(r, opts, func(rec Record) error {
		s.Datagrams++
		if s.First.IsZero() {
			s.First = rec.Time
		}
		s.Last = rec.Time
		if rec.Err != nil {
			s.DecodeErrors++
			return nil
		}
		s.ByService[rec.Frame.Service()]++
		return nil
	})
	return s, err
}
