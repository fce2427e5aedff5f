package knxnetip

import (
	"fmt"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
)

// connHeaderSize is the length of the tunnelling connection header.
const connHeaderSize = 4

// ─── Discovery ──────────────────────────────────────────────────────

// SearchRequestFrame asks gateways to answer to the discovery endpoint.
type SearchRequestFrame struct {
	Discovery HPAI
}

// Service implements Frame.
func (SearchRequestFrame) Service() ServiceType { return SearchRequest }

func (f SearchRequestFrame) appendBody(b []byte) []byte { return f.Discovery.AppendTo(b) }

func decodeSearchRequest(c *knx.Cursor) (Frame, error) {
	h, err := takeHPAI(c)
	if err != nil {
		return nil, err
	}
	return SearchRequestFrame{Discovery: h}, nil
}

// SearchResponseFrame is a gateway's answer to a search.
type SearchResponseFrame struct {
	Control HPAI
	DIBs    DIBList
}

// Service implements Frame.
func (SearchResponseFrame) Service() ServiceType { return SearchResponse }

func (f SearchResponseFrame) appendBody(b []byte) []byte {
	return f.DIBs.AppendTo(f.Control.AppendTo(b))
}

func decodeSearchResponse(c *knx.Cursor) (Frame, error) {
	h, err := takeHPAI(c)
	if err != nil {
		return nil, err
	}
	dibs, err := DecodeDIBs(c.Rest())
	if err != nil {
		return nil, err
	}
	return SearchResponseFrame{Control: h, DIBs: dibs}, nil
}

// DescriptionRequestFrame asks one gateway for its description.
type DescriptionRequestFrame struct {
	Control HPAI
}

// Service implements Frame.
func (DescriptionRequestFrame) Service() ServiceType { return DescriptionRequest }

func (f DescriptionRequestFrame) appendBody(b []byte) []byte { return f.Control.AppendTo(b) }

func decodeDescriptionRequest(c *knx.Cursor) (Frame, error) {
	h, err := takeHPAI(c)
	if err != nil {
		return nil, err
	}
	return DescriptionRequestFrame{Control: h}, nil
}

// DescriptionResponseFrame carries a gateway's description blocks.
type DescriptionResponseFrame struct {
	DIBs DIBList
}

// Service implements Frame.
func (DescriptionResponseFrame) Service() ServiceType { return DescriptionResponse }

func (f DescriptionResponseFrame) appendBody(b []byte) []byte { return f.DIBs.AppendTo(b) }

func decodeDescriptionResponse(c *knx.Cursor) (Frame, error) {
	dibs, err := DecodeDIBs(c.Rest())
	if err != nil {
		return nil, err
	}
	return DescriptionResponseFrame{DIBs: dibs}, nil
}

// ─── Connection management ─────────────────────────────────────────

// ConnectRequestFrame opens a connection.
type ConnectRequestFrame struct {
	Control HPAI
	Data    HPAI
	CRI     CRI
}

// Service implements Frame.
func (ConnectRequestFrame) Service() ServiceType { return ConnectRequest }

func (f ConnectRequestFrame) appendBody(b []byte) []byte {
	return f.CRI.AppendTo(f.Data.AppendTo(f.Control.AppendTo(b)))
}

func decodeConnectRequest(c *knx.Cursor) (Frame, error) {
	control, err := takeHPAI(c)
	if err != nil {
		return nil, err
	}
	data, err := takeHPAI(c)
	if err != nil {
		return nil, err
	}
	raw, err := c.TakeStructure()
	if err != nil {
		return nil, wrapCursor("CRI", err)
	}
	cri, err := decodeCRI(raw)
	if err != nil {
		return nil, err
	}
	return ConnectRequestFrame{Control: control, Data: data, CRI: cri}, nil
}

// ConnectResponseFrame answers a ConnectRequest. Gateways omit the data
// endpoint and CRD when refusing a connection; CRD.ConnectionType is
// zero in that case.
type ConnectResponseFrame struct {
	ChannelID uint8
	Status    Status
	Data      HPAI
	CRD       CRD
}

// Service implements Frame.
func (ConnectResponseFrame) Service() ServiceType { return ConnectResponse }

func (f ConnectResponseFrame) appendBody(b []byte) []byte {
	b = append(b, f.ChannelID, byte(f.Status))
	if f.CRD.ConnectionType == 0 {
		return b
	}
	return f.CRD.AppendTo(f.Data.AppendTo(b))
}

func decodeConnectResponse(c *knx.Cursor) (Frame, error) {
	head, err := c.Take(2) //nolint:mnd // channel + status
	if err != nil {
		return nil, wrapCursor("channel", err)
	}
	f := ConnectResponseFrame{ChannelID: head[0], Status: Status(head[1])}
	if c.Len() == 0 {
		return f, nil
	}
	if f.Data, err = takeHPAI(c); err != nil {
		return nil, err
	}
	raw, err := c.TakeStructure()
	if err != nil {
		return nil, wrapCursor("CRD", err)
	}
	if f.CRD, err = decodeCRD(raw); err != nil {
		return nil, err
	}
	return f, nil
}

// ConnectionStateRequestFrame is the keep-alive probe.
type ConnectionStateRequestFrame struct {
	ChannelID uint8
	Control   HPAI
}

// Service implements Frame.
func (ConnectionStateRequestFrame) Service() ServiceType { return ConnectionStateRequest }

func (f ConnectionStateRequestFrame) appendBody(b []byte) []byte {
	return f.Control.AppendTo(append(b, f.ChannelID, 0x00))
}

func decodeConnectionStateRequest(c *knx.Cursor) (Frame, error) {
	ch, h, err := decodeChannelHPAI(c)
	if err != nil {
		return nil, err
	}
	return ConnectionStateRequestFrame{ChannelID: ch, Control: h}, nil
}

// ConnectionStateResponseFrame answers a keep-alive probe.
type ConnectionStateResponseFrame struct {
	ChannelID uint8
	Status    Status
}

// Service implements Frame.
func (ConnectionStateResponseFrame) Service() ServiceType { return ConnectionStateResponse }

func (f ConnectionStateResponseFrame) appendBody(b []byte) []byte {
	return append(b, f.ChannelID, byte(f.Status))
}

func decodeConnectionStateResponse(c *knx.Cursor) (Frame, error) {
	ch, st, err := decodeChannelStatus(c)
	if err != nil {
		return nil, err
	}
	return ConnectionStateResponseFrame{ChannelID: ch, Status: st}, nil
}

// DisconnectRequestFrame closes a connection.
type DisconnectRequestFrame struct {
	ChannelID uint8
	Control   HPAI
}

// Service implements Frame.
func (DisconnectRequestFrame) Service() ServiceType { return DisconnectRequest }

func (f DisconnectRequestFrame) appendBody(b []byte) []byte {
	return f.Control.AppendTo(append(b, f.ChannelID, 0x00))
}

func decodeDisconnectRequest(c *knx.Cursor) (Frame, error) {
	ch, h, err := decodeChannelHPAI(c)
	if err != nil {
		return nil, err
	}
	return DisconnectRequestFrame{ChannelID: ch, Control: h}, nil
}

// DisconnectResponseFrame confirms a disconnect.
type DisconnectResponseFrame struct {
	ChannelID uint8
	Status    Status
}

// Service implements Frame.
func (DisconnectResponseFrame) Service() ServiceType { return DisconnectResponse }

func (f DisconnectResponseFrame) appendBody(b []byte) []byte {
	return append(b, f.ChannelID, byte(f.Status))
}

func decodeDisconnectResponse(c *knx.Cursor) (Frame, error) {
	ch, st, err := decodeChannelStatus(c)
	if err != nil {
		return nil, err
	}
	return DisconnectResponseFrame{ChannelID: ch, Status: st}, nil
}

func decodeChannelHPAI(c *knx.Cursor) (uint8, HPAI, error) {
	head, err := c.Take(2) //nolint:mnd // channel + reserved
	if err != nil {
		return 0, HPAI{}, wrapCursor("channel", err)
	}
	h, err := takeHPAI(c)
	if err != nil {
		return 0, HPAI{}, err
	}
	return head[0], h, nil
}

func decodeChannelStatus(c *knx.Cursor) (uint8, Status, error) {
	head, err := c.Take(2) //nolint:mnd // channel + status
	if err != nil {
		return 0, 0, wrapCursor("channel", err)
	}
	return head[0], Status(head[1]), nil
}

// ─── Tunnelling ─────────────────────────────────────────────────────

// TunnellingRequestFrame carries one CEMI frame over a tunnel.
type TunnellingRequestFrame struct {
	ChannelID uint8
	Sequence  uint8

	// CEMI is the raw embedded frame. It is kept even when it is not an
	// L_Data frame, because every request must still be acknowledged.
	CEMI []byte

	// Frame is the decoded CEMI, nil when CEMI did not decode.
	Frame *knx.Frame
}

// NewTunnellingRequest wraps a CEMI frame for the given channel.
func NewTunnellingRequest(channel, seq uint8, f knx.Frame) TunnellingRequestFrame {
	return TunnellingRequestFrame{ChannelID: channel, Sequence: seq, CEMI: f.Encode(), Frame: &f}
}

// Service implements Frame.
func (TunnellingRequestFrame) Service() ServiceType { return TunnellingRequest }

func (f TunnellingRequestFrame) appendBody(b []byte) []byte {
	b = append(b, connHeaderSize, f.ChannelID, f.Sequence, 0x00)
	return append(b, f.CEMI...)
}

// DecodeCEMI decodes the embedded frame with dec.
func (f TunnellingRequestFrame) DecodeCEMI(dec knx.Decoder) (knx.Frame, error) {
	return dec.DecodeCEMI(f.CEMI)
}

func (d Decoder) decodeTunnellingRequest(c *knx.Cursor) (Frame, error) {
	ch, seq, _, err := decodeConnHeader(c)
	if err != nil {
		return nil, err
	}
	f := TunnellingRequestFrame{ChannelID: ch, Sequence: seq, CEMI: append([]byte(nil), c.Rest()...)}
	if cemi, err := d.CEMI.DecodeCEMI(f.CEMI); err == nil {
		f.Frame = &cemi
	}
	return f, nil
}

// TunnellingAckFrame acknowledges one TunnellingRequest.
type TunnellingAckFrame struct {
	ChannelID uint8
	Sequence  uint8
	Status    Status
}

// Service implements Frame.
func (TunnellingAckFrame) Service() ServiceType { return TunnellingAck }

func (f TunnellingAckFrame) appendBody(b []byte) []byte {
	return append(b, connHeaderSize, f.ChannelID, f.Sequence, byte(f.Status))
}

func decodeTunnellingAck(c *knx.Cursor) (Frame, error) {
	ch, seq, st, err := decodeConnHeader(c)
	if err != nil {
		return nil, err
	}
	return TunnellingAckFrame{ChannelID: ch, Sequence: seq, Status: st}, nil
}

// decodeConnHeader reads the 4-byte connection header shared by
// tunnelling requests and acknowledgements.
func decodeConnHeader(c *knx.Cursor) (channel, seq uint8, status Status, err error) {
	raw, err := c.TakeStructure()
	if err != nil {
		return 0, 0, 0, wrapCursor("connection header", err)
	}
	if len(raw) != connHeaderSize {
		return 0, 0, 0, fmt.Errorf("%w: connection header of %d bytes, want 4", ErrMalformedFrame, len(raw))
	}
	return raw[1], raw[2], Status(raw[3]), nil
}
