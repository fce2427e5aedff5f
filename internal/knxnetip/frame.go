package knxnetip

import (
	"fmt"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
)

// Frame is one KNXnet/IP message body. The set of implementations is
// closed: each concrete type reports a fixed service type, except
// AnyBody which records the service it was decoded or built with.
type Frame interface {
	Service() ServiceType
	appendBody(b []byte) []byte
}

// Encode serialises f with its header. The total length is always
// HeaderSize plus the body length.
func Encode(f Frame) []byte {
	body := f.appendBody(make([]byte, 0, 64))                                      //nolint:mnd // typical body size
	h := Header{Service: f.Service(), TotalLength: uint16(HeaderSize + len(body))} //nolint:gosec // UDP datagram bound
	out := h.AppendTo(make([]byte, 0, HeaderSize+len(body)))
	return append(out, body...)
}

// Decoder turns datagrams into frames. The embedded CEMI decoder carries
// the immutable datapoint and APCI tables used for tunnelling requests.
// The zero value is ready to use.
type Decoder struct {
	CEMI knx.Decoder
}

// Decode parses a datagram with a zero Decoder.
func Decode(raw []byte) (Frame, error) {
	return Decoder{}.Decode(raw)
}

// Decode parses a datagram.
//
// Returns:
//   - ErrMalformedFrame (possibly wrapping knx.ErrTruncated) for
//     structural violations
//   - ErrUnknownServiceType for a valid header with an unlisted service;
//     callers normally ignore these datagrams
//
// Recognised services without a dedicated body type decode to AnyBody.
func (d Decoder) Decode(raw []byte) (Frame, error) {
	h, err := DecodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if !h.Service.IsKnown() {
		return nil, fmt.Errorf("%w: 0x%04X", ErrUnknownServiceType, uint16(h.Service))
	}

	c := knx.NewCursor(raw[HeaderSize:h.TotalLength])
	f, err := d.decodeBody(h.Service, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.Service, err)
	}
	return f, nil
}

func (d Decoder) decodeBody(svc ServiceType, c *knx.Cursor) (Frame, error) {
	switch svc {
	case SearchRequest:
		return decodeSearchRequest(c)
	case SearchResponse:
		return decodeSearchResponse(c)
	case DescriptionRequest:
		return decodeDescriptionRequest(c)
	case DescriptionResponse:
		return decodeDescriptionResponse(c)
	case ConnectRequest:
		return decodeConnectRequest(c)
	case ConnectResponse:
		return decodeConnectResponse(c)
	case ConnectionStateRequest:
		return decodeConnectionStateRequest(c)
	case ConnectionStateResponse:
		return decodeConnectionStateResponse(c)
	case DisconnectRequest:
		return decodeDisconnectRequest(c)
	case DisconnectResponse:
		return decodeDisconnectResponse(c)
	case TunnellingRequest:
		return d.decodeTunnellingRequest(c)
	case TunnellingAck:
		return decodeTunnellingAck(c)
	default:
		return AnyBody{service: svc, Body: append([]byte(nil), c.Rest()...)}, nil
	}
}

// AnyBody passes through a recognised service without a dedicated body
// type. Security services always decode to AnyBody.
type AnyBody struct {
	service ServiceType
	Body    []byte
}

// NewAnyBody wraps body for service svc.
func NewAnyBody(svc ServiceType, body []byte) AnyBody {
	return AnyBody{service: svc, Body: body}
}

// Service implements Frame.
func (a AnyBody) Service() ServiceType { return a.service }

func (a AnyBody) appendBody(b []byte) []byte { return append(b, a.Body...) }

// takeHPAI reads one 8-byte HPAI structure.
func takeHPAI(c *knx.Cursor) (HPAI, error) {
	raw, err := c.TakeStructure()
	if err != nil {
		return HPAI{}, fmt.Errorf("%w: HPAI: %w", ErrMalformedFrame, err)
	}
	return DecodeHPAI(raw)
}

// wrapCursor tags cursor errors as malformed frames.
func wrapCursor(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformedFrame, what, err)
}
