package knxnetip

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
)

func TestDecodeHeader(t *testing.T) {
	h, err := DecodeHeader([]byte{0x06, 0x10, 0x02, 0x01, 0x00, 0x0E, 0, 0, 0, 0, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("DecodeHeader() error = %v", err)
	}
	if h.Service != SearchRequest || h.TotalLength != 14 || h.BodyLength() != 8 {
		t.Errorf("DecodeHeader() = %+v", h)
	}
}

func TestDecodeHeaderRejects(t *testing.T) {
	tests := []struct {
		name          string
		raw           []byte
		wantTruncated bool
	}{
		{"header length 5", []byte{0x05, 0x10, 0x02, 0x01, 0x00, 0x06}, false},
		{"protocol version 0x20", []byte{0x06, 0x20, 0x02, 0x01, 0x00, 0x06}, false},
		{"total length below header", []byte{0x06, 0x10, 0x02, 0x01, 0x00, 0x05}, false},
		{"total length beyond datagram", []byte{0x06, 0x10, 0x02, 0x01, 0x00, 0x0E}, true},
		{"shorter than header", []byte{0x06, 0x10, 0x02}, true},
		{"empty", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHeader(tt.raw)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("DecodeHeader() error = %v, want ErrMalformedFrame", err)
			}
			if tt.wantTruncated && !errors.Is(err, knx.ErrTruncated) {
				t.Errorf("DecodeHeader() error = %v, want wrapped ErrTruncated", err)
			}
			if _, err := Decode(tt.raw); !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("Decode() error = %v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestHeaderAppendTo(t *testing.T) {
	got := Header{Service: TunnellingAck, TotalLength: 10}.AppendTo(nil)
	want := []byte{0x06, 0x10, 0x04, 0x21, 0x00, 0x0A}
	if string(got) != string(want) {
		t.Errorf("AppendTo() = %X, want %X", got, want)
	}
}

func TestServiceAndStatusNames(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{SearchResponse.String(), "SEARCH_RESPONSE"},
		{TunnellingRequest.String(), "TUNNELLING_REQUEST"},
		{SecureWrapper.String(), "SECURE_WRAPPER"},
		{ServiceType(0x0199).String(), "SERVICE_0x0199"},
		{StatusNoMoreConnections.String(), "E_NO_MORE_CONNECTIONS"},
		{Status(0x77).String(), "E_NO_ERROR(0x77)"},
		{FamilyTunnelling.String(), "TUNNELLING"},
		{TunnelConnection.String(), "TUNNEL_CONNECTION"},
		{TunnelLinkLayer.String(), "TUNNEL_LINKLAYER"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
	if Status(0x77).IsKnown() || !StatusTunnellingLayer.IsKnown() {
		t.Error("Status.IsKnown() mismatch")
	}
}
