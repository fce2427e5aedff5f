package tunnel

import (
	"net/netip"
	"time"

	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
)

// Gateway is one answer to a search request.
type Gateway struct {
	// Control is the endpoint the gateway advertised.
	Control knxnetip.HPAI

	// From is the address the response arrived from.
	From netip.AddrPort

	Info     knxnetip.DeviceInfo
	HasInfo  bool
	Families knxnetip.SupportedServiceFamilies

	SeenAt time.Time
}

// GatewayFromResponse builds a Gateway from a decoded search response.
func GatewayFromResponse(resp knxnetip.SearchResponseFrame, from netip.AddrPort, seen time.Time) Gateway {
	gw := Gateway{Control: resp.Control, From: from, SeenAt: seen}
	gw.Info, gw.HasInfo = resp.DIBs.DeviceInfo()
	gw.Families, _ = resp.DIBs.Families()
	return gw
}

// Endpoint returns where connect requests are sent. Gateways behind NAT
// advertise 0.0.0.0:0; the sender address is used in that case.
func (g Gateway) Endpoint() netip.AddrPort {
	if g.Control.IsZero() || g.Control.Addr.IsUnspecified() || g.Control.Port == 0 {
		return g.From
	}
	return g.Control.AddrPort()
}

// Name returns the friendly name, or the endpoint when the gateway sent
// no device information.
func (g Gateway) Name() string {
	if g.HasInfo && g.Info.Name != "" {
		return g.Info.Name
	}
	return g.Endpoint().String()
}

// SupportsTunnelling reports whether the gateway lists the tunnelling
// service family. Gateways that omit the families block are assumed to
// support it.
func (g Gateway) SupportsTunnelling() bool {
	if len(g.Families.Families) == 0 {
		return true
	}
	_, ok := g.Families.Version(knxnetip.FamilyTunnelling)
	return ok
}
