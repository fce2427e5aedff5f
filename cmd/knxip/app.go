package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/nerrad567/gray-logic-knxip/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-knxip/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-knxip/internal/knx"
	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
	"github.com/nerrad567/gray-logic-knxip/internal/transport"
	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

// errNoGateway is returned when discovery finds no tunnelling gateway.
var errNoGateway = errors.New("no tunnelling gateway found")

// app holds what every command builds from the configuration.
type app struct {
	cfg *config.Config
	log *logging.Logger
}

func loadApp(flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}

	log := logging.New(cfg.Logging, version)
	log.Debug("configuration loaded", "path", flags.configPath, "datapoints", len(cfg.Datapoints))
	return &app{cfg: cfg, log: log}, nil
}

func (a *app) Close() {
	a.log.Close() //nolint:errcheck // nothing left to log to
}

// decoder carries the configured datapoint table and address style.
func (a *app) decoder() knxnetip.Decoder {
	return knxnetip.Decoder{CEMI: knx.Decoder{
		Datapoints: a.cfg.DPTTable(),
		Style:      a.cfg.Style(),
	}}
}

// newSession builds a session. The multicast socket is only opened when
// withDiscovery is set, so a configured gateway works without multicast.
func (a *app) newSession(withDiscovery bool, obs tunnel.Observer) (*tunnel.Session, error) {
	var mc tunnel.MulticastTransport
	if withDiscovery {
		m, err := transport.ListenMulticast(transport.MulticastConfig{
			Group:     a.cfg.DiscoveryGroup(),
			Interface: a.cfg.Discovery.Interface,
			JoinGroup: a.cfg.Discovery.JoinGroup,
			TTL:       a.cfg.Discovery.TTL,
		}, a.log)
		if err != nil {
			return nil, fmt.Errorf("opening discovery socket: %w", err)
		}
		mc = m
	}

	local := a.cfg.LocalEndpoint()
	if local.Addr().IsUnspecified() && a.cfg.Discovery.Interface != "" {
		if ip, err := transport.InterfaceIPv4(a.cfg.Discovery.Interface); err == nil {
			local = netip.AddrPortFrom(ip, local.Port())
		}
	}

	cfg := tunnel.Config{
		Local:       knxnetip.NewHPAI(local),
		Decoder:     a.decoder(),
		EventBuffer: a.cfg.Tunnel.EventBuffer,
		Logger:      a.log,
	}
	if obs != nil {
		cfg.Observer = obs
	}
	return tunnel.New(cfg, mc, transport.Dialer(local, a.log)), nil
}

// discover broadcasts a search request and collects answers for timeout.
func discover(ctx context.Context, s *tunnel.Session, timeout time.Duration) ([]tunnel.Gateway, error) {
	if err := s.Discover(ctx); err != nil {
		return nil, fmt.Errorf("sending search request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Gateways(ctx)
}

// resolveGateway returns the configured gateway, or the first
// discovered gateway that supports tunnelling.
func (a *app) resolveGateway(ctx context.Context, s *tunnel.Session) (tunnel.Gateway, error) {
	if ep, ok := a.cfg.GatewayEndpoint(); ok {
		return tunnel.Gateway{Control: knxnetip.NewHPAI(ep), From: ep, SeenAt: time.Now()}, nil
	}

	gws, err := discover(ctx, s, a.cfg.Discovery.Timeout)
	if err != nil {
		return tunnel.Gateway{}, err
	}
	for _, gw := range gws {
		if gw.SupportsTunnelling() {
			a.log.Info("selected gateway", "name", gw.Name(), "endpoint", gw.Endpoint().String())
			return gw, nil
		}
	}
	return tunnel.Gateway{}, fmt.Errorf("%w after %s (%d answered)", errNoGateway, a.cfg.Discovery.Timeout, len(gws))
}

// connect resolves a gateway and opens the tunnel within the configured
// connect timeout.
func (a *app) connect(ctx context.Context, s *tunnel.Session) (tunnel.Gateway, error) {
	gw, err := a.resolveGateway(ctx, s)
	if err != nil {
		return tunnel.Gateway{}, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, a.cfg.Tunnel.ConnectTimeout)
	defer cancel()
	if err := s.Connect(connectCtx, gw); err != nil {
		return tunnel.Gateway{}, fmt.Errorf("connecting to %s: %w", gw.Endpoint(), err)
	}

	st := s.Stats()
	a.log.Info("tunnel connected", "gateway", gw.Name(), "channel", st.ChannelID)
	return gw, nil
}

// disconnect closes the tunnel with its own timeout; ctx is usually
// already cancelled by then.
func (a *app) disconnect(s *tunnel.Session) {
	if s.State() != tunnel.StateConnected {
		return
	}
	timeout := a.cfg.Tunnel.DisconnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second //nolint:mnd // fallback grace
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Disconnect(ctx); err != nil {
		a.log.Warn("disconnect failed", "error", err)
		return
	}
	a.log.Info("tunnel disconnected")
}
