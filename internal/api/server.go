package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-knxip/internal/bridges/knxip"
	"github.com/nerrad567/gray-logic-knxip/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-knxip/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-knxip/internal/knx"
	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StatusSource is satisfied by *tunnel.Session.
type StatusSource interface {
	ID() string
	Stats() tunnel.Stats
}

// Commander is satisfied by *knxip.Bridge.
type Commander interface {
	Command(ctx context.Context, ga knx.GroupAddress, cmd knxip.CommandMessage) error
}

// Inventory is satisfied by *knxip.Recorder.
type Inventory interface {
	GroupAddresses(ctx context.Context) ([]knxip.GroupAddressRecord, error)
	Devices(ctx context.Context) ([]knxip.DeviceRecord, error)
	Gateways(ctx context.Context) ([]knxip.GatewayRecord, error)
}

// Deps holds the dependencies required by the API server. Session and
// Logger are required; a nil Commander, Inventory or Metrics disables
// the matching endpoints.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Session   StatusSource
	Commander Commander
	Inventory Inventory
	Metrics   *prometheus.Registry
	Hub       *Hub // If set, the server uses this hub instead of creating its own
	Version   string
}

// Server is the HTTP API server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	session   StatusSource
	commander Commander
	inventory Inventory
	metrics   *prometheus.Registry
	version   string
	startTime time.Time

	hub         *Hub
	externalHub bool
	server      *http.Server
	listener    net.Listener
	cancel      context.CancelFunc
}

// New creates a server; it does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		session:   deps.Session,
		commander: deps.Commander,
		inventory: deps.Inventory,
		metrics:   deps.Metrics,
		version:   deps.Version,
		startTime: time.Now(),
	}
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.Config.WebSocket, deps.Logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub, for wiring as the bridge's broadcaster.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in the background until Close.
//
// Returns:
//   - error: If the address cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server listening", "address", ln.Addr().String(), "auth", s.authEnabled())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

func (s *Server) authEnabled() bool {
	return s.cfg.JWT.Secret != ""
}
