// Package metrics exposes Prometheus collectors for the KNXnet/IP client.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

const namespace = "knxip"

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Serve runs a /metrics endpoint on addr until ctx ends.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second} //nolint:mnd // header timeout

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd // shutdown grace
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics shutdown: %w", err)
		}
		return nil
	}
}

// Session counts tunnel session activity. It implements
// tunnel.Observer; a nil *Session records nothing.
type Session struct {
	FramesReceived *prometheus.CounterVec // labels: service
	FramesSent     *prometheus.CounterVec // labels: service
	DecodeErrors   prometheus.Counter
	EventsDropped  prometheus.Counter
	State          *prometheus.GaugeVec // labels: state; 1 for the current state
}

var _ tunnel.Observer = (*Session)(nil)

// NewSession registers and returns the session collectors.
func NewSession(reg prometheus.Registerer) *Session {
	m := &Session{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "KNXnet/IP frames decoded, by service.",
		}, []string{"service"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "KNXnet/IP frames sent, by service.",
		}, []string{"service"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound datagrams that failed to decode.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Session events dropped because the consumer fell behind.",
		}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
	}
	reg.MustRegister(m.FramesReceived, m.FramesSent, m.DecodeErrors, m.EventsDropped, m.State)
	m.StateChanged(tunnel.StateIdle)
	return m
}

// FrameReceived implements tunnel.Observer.
func (m *Session) FrameReceived(svc knxnetip.ServiceType) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(svc.String()).Inc()
}

// FrameSent implements tunnel.Observer.
func (m *Session) FrameSent(svc knxnetip.ServiceType) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(svc.String()).Inc()
}

// DecodeFailed implements tunnel.Observer.
func (m *Session) DecodeFailed() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

// EventDropped implements tunnel.Observer.
func (m *Session) EventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

// StateChanged implements tunnel.Observer.
func (m *Session) StateChanged(st tunnel.State) {
	if m == nil {
		return
	}
	for _, s := range []tunnel.State{
		tunnel.StateIdle, tunnel.StateDiscovering, tunnel.StateConnecting,
		tunnel.StateConnected, tunnel.StateDisconnecting,
	} {
		v := 0.0
		if s == st {
			v = 1
		}
		m.State.WithLabelValues(s.String()).Set(v)
	}
}

// Bridge counts what the bridge forwards to external systems.
type Bridge struct {
	Published    *prometheus.CounterVec // labels: kind
	PublishFails prometheus.Counter
	PointsWrote  prometheus.Counter
	Recorded     *prometheus.CounterVec // labels: kind
}

// NewBridge registers and returns the bridge collectors.
func NewBridge(reg prometheus.Registerer) *Bridge {
	m := &Bridge{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_published_total",
			Help:      "MQTT messages published, by kind.",
		}, []string{"kind"}),
		PublishFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publish_errors_total",
			Help:      "MQTT publish failures.",
		}),
		PointsWrote: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "influx_points_total",
			Help:      "Telegram values written to InfluxDB.",
		}),
		Recorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorded_total",
			Help:      "Addresses and gateways recorded in the database, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.Published, m.PublishFails, m.PointsWrote, m.Recorded)
	return m
}

// IncPublished counts one MQTT message of kind.
func (m *Bridge) IncPublished(kind string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(kind).Inc()
}

// IncPublishFailed counts one failed publish.
func (m *Bridge) IncPublishFailed() {
	if m == nil {
		return
	}
	m.PublishFails.Inc()
}

// IncPoints counts one InfluxDB point.
func (m *Bridge) IncPoints() {
	if m == nil {
		return
	}
	m.PointsWrote.Inc()
}

// IncRecorded counts one database upsert of kind.
func (m *Bridge) IncRecorded(kind string) {
	if m == nil {
		return
	}
	m.Recorded.WithLabelValues(kind).Inc()
}
