package knxip

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

const defaultHealthInterval = 30 * time.Second

// StatsSource is the part of a session the health reporter reads.
type StatsSource interface {
	ID() string
	Stats() tunnel.Stats
}

// HealthPublisher publishes retained health messages.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporter publishes session health on a fixed interval.
type HealthReporter struct {
	source    StatsSource
	publisher HealthPublisher
	topic     string
	version   string
	interval  time.Duration
	startTime time.Time
	onError   func(err error)

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// HealthReporterConfig holds the reporter settings.
type HealthReporterConfig struct {
	Source    StatsSource
	Publisher HealthPublisher
	Topic     string
	Version   string

	// Interval defaults to 30 seconds.
	Interval time.Duration

	// OnError receives publish failures from the report loop.
	OnError func(err error)
}

// NewHealthReporter returns a reporter; call Start to begin publishing.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthReporter{
		source:    cfg.Source,
		publisher: cfg.Publisher,
		topic:     cfg.Topic,
		version:   cfg.Version,
		interval:  interval,
		startTime: time.Now(),
		onError:   cfg.OnError,
		done:      make(chan struct{}),
	}
}

// Start runs the report loop until ctx ends or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends the loop and publishes a final "stopping" message.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		//nolint:errcheck // best effort during shutdown
		h.publish(HealthStopping, "")
	})
}

// PublishStarting publishes a "starting" message.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publish(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil && h.onError != nil {
				h.onError(err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	return SessionStatus(h.source.Stats().State)
}

// SessionStatus is healthy only with a connected tunnel.
func SessionStatus(st tunnel.State) (HealthStatus, string) {
	if st != tunnel.StateConnected {
		return HealthDegraded, "session " + st.String()
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return nil
	}

	msg := NewHealthMessage(h.source.ID(), h.version, status, h.source.Stats(), h.startTime)
	msg.Reason = reason

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.publisher.Publish(h.topic, payload, 1, true)
}
