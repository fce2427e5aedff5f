package knxip

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nerrad567/gray-logic-knxip/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-knxip/internal/knx"
	"github.com/nerrad567/gray-logic-knxip/internal/metrics"
	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

// commandTimeout bounds a single Send triggered by an MQTT command.
const commandTimeout = 5 * time.Second

// Session is the tunnel session surface the bridge needs.
type Session interface {
	StatsSource
	Events() <-chan tunnel.Event
	Send(ctx context.Context, ga knx.GroupAddress, dpt knx.DPT, data []byte) error
	SendRead(ctx context.Context, ga knx.GroupAddress) error
}

// MQTTClient is satisfied by *mqtt.Client.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// PointWriter is satisfied by *influxdb.Client.
type PointWriter interface {
	WriteTelegram(tel knx.Telegram, dpt knx.DPT)
}

// TelegramRecorder is satisfied by *Recorder.
type TelegramRecorder interface {
	RecordTelegram(ctx context.Context, tel knx.Telegram, dpt knx.DPT) error
	RecordGateway(ctx context.Context, gw tunnel.Gateway) error
}

// Broadcaster is satisfied by *api.Hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Broadcast channels.
const (
	ChannelTelegram = "telegram"
	ChannelGateway  = "gateway"
	ChannelState    = "state"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// BridgeOptions wires a bridge. Only Session is required; every nil
// sink is skipped.
type BridgeOptions struct {
	Session Session

	MQTT   MQTTClient
	Topics mqtt.Topics
	QoS    byte

	Points      PointWriter
	Recorder    TelegramRecorder
	Broadcaster Broadcaster
	Metrics     *metrics.Bridge

	// DPTs resolves the datapoint type of each destination.
	DPTs *knx.DPTTable

	// Names labels group addresses in published messages.
	Names map[knx.GroupAddress]string

	// Style formats group addresses in published messages.
	Style knx.AddressStyle

	// SendRate caps outbound telegrams per second; 0 means unlimited.
	SendRate  float64
	SendBurst int

	HealthInterval time.Duration
	Version        string
	Logger         Logger
}

// Stats counts what the bridge has handled.
type Stats struct {
	Telegrams uint64
	Gateways  uint64
	Commands  uint64
	Errors    uint64
}

// Bridge fans session events out to MQTT, InfluxDB and SQLite and feeds
// MQTT commands back into the session.
type Bridge struct {
	opts    BridgeOptions
	health  *HealthReporter
	limiter *rate.Limiter

	telegrams atomic.Uint64
	gateways  atomic.Uint64
	commands  atomic.Uint64
	errors    atomic.Uint64

	ctx       context.Context
	ctxCancel context.CancelFunc
	running   atomic.Bool
}

// NewBridge validates opts and returns a bridge; call Run to start it.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Session == nil {
		return nil, ErrNoSession
	}
	if opts.Topics.Prefix == "" {
		opts.Topics = mqtt.NewTopics("")
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{opts: opts, ctx: ctx, ctxCancel: cancel}
	if opts.SendRate > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(opts.SendRate), max(opts.SendBurst, 1))
	}

	if opts.MQTT != nil {
		b.health = NewHealthReporter(HealthReporterConfig{
			Source:    opts.Session,
			Publisher: opts.MQTT,
			Topic:     opts.Topics.Health(),
			Version:   opts.Version,
			Interval:  opts.HealthInterval,
			OnError: func(err error) {
				b.fail("failed to publish health", err)
			},
		})
	}
	return b, nil
}

// Run consumes events until ctx ends or the session closes its event
// channel. It may be called once.
func (b *Bridge) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return fmt.Errorf("knxip: bridge already running")
	}
	defer b.ctxCancel()

	if b.opts.MQTT != nil {
		if err := b.health.PublishStarting(); err != nil {
			b.fail("failed to publish starting status", err)
		}
		topic := b.opts.Topics.AllCommands()
		if err := b.opts.MQTT.Subscribe(topic, 1, b.onCommand); err != nil {
			return fmt.Errorf("subscribe to commands: %w", err)
		}
		b.opts.Logger.Info("subscribed to commands", "topic", topic)

		b.health.Start(ctx)
		defer b.health.Stop()
	}

	events := b.opts.Session.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			b.HandleEvent(ev)
		}
	}
}

// HandleEvent routes one session event to the sinks.
func (b *Bridge) HandleEvent(ev tunnel.Event) {
	switch e := ev.(type) {
	case tunnel.TelegramEvent:
		b.handleTelegram(e)
	case tunnel.GatewayEvent:
		b.handleGateway(e)
	case tunnel.StateEvent:
		b.opts.Logger.Info("session state changed", "from", e.From.String(), "to", e.To.String())
		if b.opts.Broadcaster != nil {
			b.opts.Broadcaster.Broadcast(ChannelState, StateMessage{
				Timestamp: e.Time.UTC(),
				From:      e.From.String(),
				To:        e.To.String(),
			})
		}
		if b.health != nil {
			if err := b.health.PublishNow(); err != nil {
				b.fail("failed to publish health", err)
			}
		}
	case tunnel.DecodeErrorEvent:
		b.opts.Logger.Warn("undecodable datagram", "from", e.From.String(), "raw", e.RawHex(), "error", e.Err)
	case tunnel.TransportErrorEvent:
		b.opts.Logger.Error("transport error", "error", e.Err)
	}
}

func (b *Bridge) handleTelegram(ev tunnel.TelegramEvent) {
	if ev.Frame == nil {
		b.opts.Logger.Debug("non L_Data tunnelling request", "cemi", knx.ToHex(ev.CEMI))
		return
	}
	tel, ok := ev.Frame.Telegram()
	if !ok {
		return
	}
	tel.Timestamp = ev.Time
	dpt := b.opts.DPTs.Lookup(tel.Destination)
	b.telegrams.Add(1)

	if b.opts.MQTT != nil || b.opts.Broadcaster != nil {
		msg := NewTelegramMessage(ev, tel, dpt, b.opts.Style, b.opts.Names[tel.Destination])
		if b.opts.MQTT != nil {
			b.publish("telegram", b.opts.Topics.Telegram(tel.Destination), msg, false)
		}
		if b.opts.Broadcaster != nil {
			b.opts.Broadcaster.Broadcast(ChannelTelegram, msg)
		}
	}

	if b.opts.Points != nil {
		b.opts.Points.WriteTelegram(tel, dpt)
		b.opts.Metrics.IncPoints()
	}

	if b.opts.Recorder != nil {
		if err := b.opts.Recorder.RecordTelegram(b.ctx, tel, dpt); err != nil {
			b.fail("failed to record telegram", err)
		} else {
			b.opts.Metrics.IncRecorded("telegram")
		}
	}
}

func (b *Bridge) handleGateway(ev tunnel.GatewayEvent) {
	gw := ev.Gateway
	b.gateways.Add(1)
	b.opts.Logger.Info("gateway discovered",
		"name", gw.Name(),
		"endpoint", gw.Endpoint().String(),
		"tunnelling", gw.SupportsTunnelling())

	if b.opts.MQTT != nil {
		b.publish("gateway", b.opts.Topics.Gateway(gw.Endpoint()), NewGatewayMessage(gw), true)
	}
	if b.opts.Broadcaster != nil {
		b.opts.Broadcaster.Broadcast(ChannelGateway, NewGatewayMessage(gw))
	}

	if b.opts.Recorder != nil {
		if err := b.opts.Recorder.RecordGateway(b.ctx, gw); err != nil {
			b.fail("failed to record gateway", err)
		} else {
			b.opts.Metrics.IncRecorded("gateway")
		}
	}
}

func (b *Bridge) publish(kind, topic string, v any, retained bool) {
	if err := mqtt.PublishJSON(b.opts.MQTT, topic, v, b.opts.QoS, retained); err != nil {
		b.opts.Metrics.IncPublishFailed()
		b.fail("failed to publish "+kind, err)
		return
	}
	b.opts.Metrics.IncPublished(kind)
}

// onCommand is the MQTT handler for {prefix}/command/{ga}. The client
// logs returned errors.
func (b *Bridge) onCommand(topic string, payload []byte) error {
	if err := b.handleCommand(topic, payload); err != nil {
		b.errors.Add(1)
		return err
	}
	return nil
}

func (b *Bridge) handleCommand(topic string, payload []byte) error {
	ga, err := b.opts.Topics.ParseCommand(topic)
	if err != nil {
		return err
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	return b.Command(ctx, ga, cmd)
}

// Command sends one group read or write on behalf of MQTT or the HTTP
// API. Write values are encoded with cmd.DPT, or the configured type of
// ga. Returns ErrInvalidCommand for values that cannot be encoded.
func (b *Bridge) Command(ctx context.Context, ga knx.GroupAddress, cmd CommandMessage) error {
	if cmd.Read {
		if err := b.throttle(ctx); err != nil {
			return err
		}
		if err := b.opts.Session.SendRead(ctx, ga); err != nil {
			return fmt.Errorf("read %s: %w", ga, err)
		}
		b.commands.Add(1)
		b.opts.Logger.Info("sent group read", "ga", ga.String())
		return nil
	}

	if cmd.Value == nil {
		return fmt.Errorf("%w: %s: missing value", ErrInvalidCommand, ga)
	}

	dpt := b.opts.DPTs.Lookup(ga)
	if cmd.DPT != "" {
		var err error
		if dpt, err = knx.ParseDPT(cmd.DPT); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
	}

	data, err := knx.EncodeValue(dpt, cmd.Value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if err := b.throttle(ctx); err != nil {
		return err
	}
	if err := b.opts.Session.Send(ctx, ga, dpt, data); err != nil {
		return fmt.Errorf("write %s: %w", ga, err)
	}
	b.commands.Add(1)
	b.opts.Logger.Info("sent group write", "ga", ga.String(), "dpt", string(dpt), "value", knx.Display(data, dpt))
	return nil
}

// throttle waits for the send limiter. Waits that would outlast ctx
// fail at once.
func (b *Bridge) throttle(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return nil
}

func (b *Bridge) fail(msg string, err error) {
	b.errors.Add(1)
	b.opts.Logger.Error(msg, "error", err)
}

// Stats returns the bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Telegrams: b.telegrams.Load(),
		Gateways:  b.gateways.Load(),
		Commands:  b.commands.Load(),
		Errors:    b.errors.Load(),
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
