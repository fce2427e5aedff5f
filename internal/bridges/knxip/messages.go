package knxip

import (
	"time"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

// TelegramMessage is published for every group telegram.
// Topic: {prefix}/telegram/{ga}
type TelegramMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	GA        string    `json:"ga"`
	Name      string    `json:"name,omitempty"`
	Command   string    `json:"command"`
	DPT       string    `json:"dpt"`

	// Raw is the payload in hex; empty for reads.
	Raw string `json:"raw"`

	// Text is the display rendering, e.g. "21.00 °C".
	Text string `json:"text,omitempty"`

	// Value is set for numeric datapoint types.
	Value *float64 `json:"value,omitempty"`

	ChannelID uint8 `json:"channel_id"`
	Sequence  uint8 `json:"sequence"`
}

// commandName maps group value commands to message values.
func commandName(apci knx.APCI) string {
	switch apci {
	case knx.APCIGroupValueRead:
		return "read"
	case knx.APCIGroupValueResponse:
		return "response"
	default:
		return "write"
	}
}

// NewTelegramMessage builds the message for tel interpreted as dpt.
func NewTelegramMessage(ev tunnel.TelegramEvent, tel knx.Telegram, dpt knx.DPT, style knx.AddressStyle, name string) TelegramMessage {
	msg := TelegramMessage{
		Timestamp: ev.Time.UTC(),
		Source:    tel.Source.String(),
		GA:        tel.Destination.Format(style),
		Name:      name,
		Command:   commandName(tel.APCI),
		DPT:       string(dpt),
		Raw:       knx.ToHex(tel.Data),
		ChannelID: ev.ChannelID,
		Sequence:  ev.Sequence,
	}
	if tel.IsRead() {
		return msg
	}
	msg.Text = knx.Display(tel.Data, dpt)
	if v, ok := knx.Numeric(tel.Data, dpt); ok {
		msg.Value = &v
	}
	return msg
}

// GatewayMessage describes a discovered gateway.
// Topic: {prefix}/gateway/{endpoint}, retained.
type GatewayMessage struct {
	Timestamp         time.Time `json:"timestamp"`
	Name              string    `json:"name"`
	Endpoint          string    `json:"endpoint"`
	IndividualAddress string    `json:"individual_address,omitempty"`
	Serial            string    `json:"serial,omitempty"`
	MAC               string    `json:"mac,omitempty"`
	Tunnelling        bool      `json:"tunnelling"`
}

// NewGatewayMessage builds the message for gw.
func NewGatewayMessage(gw tunnel.Gateway) GatewayMessage {
	msg := GatewayMessage{
		Timestamp:  gw.SeenAt.UTC(),
		Name:       gw.Name(),
		Endpoint:   gw.Endpoint().String(),
		Tunnelling: gw.SupportsTunnelling(),
	}
	if gw.HasInfo {
		msg.IndividualAddress = gw.Info.Address.String()
		msg.Serial = gw.Info.SerialString()
		msg.MAC = gw.Info.HardwareAddr().String()
	}
	return msg
}

// HealthStatus is the coarse health of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports session counters.
// Topic: {prefix}/health, retained.
type HealthMessage struct {
	Timestamp     time.Time    `json:"timestamp"`
	SessionID     string       `json:"session_id"`
	Status        HealthStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	State         string       `json:"state"`
	ChannelID     uint8        `json:"channel_id"`
	FramesRx      uint64       `json:"frames_rx"`
	FramesTx      uint64       `json:"frames_tx"`
	AcksSent      uint64       `json:"acks_sent"`
	DecodeErrors  uint64       `json:"decode_errors"`
	EventsDropped uint64       `json:"events_dropped"`
	LastActivity  *time.Time   `json:"last_activity,omitempty"`
}

// NewHealthMessage builds a health message from a stats snapshot.
func NewHealthMessage(sessionID, version string, status HealthStatus, stats tunnel.Stats, started time.Time) HealthMessage {
	msg := HealthMessage{
		Timestamp:     time.Now().UTC(),
		SessionID:     sessionID,
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(started).Seconds()),
		State:         stats.State.String(),
		ChannelID:     stats.ChannelID,
		FramesRx:      stats.FramesRx,
		FramesTx:      stats.FramesTx,
		AcksSent:      stats.AcksSent,
		DecodeErrors:  stats.DecodeErrors,
		EventsDropped: stats.EventsDropped,
	}
	if !stats.LastActivity.IsZero() {
		t := stats.LastActivity.UTC()
		msg.LastActivity = &t
	}
	return msg
}

// StateMessage reports a session state transition to live subscribers.
type StateMessage struct {
	Timestamp time.Time `json:"timestamp"`
	From      string    `json:"from"`
	To        string    `json:"to"`
}

// CommandMessage arrives on {prefix}/command/{ga}.
//
//	{"value": 21.5}                  write using the configured DPT
//	{"value": true, "dpt": "1.001"}  write with an explicit DPT
//	{"read": true}                   send GroupValue_Read
type CommandMessage struct {
	Value any    `json:"value"`
	DPT   string `json:"dpt,omitempty"`
	Read  bool   `json:"read,omitempty"`
}
