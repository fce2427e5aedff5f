package influxdb

import (
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
)

// MeasurementTelegram is the measurement every telegram is written to.
const MeasurementTelegram = "knx_telegram"

// commandName maps group value commands to tag values.
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

// TelegramPoint builds the point for one telegram interpreted as dpt.
//
// Reads carry no payload and are stored with a zero-length raw field so
// they still count in queries.
func TelegramPoint(tel knx.Telegram, dpt knx.DPT) *write.Point {
	tags := map[string]string{
		"ga":      tel.Destination.String(),
		"dpt":     string(dpt),
		"source":  tel.Source.String(),
		"command": commandName(tel.APCI),
	}

	fields := make(map[string]any, 2) //nolint:mnd // value or raw, plus text
	if v, ok := knx.Numeric(tel.Data, dpt); ok && !tel.IsRead() {
		fields["value"] = v
	} else {
		fields["raw"] = knx.ToHex(tel.Data)
	}
	if !tel.IsRead() {
		fields["text"] = knx.Display(tel.Data, dpt)
	}

	return write.NewPoint(MeasurementTelegram, tags, fields, tel.Timestamp)
}

// WriteTelegram queues a telegram point. It never blocks.
func (c *Client) WriteTelegram(tel knx.Telegram, dpt knx.DPT) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(TelegramPoint(tel, dpt))
}
