package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/gray-logic-knxip/internal/bridges/knxip"
	"github.com/nerrad567/gray-logic-knxip/internal/knx"
	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

const (
	outputText = "text"
	outputJSON = "json"

	timeLayout = "15:04:05.000"
)

func validateOutput(output string) error {
	if output != outputText && output != outputJSON {
		return fmt.Errorf("invalid output format %q; must be %q or %q", output, outputText, outputJSON)
	}
	return nil
}

// describeFrame renders one KNXnet/IP frame on a single line.
func describeFrame(f knxnetip.Frame) string {
	svc := f.Service().String()
	switch fr := f.(type) {
	case knxnetip.SearchRequestFrame:
		return fmt.Sprintf("%s reply-to=%s", svc, fr.Discovery)
	case knxnetip.SearchResponseFrame:
		gw := tunnel.GatewayFromResponse(fr, fr.Control.AddrPort(), time.Time{})
		return fmt.Sprintf("%s %q control=%s tunnelling=%t", svc, gw.Name(), fr.Control, gw.SupportsTunnelling())
	case knxnetip.DescriptionRequestFrame:
		return fmt.Sprintf("%s control=%s", svc, fr.Control)
	case knxnetip.ConnectRequestFrame:
		return fmt.Sprintf("%s control=%s data=%s", svc, fr.Control, fr.Data)
	case knxnetip.ConnectResponseFrame:
		return fmt.Sprintf("%s ch=%d status=%s data=%s", svc, fr.ChannelID, fr.Status, fr.Data)
	case knxnetip.ConnectionStateRequestFrame:
		return fmt.Sprintf("%s ch=%d control=%s", svc, fr.ChannelID, fr.Control)
	case knxnetip.ConnectionStateResponseFrame:
		return fmt.Sprintf("%s ch=%d status=%s", svc, fr.ChannelID, fr.Status)
	case knxnetip.DisconnectRequestFrame:
		return fmt.Sprintf("%s ch=%d control=%s", svc, fr.ChannelID, fr.Control)
	case knxnetip.DisconnectResponseFrame:
		return fmt.Sprintf("%s ch=%d status=%s", svc, fr.ChannelID, fr.Status)
	case knxnetip.TunnellingRequestFrame:
		text := "cemi=" + knx.ToHex(fr.CEMI)
		if fr.Frame != nil {
			text = fr.Frame.Text
		}
		return fmt.Sprintf("%s ch=%d seq=%d %s", svc, fr.ChannelID, fr.Sequence, text)
	case knxnetip.TunnellingAckFrame:
		return fmt.Sprintf("%s ch=%d seq=%d status=%s", svc, fr.ChannelID, fr.Sequence, fr.Status)
	default:
		return svc
	}
}

// eventPrinter writes session events as text lines or JSON objects.
type eventPrinter struct {
	w      io.Writer
	output string
	style  knx.AddressStyle
	dpts   *knx.DPTTable
	names  map[knx.GroupAddress]string
}

func (p *eventPrinter) print(ev tunnel.Event) {
	if p.output == outputJSON {
		p.printJSON(ev)
		return
	}

	switch e := ev.(type) {
	case tunnel.TelegramEvent:
		text := "cemi=" + knx.ToHex(e.CEMI)
		if e.Frame != nil {
			text = e.Frame.Text
			if ga, ok := e.Frame.GroupAddress(); ok && p.names[ga] != "" {
				text += " (" + p.names[ga] + ")"
			}
		}
		fmt.Fprintf(p.w, "%s  #%03d  %s\n", e.Time.Format(timeLayout), e.Sequence, text)
	case tunnel.GatewayEvent:
		fmt.Fprintf(p.w, "%s  gateway %q at %s\n", e.Time.Format(timeLayout), e.Gateway.Name(), e.Gateway.Endpoint())
	case tunnel.StateEvent:
		fmt.Fprintf(p.w, "%s  state %s -> %s\n", e.Time.Format(timeLayout), e.From, e.To)
	case tunnel.DecodeErrorEvent:
		fmt.Fprintf(p.w, "%s  undecodable from %s: %v [%s]\n", e.Time.Format(timeLayout), e.From, e.Err, e.RawHex())
	case tunnel.TransportErrorEvent:
		fmt.Fprintf(p.w, "%s  transport error: %v\n", e.Time.Format(timeLayout), e.Err)
	}
}

func (p *eventPrinter) printJSON(ev tunnel.Event) {
	var v any
	switch e := ev.(type) {
	case tunnel.TelegramEvent:
		if e.Frame == nil {
			return
		}
		tel, ok := e.Frame.Telegram()
		if !ok {
			return
		}
		v = knxip.NewTelegramMessage(e, tel, p.dpts.Lookup(tel.Destination), p.style, p.names[tel.Destination])
	case tunnel.GatewayEvent:
		v = knxip.NewGatewayMessage(e.Gateway)
	default:
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(p.w, "%s\n", b)
}
