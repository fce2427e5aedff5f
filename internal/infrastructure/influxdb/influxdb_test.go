package influxdb

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-knxip/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-knxip/internal/knx"
)

func mustPA(t *testing.T, s string) knx.PhysicalAddress {
	t.Helper()
	pa, err := knx.ParsePhysicalAddress(s)
	if err != nil {
		t.Fatalf("ParsePhysicalAddress(%q) error = %v", s, err)
	}
	return pa
}

// ─── Points ───────────────────────────────────────────────────────

func TestTelegramPoint(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	src := mustPA(t, "1.1.5")
	ga := knx.NewGroupAddress(1, 2, 3)

	tests := []struct {
		name    string
		tel     knx.Telegram
		dpt     knx.DPT
		want    []string
		notWant []string
	}{
		{
			name: "temperature write",
			tel:  knx.Telegram{Source: src, Destination: ga, APCI: knx.APCIGroupValueWrite, Data: []byte{0x0C, 0x1A}, Timestamp: ts},
			dpt:  knx.DPTTemperature,
			want: []string{
				"knx_telegram,command=write,dpt=9.001,ga=1/2/3,source=1.1.5 ",
				"value=21",
				`text="21.00 °C"`,
			},
			notWant: []string{"raw="},
		},
		{
			name:    "switch response stored raw",
			tel:     knx.Telegram{Source: src, Destination: ga, APCI: knx.APCIGroupValueResponse, Data: []byte{0x01}, Compact: true, Timestamp: ts},
			dpt:     knx.DPTSwitch,
			want:    []string{"command=response", `raw="01"`, "text="},
			notWant: []string{"value="},
		},
		{
			name:    "read has no text",
			tel:     knx.Telegram{Source: src, Destination: ga, APCI: knx.APCIGroupValueRead, Timestamp: ts},
			dpt:     knx.DPTTemperature,
			want:    []string{"command=read", `raw=""`},
			notWant: []string{"value=", "text="},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := write.PointToLineProtocol(TelegramPoint(tt.tel, tt.dpt), time.Nanosecond)
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("line %q missing %q", line, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(line, w) {
					t.Errorf("line %q should not contain %q", line, w)
				}
			}
		})
	}
}

// ─── Client ───────────────────────────────────────────────────────

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := Connect(config.InfluxDBConfig{Enabled: true, URL: srv.URL, Org: "o", Bucket: "b"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteTelegram(t *testing.T) {
	bodies := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			b, _ := io.ReadAll(r.Body)
			bodies <- string(b)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := Connect(config.InfluxDBConfig{
		Enabled: true, URL: srv.URL, Token: "t", Org: "home", Bucket: "knx", BatchSize: 10, FlushInterval: 1,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(testContext(t)); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	tel := knx.Telegram{
		Source:      mustPA(t, "1.1.5"),
		Destination: knx.NewGroupAddress(1, 2, 3),
		APCI:        knx.APCIGroupValueWrite,
		Data:        []byte{0x0C, 0x1A},
		Timestamp:   time.Now(),
	}
	client.WriteTelegram(tel, knx.DPTTemperature)
	client.Flush()

	select {
	case body := <-bodies:
		if !strings.HasPrefix(body, "knx_telegram,") || !strings.Contains(body, "value=21") {
			t.Errorf("write body = %q", body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for write request")
	}
}

func TestClosedClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := Connect(config.InfluxDBConfig{Enabled: true, URL: srv.URL, Org: "o", Bucket: "b"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(testContext(t)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	client.WriteTelegram(knx.Telegram{}, knx.DPTSwitch)
	client.Flush()
}
