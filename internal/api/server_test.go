package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-knxip/internal/auth"
	"github.com/nerrad567/gray-logic-knxip/internal/bridges/knxip"
	"github.com/nerrad567/gray-logic-knxip/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-knxip/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-knxip/internal/knx"
	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// ─── Mocks ──────────────────────────────────────────────────────────

type mockSession struct {
	stats tunnel.Stats
}

func (m *mockSession) ID() string          { return "session-1" }
func (m *mockSession) Stats() tunnel.Stats { return m.stats }

type sentCommand struct {
	ga  knx.GroupAddress
	cmd knxip.CommandMessage
}

type mockCommander struct {
	mu   sync.Mutex
	sent []sentCommand
	err  error
}

func (m *mockCommander) Command(_ context.Context, ga knx.GroupAddress, cmd knxip.CommandMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentCommand{ga: ga, cmd: cmd})
	return nil
}

type mockInventory struct {
	addresses []knxip.GroupAddressRecord
	devices   []knxip.DeviceRecord
	gateways  []knxip.GatewayRecord
	err       error
}

func (m *mockInventory) GroupAddresses(context.Context) ([]knxip.GroupAddressRecord, error) {
	return m.addresses, m.err
}

func (m *mockInventory) Devices(context.Context) ([]knxip.DeviceRecord, error) {
	return m.devices, m.err
}

func (m *mockInventory) Gateways(context.Context) ([]knxip.GatewayRecord, error) {
	return m.gateways, m.err
}

// ─── Helpers ────────────────────────────────────────────────────────

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, config.LoggingConfig{Level: "error"}, "test")
}

func testConfig() config.APIConfig {
	return config.APIConfig{
		Host: "127.0.0.1",
		Timeouts: config.APITimeoutConfig{
			Read:  5,
			Write: 5,
			Idle:  5,
		},
		WebSocket: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
	}
}

// testServer returns a server and an httptest server running its router.
func testServer(t *testing.T, deps Deps) (*Server, *httptest.Server) {
	t.Helper()

	if deps.Logger == nil {
		deps.Logger = testLogger()
	}
	if deps.Session == nil {
		deps.Session = &mockSession{}
	}
	if deps.Config.Timeouts.Read == 0 {
		secret := deps.Config.JWT.Secret
		deps.Config = testConfig()
		deps.Config.JWT.Secret = secret
	}
	deps.Version = "test"

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go srv.hub.Run(ctx)

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return srv, ts
}

func doRequest(t *testing.T, method, url, body, token string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return resp, data
}

func mustToken(t *testing.T, role auth.Role) string {
	t.Helper()
	token, err := auth.GenerateToken("test", role, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

// ─── Construction ───────────────────────────────────────────────────

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Session: &mockSession{}}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without session should fail")
	}
}

func TestNew_ExternalHub(t *testing.T) {
	hub := NewHub(testConfig().WebSocket, testLogger())
	srv, err := New(Deps{Logger: testLogger(), Session: &mockSession{}, Hub: hub})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.Hub() != hub || !srv.externalHub {
		t.Error("Hub() should return the injected hub")
	}
}

func TestServerStartClose(t *testing.T) {
	srv, err := New(Deps{Config: testConfig(), Logger: testLogger(), Session: &mockSession{}, Version: "1.2.3"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.Addr() != "" {
		t.Errorf("Addr() before Start = %q, want empty", srv.Addr())
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, body := doRequest(t, http.MethodGet, "http://"+srv.Addr()+"/api/v1/health", "", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"version":"1.2.3"`) {
		t.Errorf("GET /health = %d %s", resp.StatusCode, body)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestClose_NotStarted(t *testing.T) {
	srv, err := New(Deps{Logger: testLogger(), Session: &mockSession{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// ─── Read endpoints ─────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	_, ts := testServer(t, Deps{})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/v1/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got["status"] != "ok" || got["version"] != "test" {
		t.Errorf("body = %v", got)
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	_, ts := testServer(t, Deps{})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name       string
		state      tunnel.State
		wantStatus knxip.HealthStatus
		wantReason string
	}{
		{"connected", tunnel.StateConnected, knxip.HealthHealthy, ""},
		{"idle", tunnel.StateIdle, knxip.HealthDegraded, "session idle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &mockSession{stats: tunnel.Stats{State: tt.state, ChannelID: 7, FramesRx: 12, AcksSent: 5}}
			_, ts := testServer(t, Deps{Session: session})

			resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/v1/status", "", "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			var got StatusResponse
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got.Status != tt.wantStatus || got.Reason != tt.wantReason {
				t.Errorf("Status, Reason = %q, %q, want %q, %q", got.Status, got.Reason, tt.wantStatus, tt.wantReason)
			}
			if got.SessionID != "session-1" || got.ChannelID != 7 || got.FramesRx != 12 || got.AcksSent != 5 {
				t.Errorf("StatusResponse = %+v", got)
			}
			if got.WebSocketClients != 0 {
				t.Errorf("WebSocketClients = %d, want 0", got.WebSocketClients)
			}
		})
	}
}

func TestInventoryEndpoints(t *testing.T) {
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inv := &mockInventory{
		addresses: []knxip.GroupAddressRecord{{GroupAddress: "1/2/3", DPT: "9.001", LastValue: "21.00 °C", MessageCount: 3, LastSeen: seen}},
		devices:   []knxip.DeviceRecord{{IndividualAddress: "1.1.5", MessageCount: 2, LastSeen: seen}},
	}
	_, ts := testServer(t, Deps{Inventory: inv})

	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/addresses", `"1/2/3"`},
		{"/api/v1/devices", `"1.1.5"`},
		{"/api/v1/gateways", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := doRequest(t, http.MethodGet, ts.URL+tt.path, "", "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			if !strings.Contains(string(body), tt.want) {
				t.Errorf("body = %s, want containing %s", body, tt.want)
			}
		})
	}
}

func TestInventoryUnavailable(t *testing.T) {
	_, ts := testServer(t, Deps{})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/v1/addresses", "", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	var e Error
	if err := json.Unmarshal(body, &e); err != nil || e.Code != ErrCodeUnavailable {
		t.Errorf("error body = %s", body)
	}
}

func TestInventoryQueryError(t *testing.T) {
	_, ts := testServer(t, Deps{Inventory: &mockInventory{err: errors.New("disk I/O error")}})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/v1/devices", "", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if strings.Contains(string(body), "disk I/O") {
		t.Errorf("internal error leaked to client: %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "knxip_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	_, ts := testServer(t, Deps{Metrics: reg})
	resp, body := doRequest(t, http.MethodGet, ts.URL+"/metrics", "", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "knxip_test_total 1") {
		t.Errorf("GET /metrics = %d %s", resp.StatusCode, body)
	}

	_, bare := testServer(t, Deps{})
	if resp, _ := doRequest(t, http.MethodGet, bare.URL+"/metrics", "", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /metrics without registry = %d, want 404", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"http://dash.local"}
	_, ts := testServer(t, Deps{Config: cfg})

	for _, tt := range []struct {
		origin string
		want   string
	}{
		{"http://dash.local", "http://dash.local"},
		{"http://evil.example", ""},
	} {
		req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/telegrams", nil)
		req.Header.Set("Origin", tt.origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("Allow-Origin for %s = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

// ─── Sending ────────────────────────────────────────────────────────

func TestSendTelegram(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		cmdErr     error
		wantStatus int
		wantSent   bool
	}{
		{"write", `{"ga":"1/2/3","value":21.5}`, nil, http.StatusAccepted, true},
		{"read", `{"ga":"1/2/3","read":true}`, nil, http.StatusAccepted, true},
		{"bad json", `{"ga":`, nil, http.StatusBadRequest, false},
		{"bad address", `{"ga":"40/0/0","value":1}`, nil, http.StatusBadRequest, false},
		{"invalid command", `{"ga":"1/2/3"}`, fmt.Errorf("%w: missing value", knxip.ErrInvalidCommand), http.StatusBadRequest, false},
		{"not connected", `{"ga":"1/2/3","value":1}`, fmt.Errorf("write: %w", tunnel.ErrInvalidState), http.StatusServiceUnavailable, false},
		{"rate limited", `{"ga":"1/2/3","value":1}`, fmt.Errorf("%w: wait", knxip.ErrRateLimited), http.StatusTooManyRequests, false},
		{"transport failure", `{"ga":"1/2/3","value":1}`, fmt.Errorf("write: %w", tunnel.ErrTransport), http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &mockCommander{err: tt.cmdErr}
			_, ts := testServer(t, Deps{Commander: cmd})

			resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/v1/telegrams", tt.body, "")
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, body)
			}
			if got := len(cmd.sent) == 1; got != tt.wantSent {
				t.Fatalf("sent = %v, want %v", cmd.sent, tt.wantSent)
			}
			if tt.wantSent && cmd.sent[0].ga != knx.NewGroupAddress(1, 2, 3) {
				t.Errorf("sent ga = %s, want 1/2/3", cmd.sent[0].ga)
			}
		})
	}
}

func TestSendTelegramDecodesValue(t *testing.T) {
	cmd := &mockCommander{}
	_, ts := testServer(t, Deps{Commander: cmd})

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/v1/telegrams", `{"ga":"1/1/1","value":true,"dpt":"1.001"}`, "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d (%s)", resp.StatusCode, body)
	}
	var got TelegramResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.GA != "1/1/1" || got.Read {
		t.Errorf("TelegramResponse = %+v", got)
	}
	sent := cmd.sent[0].cmd
	if sent.Value != true || sent.DPT != "1.001" || sent.Read {
		t.Errorf("CommandMessage = %+v", sent)
	}
}

func TestSendTelegramDisabled(t *testing.T) {
	_, ts := testServer(t, Deps{})

	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/v1/telegrams", `{"ga":"1/2/3","value":1}`, "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

// ─── Auth ───────────────────────────────────────────────────────────

func TestAuth(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Secret = testSecret
	cmd := &mockCommander{}
	_, ts := testServer(t, Deps{Config: cfg, Commander: cmd})

	viewer := mustToken(t, auth.RoleViewer)
	operator := mustToken(t, auth.RoleOperator)
	write := `{"ga":"1/2/3","value":1}`

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		token      string
		wantStatus int
	}{
		{"health is open", http.MethodGet, "/api/v1/health", "", "", http.StatusOK},
		{"status without token", http.MethodGet, "/api/v1/status", "", "", http.StatusUnauthorized},
		{"status with garbage", http.MethodGet, "/api/v1/status", "", "not-a-jwt", http.StatusUnauthorized},
		{"status as viewer", http.MethodGet, "/api/v1/status", "", viewer, http.StatusOK},
		{"status via query", http.MethodGet, "/api/v1/status?token=" + viewer, "", "", http.StatusOK},
		{"send as viewer", http.MethodPost, "/api/v1/telegrams", write, viewer, http.StatusForbidden},
		{"send as operator", http.MethodPost, "/api/v1/telegrams", write, operator, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, tt.method, ts.URL+tt.path, tt.body, tt.token)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, body)
			}
		})
	}

	if len(cmd.sent) != 1 {
		t.Errorf("commands sent = %d, want 1 (operator only)", len(cmd.sent))
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"header", "Bearer abc", "", "abc"},
		{"header wins", "Bearer abc", "?token=def", "abc"},
		{"query", "", "?token=def", "def"},
		{"basic auth", "Basic dXNlcjpwYXNz", "", ""},
		{"none", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/ws"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(r); got != tt.want {
				t.Errorf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ─── WebSocket ──────────────────────────────────────────────────────

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", url, err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketStream(t *testing.T) {
	srv, ts := testServer(t, Deps{})
	conn := dialWS(t, ts, "?channels=telegram")
	waitForClients(t, srv.Hub(), 1)

	srv.Hub().Broadcast(knxip.ChannelGateway, map[string]string{"name": "ignored"})
	srv.Hub().Broadcast(knxip.ChannelTelegram, map[string]string{"ga": "1/2/3"})

	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != knxip.ChannelTelegram {
		t.Fatalf("message = %+v, want telegram event", msg)
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok || payload["ga"] != "1/2/3" {
		t.Errorf("payload = %v", msg.Payload)
	}
}

func TestWebSocketSubscribe(t *testing.T) {
	srv, ts := testServer(t, Deps{})
	conn := dialWS(t, ts, "")
	waitForClients(t, srv.Hub(), 1)

	if err := conn.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Channels: []string{"state"}}}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeResponse || msg.ID != "1" {
		t.Fatalf("subscribe reply = %+v", msg)
	}

	srv.Hub().Broadcast(knxip.ChannelState, knxip.StateMessage{From: "connecting", To: "connected"})
	if msg := readWS(t, conn); msg.EventType != knxip.ChannelState {
		t.Errorf("event = %+v, want state", msg)
	}

	tests := []struct {
		name     string
		msg      WSMessage
		wantType string
	}{
		{"ping", WSMessage{Type: WSTypePing, ID: "2"}, WSTypePong},
		{"unknown type", WSMessage{Type: "shout", ID: "3"}, WSTypeError},
		{"unknown channel", WSMessage{Type: WSTypeSubscribe, ID: "4", Payload: WSSubscribePayload{Channels: []string{"scenes"}}}, WSTypeError},
		{"unsubscribe", WSMessage{Type: WSTypeUnsubscribe, ID: "5", Payload: WSSubscribePayload{Channels: []string{"state"}}}, WSTypeResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteJSON(tt.msg); err != nil {
				t.Fatalf("WriteJSON() error = %v", err)
			}
			got := readWS(t, conn)
			if got.Type != tt.wantType || got.ID != tt.msg.ID {
				t.Errorf("reply = %+v, want type %q id %q", got, tt.wantType, tt.msg.ID)
			}
		})
	}
}

func TestWebSocketUnknownChannel(t *testing.T) {
	_, ts := testServer(t, Deps{})

	resp, _ := doRequest(t, http.MethodGet, ts.URL+"/api/v1/ws?channels=telegram,bogus", "", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Secret = testSecret
	srv, ts := testServer(t, Deps{Config: cfg})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() without token should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}

	dialWS(t, ts, "?token="+mustToken(t, auth.RoleViewer))
	waitForClients(t, srv.Hub(), 1)
}

func TestHubCloseAll(t *testing.T) {
	srv, ts := testServer(t, Deps{})
	conn := dialWS(t, ts, "?channels=telegram")
	waitForClients(t, srv.Hub(), 1)

	srv.Hub().closeAll()
	if n := srv.Hub().ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d, want 0", n)
	}

	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("ReadMessage() after closeAll should fail")
	}

	// Broadcasting to a hub with no clients is harmless.
	srv.Hub().Broadcast(knxip.ChannelTelegram, nil)
}

func TestParseChannels(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantBad string
	}{
		{"", 0, ""},
		{"telegram", 1, ""},
		{"telegram, gateway,state", 3, ""},
		{"telegram,devices", 0, "devices"},
	}
	for _, tt := range tests {
		got, bad := parseChannels(tt.in)
		if len(got) != tt.want || bad != tt.wantBad {
			t.Errorf("parseChannels(%q) = %v, %q, want %d channels, %q", tt.in, got, bad, tt.want, tt.wantBad)
		}
	}
}
