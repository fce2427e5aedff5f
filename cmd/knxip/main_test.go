package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-knxip/internal/auth"
	"github.com/nerrad567/gray-logic-knxip/internal/capture"
	"github.com/nerrad567/gray-logic-knxip/internal/knx"
	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

// tunnellingRequestHex carries GroupValue_Write 1.1.5 -> 1/2/3 with 0C1A
// on channel 7, sequence 3.
const tunnellingRequestHex = "06100420001704070300" + "2900bce011050a03030080" + "0c1a"

// writeConfig writes a minimal config with one datapoint and a database
// in a temp dir.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "knxip.yaml")
	content := `
client:
  address_style: three-level

datapoints:
  - ga: "1/2/3"
    dpt: "9.001"
    name: "Living room temperature"

database:
  path: "` + filepath.Join(dir, "knxip.db") + `"

logging:
  level: error
  output: stderr
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(configEnv, "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// ─── Commands ───────────────────────────────────────────────────────

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "knxip dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"decode without input", []string{"decode"}, "requires at least 1 arg"},
		{"pcap without file", []string{"pcap"}, "accepts 1 arg"},
		{"send without address", []string{"send"}, "accepts between 1 and 2 arg"},
		{"send without value", []string{"send", "1/2/3"}, "give either a value or --read"},
		{"send value and read", []string{"send", "1/2/3", "1", "--read"}, "give either a value or --read"},
		{"send bad address", []string{"send", "1/2/300", "1"}, "sub group"},
		{"inventory unknown kind", []string{"inventory", "scenes"}, "invalid argument"},
		{"monitor bad output", []string{"monitor", "--output", "xml"}, "invalid output format"},
		{"discover extra args", []string{"discover", "now"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", "/nonexistent/path/knxip.yaml", "decode", "0610")
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want config load failure", err)
	}
}

func TestDecodeCmd(t *testing.T) {
	cfg := writeConfig(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr bool
	}{
		{
			name: "tunnelling request",
			args: []string{"decode", tunnellingRequestHex},
			want: []string{"TUNNELLING_REQUEST ch=7 seq=3", "1.1.5 -> 1/2/3", "21.00 °C"},
		},
		{
			name: "chunked with separators",
			args: []string{"decode", "0x06:10:04:20:00:17", "04 07 03 00", "2900bce011050a030300800c1a"},
			want: []string{"TUNNELLING_REQUEST", "21.00 °C"},
		},
		{
			name: "bare cemi",
			args: []string{"decode", "--cemi", "2900bce011050a030300800c1a"},
			want: []string{"L_Data.ind", "21.00 °C"},
		},
		{
			name: "unknown service",
			args: []string{"decode", "061004ff0006"},
			want: []string{"unknown service"},
		},
		{
			name:    "truncated",
			args:    []string{"decode", "0610042000170407"},
			wantErr: true,
		},
		{
			name:    "not hex",
			args:    []string{"decode", "zz"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"--config", cfg}, tt.args...)...)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got output %q", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output = %q, want containing %q", out, w)
				}
			}
		})
	}
}

func TestInventoryEmpty(t *testing.T) {
	cfg := writeConfig(t)

	for _, kind := range []string{"addresses", "devices", "gateways"} {
		t.Run(kind, func(t *testing.T) {
			out, err := execute(t, "--config", cfg, "inventory", kind)
			if err != nil {
				t.Fatalf("inventory error = %v", err)
			}
			if want := "No " + kind + " recorded"; !strings.Contains(out, want) {
				t.Errorf("output = %q, want %q", out, want)
			}
		})
	}
}

func TestInventoryJSON(t *testing.T) {
	cfg := writeConfig(t)
	out, err := execute(t, "--config", cfg, "inventory", "--output", "json")
	if err != nil {
		t.Fatalf("inventory error = %v", err)
	}
	if strings.TrimSpace(out) != "null" {
		t.Errorf("output = %q, want null for an empty inventory", out)
	}
}

func TestTokenCmd(t *testing.T) {
	cfg := writeConfig(t)

	if _, err := execute(t, "--config", cfg, "token"); !errors.Is(err, errNoSecret) {
		t.Errorf("token without secret error = %v, want errNoSecret", err)
	}
	if _, err := execute(t, "--config", cfg, "token", "--role", "admin"); !errors.Is(err, auth.ErrInvalidRole) {
		t.Errorf("token with bad role error = %v, want ErrInvalidRole", err)
	}

	const secret = "monitor-api-secret-0123456789"
	t.Setenv("KNXIP_API_JWT_SECRET", secret)
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", cfg, "token", "--subject", "ops", "--role", "operator", "--ttl", "5m"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("token error = %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(out.String()), secret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "ops" || claims.Role != auth.RoleOperator {
		t.Errorf("claims = %+v", claims)
	}
	if ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time); ttl != 5*time.Minute {
		t.Errorf("token lifetime = %v, want 5m", ttl)
	}
}

// ─── Helpers ────────────────────────────────────────────────────────

func TestEncodeArg(t *testing.T) {
	ga := knx.NewGroupAddress(1, 2, 3)
	table := knx.NewDPTTable(map[knx.GroupAddress]knx.DPT{ga: knx.DPTTemperature})

	tests := []struct {
		name     string
		dptFlag  string
		arg      string
		wantDPT  knx.DPT
		wantHex  string
		wantFail bool
	}{
		{"configured dpt", "", "21", knx.DPTTemperature, "0c1a", false},
		{"explicit switch", "1.001", "on", knx.DPTSwitch, "01", false},
		{"json bool", "1.001", "false", knx.DPTSwitch, "00", false},
		{"percentage", "5.001", "100", knx.DPTPercentage, "ff", false},
		{"bad dpt", "99.1", "1", "", "", true},
		{"text for float", "", "warm", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dpt, data, err := encodeArg(table, ga, tt.dptFlag, tt.arg)
			if tt.wantFail {
				if err == nil {
					t.Errorf("encodeArg() = %s %x, want error", dpt, data)
				}
				return
			}
			if err != nil {
				t.Fatalf("encodeArg() error = %v", err)
			}
			if dpt != tt.wantDPT || knx.ToHex(data) != tt.wantHex {
				t.Errorf("encodeArg() = %s %x, want %s %s", dpt, data, tt.wantDPT, tt.wantHex)
			}
		})
	}
}

func TestCleanHex(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0610", "0610"},
		{" 0x06 10 ", "0610"},
		{"06:10:04", "061004"},
		{"0X0a\t0b", "0a0b"},
	}
	for _, tt := range tests {
		if got := cleanHex(tt.in); got != tt.want {
			t.Errorf("cleanHex(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDescribeFrame(t *testing.T) {
	ep := knxnetip.NewHPAI(netip.MustParseAddrPort("10.0.0.10:3671"))

	tests := []struct {
		name  string
		frame knxnetip.Frame
		want  string
	}{
		{"search", knxnetip.SearchRequestFrame{Discovery: ep}, "SEARCH_REQUEST reply-to=10.0.0.10:3671"},
		{"connection state", knxnetip.ConnectionStateResponseFrame{ChannelID: 4}, "CONNECTIONSTATE_RESPONSE ch=4"},
		{"disconnect", knxnetip.DisconnectRequestFrame{ChannelID: 4, Control: ep}, "DISCONNECT_REQUEST ch=4 control=10.0.0.10:3671"},
		{"ack", knxnetip.TunnellingAckFrame{ChannelID: 4, Sequence: 9}, "TUNNELLING_ACK ch=4 seq=9"},
		{"non l_data", knxnetip.TunnellingRequestFrame{ChannelID: 4, Sequence: 1, CEMI: []byte{0xFC, 0x00}}, "cemi=fc00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeFrame(tt.frame); !strings.HasPrefix(got, tt.want) {
				t.Errorf("describeFrame() = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestPrintSummary(t *testing.T) {
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sum := capture.Summary{
		Datagrams:    3,
		DecodeErrors: 1,
		ByService: map[knxnetip.ServiceType]int{
			knxnetip.TunnellingRequest: 1,
			knxnetip.TunnellingAck:     1,
		},
		First: first,
		Last:  first.Add(5 * time.Second),
	}

	var text bytes.Buffer
	if err := printSummary(&text, sum, outputText); err != nil {
		t.Fatalf("printSummary() error = %v", err)
	}
	for _, want := range []string{"Datagrams:     3", "Decode errors: 1", "(5s)", "TUNNELLING_REQUEST", "TUNNELLING_ACK"} {
		if !strings.Contains(text.String(), want) {
			t.Errorf("text summary missing %q:\n%s", want, text.String())
		}
	}

	var js bytes.Buffer
	if err := printSummary(&js, sum, outputJSON); err != nil {
		t.Fatalf("printSummary() error = %v", err)
	}
	var got struct {
		Datagrams int            `json:"datagrams"`
		ByService map[string]int `json:"by_service"`
		First     string         `json:"first"`
	}
	if err := json.Unmarshal(js.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Datagrams != 3 || got.ByService["TUNNELLING_ACK"] != 1 || got.First != "2026-03-01T12:00:00Z" {
		t.Errorf("json summary = %+v", got)
	}
}

func TestPrintGateways(t *testing.T) {
	gw := tunnel.Gateway{
		Control: knxnetip.NewHPAI(netip.MustParseAddrPort("10.0.0.10:3671")),
		Info:    knxnetip.DeviceInfo{Name: "IP Router"},
		HasInfo: true,
	}

	var empty bytes.Buffer
	if err := printGateways(&empty, nil, outputText); err != nil {
		t.Fatalf("printGateways() error = %v", err)
	}
	if !strings.Contains(empty.String(), "No gateways discovered") {
		t.Errorf("empty output = %q", empty.String())
	}

	var text bytes.Buffer
	if err := printGateways(&text, []tunnel.Gateway{gw}, outputText); err != nil {
		t.Fatalf("printGateways() error = %v", err)
	}
	if !strings.Contains(text.String(), "IP Router") || !strings.Contains(text.String(), "10.0.0.10:3671") {
		t.Errorf("text output = %q", text.String())
	}

	var js bytes.Buffer
	if err := printGateways(&js, []tunnel.Gateway{gw}, outputJSON); err != nil {
		t.Fatalf("printGateways() error = %v", err)
	}
	var msgs []map[string]any
	if err := json.Unmarshal(js.Bytes(), &msgs); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0]["name"] != "IP Router" {
		t.Errorf("json output = %v", msgs)
	}
}

func TestEventPrinter(t *testing.T) {
	ga := knx.NewGroupAddress(1, 2, 3)
	raw, _ := knx.FromHex("2900bce011050a030300800c1a")
	dec := knx.Decoder{Datapoints: knx.NewDPTTable(map[knx.GroupAddress]knx.DPT{ga: knx.DPTTemperature})}
	frame, err := dec.DecodeCEMI(raw)
	if err != nil {
		t.Fatalf("DecodeCEMI() error = %v", err)
	}
	ev := tunnel.TelegramEvent{Time: time.Now(), Sequence: 3, CEMI: raw, Frame: &frame}

	var text bytes.Buffer
	p := &eventPrinter{w: &text, output: outputText, names: map[knx.GroupAddress]string{ga: "Living room"}}
	p.print(ev)
	if !strings.Contains(text.String(), "#003") || !strings.Contains(text.String(), "(Living room)") {
		t.Errorf("text line = %q", text.String())
	}

	var js bytes.Buffer
	p = &eventPrinter{w: &js, output: outputJSON, dpts: dec.Datapoints}
	p.print(ev)
	p.print(tunnel.StateEvent{From: tunnel.StateIdle, To: tunnel.StateConnecting})
	lines := strings.Split(strings.TrimSpace(js.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("json lines = %d, want 1 (state events are not printed)", len(lines))
	}
	var msg map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg["ga"] != "1/2/3" || msg["value"] != 21.0 {
		t.Errorf("json message = %v", msg)
	}
}

func TestImportCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	csv := "Group name;Address;DatapointType\n" +
		"Heating;1/-/-;\n" +
		"Temperature;1/2/3;DPST-9-1\n" +
		"Mode;1/2/4;DPST-20-102\n"
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out, err := execute(t, "import", path)
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	for _, want := range []string{"datapoints:", "ga: 1/2/3", `dpt: "9.001"`, "name: Temperature"} {
		if !strings.Contains(out, want) {
			t.Errorf("import output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "1/2/4") {
		t.Errorf("import output includes untyped address:\n%s", out)
	}

	out, err = execute(t, "import", path, "--output", "json")
	if err != nil {
		t.Fatalf("import --output json error = %v", err)
	}
	var res struct {
		Format    string `json:"format"`
		Addresses []struct {
			Address  string `json:"address"`
			Location string `json:"location"`
		} `json:"addresses"`
		Warnings []struct {
			Code string `json:"code"`
		} `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if res.Format != "csv" || len(res.Addresses) != 2 || len(res.Warnings) != 1 {
		t.Errorf("json result = %+v", res)
	}
	if res.Addresses[0].Address != "1/2/3" || res.Addresses[0].Location != "Heating" {
		t.Errorf("Addresses[0] = %+v, want 1/2/3 in Heating", res.Addresses[0])
	}

	if _, err := execute(t, "import", path, "--output", "text"); err == nil || !strings.Contains(err.Error(), "invalid output format") {
		t.Errorf("import --output text error = %v", err)
	}
	if _, err := execute(t, "import", filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("import of missing file should fail")
	}
}
