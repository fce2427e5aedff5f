package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
)

// Config is the root configuration for the KNXnet/IP client.
// Values come from defaults, then the YAML file, then environment variables.
type Config struct {
	Client     ClientConfig      `yaml:"client"`
	Discovery  DiscoveryConfig   `yaml:"discovery"`
	Tunnel     TunnelConfig      `yaml:"tunnel"`
	Datapoints []DatapointConfig `yaml:"datapoints"`
	Database   DatabaseConfig    `yaml:"database"`
	MQTT       MQTTConfig        `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig    `yaml:"influxdb"`
	Logging    LoggingConfig     `yaml:"logging"`
	Metrics    MetricsConfig     `yaml:"metrics"`
	API        APIConfig         `yaml:"api"`
}

// ClientConfig describes the local endpoint.
type ClientConfig struct {
	// LocalIP is announced to gateways in connect requests. Empty means
	// the address of the interface that routes to the gateway.
	LocalIP string `yaml:"local_ip"`

	// LocalPort is the tunnel socket port. 0 picks an ephemeral port.
	LocalPort int `yaml:"local_port"`

	// AddressStyle renders group addresses: "three-level", "two-level" or "free".
	AddressStyle string `yaml:"address_style"`
}

// DiscoveryConfig contains search request settings.
type DiscoveryConfig struct {
	MulticastGroup string        `yaml:"multicast_group"`
	Port           int           `yaml:"port"`
	Interface      string        `yaml:"interface"`
	Timeout        time.Duration `yaml:"timeout"`
	JoinGroup      bool          `yaml:"join_group"`
	TTL            int           `yaml:"ttl"`
}

// TunnelConfig selects the gateway and session limits.
type TunnelConfig struct {
	// GatewayHost skips discovery when set.
	GatewayHost       string        `yaml:"gateway_host"`
	GatewayPort       int           `yaml:"gateway_port"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	DisconnectTimeout time.Duration `yaml:"disconnect_timeout"`
	EventBuffer       int           `yaml:"event_buffer"`

	// SendRate limits outbound telegrams per second; 0 disables the limit.
	SendRate  float64 `yaml:"send_rate"`
	SendBurst int     `yaml:"send_burst"`
}

// DatapointConfig maps one group address to its datapoint type.
type DatapointConfig struct {
	GA   string `yaml:"ga"`
	DPT  string `yaml:"dpt"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled bool             `yaml:"enabled"`
	Broker  MQTTBrokerConfig `yaml:"broker"`
	Auth    MQTTAuthConfig   `yaml:"auth"`
	QoS     int              `yaml:"qos"`

	// TopicPrefix is the root of every published topic. Default: "knxip".
	TopicPrefix string `yaml:"topic_prefix"`

	// HealthInterval is how often health is published, in seconds.
	HealthInterval int `yaml:"health_interval"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains rotated file output settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// APIConfig contains the HTTP API and WebSocket settings used by monitor.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
	JWT       JWTConfig        `yaml:"jwt"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains live telegram stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// JWTConfig protects write endpoints. An empty secret leaves the API open.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KNXIP_SECTION_KEY
// For example: KNXIP_TUNNEL_GATEWAY_HOST, KNXIP_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			AddressStyle: string(knx.StyleThreeLevel),
		},
		Discovery: DiscoveryConfig{
			MulticastGroup: "224.0.23.12",
			Port:           3671,
			Timeout:        3 * time.Second,
			TTL:            16,
		},
		Tunnel: TunnelConfig{
			GatewayPort:       3671,
			ConnectTimeout:    10 * time.Second,
			DisconnectTimeout: 5 * time.Second,
			EventBuffer:       256,
			SendRate:          20,
			SendBurst:         5,
		},
		Database: DatabaseConfig{
			Path:        "./data/knxip.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "knxip",
			},
			QoS:            1,
			TopicPrefix:    "knxip",
			HealthInterval: 30,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "knx",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
			File: FileLoggingConfig{
				MaxSize:    50,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		Metrics: MetricsConfig{
			Listen: ":9464",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
			JWT: JWTConfig{
				TokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"KNXIP_CLIENT_LOCAL_IP":      &cfg.Client.LocalIP,
		"KNXIP_CLIENT_ADDRESS_STYLE": &cfg.Client.AddressStyle,
		"KNXIP_DISCOVERY_INTERFACE":  &cfg.Discovery.Interface,
		"KNXIP_TUNNEL_GATEWAY_HOST":  &cfg.Tunnel.GatewayHost,
		"KNXIP_DATABASE_PATH":        &cfg.Database.Path,
		"KNXIP_MQTT_HOST":            &cfg.MQTT.Broker.Host,
		"KNXIP_MQTT_USERNAME":        &cfg.MQTT.Auth.Username,
		"KNXIP_MQTT_PASSWORD":        &cfg.MQTT.Auth.Password,
		"KNXIP_INFLUXDB_URL":         &cfg.InfluxDB.URL,
		"KNXIP_INFLUXDB_TOKEN":       &cfg.InfluxDB.Token,
		"KNXIP_LOGGING_LEVEL":        &cfg.Logging.Level,
		"KNXIP_METRICS_LISTEN":       &cfg.Metrics.Listen,
		"KNXIP_LOGGING_FILE_PATH":    &cfg.Logging.File.Path,
		"KNXIP_DISCOVERY_MULTICAST":  &cfg.Discovery.MulticastGroup,
		"KNXIP_MQTT_CLIENT_ID":       &cfg.MQTT.Broker.ClientID,
		"KNXIP_MQTT_TOPIC_PREFIX":    &cfg.MQTT.TopicPrefix,
		"KNXIP_INFLUXDB_BUCKET":      &cfg.InfluxDB.Bucket,
		"KNXIP_INFLUXDB_ORG":         &cfg.InfluxDB.Org,
		"KNXIP_LOGGING_FORMAT":       &cfg.Logging.Format,
		"KNXIP_LOGGING_OUTPUT":       &cfg.Logging.Output,
		"KNXIP_API_HOST":             &cfg.API.Host,
		"KNXIP_API_JWT_SECRET":       &cfg.API.JWT.Secret,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"KNXIP_CLIENT_LOCAL_PORT":   &cfg.Client.LocalPort,
		"KNXIP_TUNNEL_GATEWAY_PORT": &cfg.Tunnel.GatewayPort,
		"KNXIP_MQTT_PORT":           &cfg.MQTT.Broker.Port,
		"KNXIP_API_PORT":            &cfg.API.Port,
	}
	var errs []error
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		*dst = n
	}

	bools := map[string]*bool{
		"KNXIP_DATABASE_ENABLED": &cfg.Database.Enabled,
		"KNXIP_MQTT_ENABLED":     &cfg.MQTT.Enabled,
		"KNXIP_INFLUXDB_ENABLED": &cfg.InfluxDB.Enabled,
		"KNXIP_METRICS_ENABLED":  &cfg.Metrics.Enabled,
		"KNXIP_API_ENABLED":      &cfg.API.Enabled,
	}
	for key, dst := range bools {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		*dst = b
	}

	return errors.Join(errs...)
}

// minJWTSecret is the shortest accepted HS256 signing secret.
const minJWTSecret = 16

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Every problem found joined into one message, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Client.LocalIP != "" {
		if ip, err := netip.ParseAddr(c.Client.LocalIP); err != nil || !ip.Is4() {
			errs = append(errs, "client.local_ip must be an IPv4 address")
		}
	}
	if c.Client.LocalPort < 0 || c.Client.LocalPort > 65535 {
		errs = append(errs, "client.local_port must be between 0 and 65535")
	}
	if !knx.AddressStyle(c.Client.AddressStyle).IsValid() {
		errs = append(errs, "client.address_style must be three-level, two-level or free")
	}

	if ip, err := netip.ParseAddr(c.Discovery.MulticastGroup); err != nil || !ip.Is4() || !ip.IsMulticast() {
		errs = append(errs, "discovery.multicast_group must be an IPv4 multicast address")
	}
	if c.Discovery.Port < 1 || c.Discovery.Port > 65535 {
		errs = append(errs, "discovery.port must be between 1 and 65535")
	}
	if c.Discovery.Timeout <= 0 {
		errs = append(errs, "discovery.timeout must be positive")
	}

	if c.Tunnel.GatewayPort < 1 || c.Tunnel.GatewayPort > 65535 {
		errs = append(errs, "tunnel.gateway_port must be between 1 and 65535")
	}
	if c.Tunnel.ConnectTimeout <= 0 {
		errs = append(errs, "tunnel.connect_timeout must be positive")
	}
	if c.Tunnel.EventBuffer < 1 {
		errs = append(errs, "tunnel.event_buffer must be at least 1")
	}
	if c.Tunnel.SendRate < 0 {
		errs = append(errs, "tunnel.send_rate must not be negative")
	}
	if c.Tunnel.SendRate > 0 && c.Tunnel.SendBurst < 1 {
		errs = append(errs, "tunnel.send_burst must be at least 1")
	}

	seen := make(map[knx.GroupAddress]bool, len(c.Datapoints))
	for i, dp := range c.Datapoints {
		ga, err := knx.ParseGroupAddress(dp.GA)
		if err != nil {
			errs = append(errs, fmt.Sprintf("datapoints[%d].ga %q is invalid", i, dp.GA))
			continue
		}
		if seen[ga] {
			errs = append(errs, fmt.Sprintf("datapoints[%d].ga %s is duplicated", i, ga))
		}
		seen[ga] = true
		if _, err := knx.ParseDPT(dp.DPT); err != nil {
			errs = append(errs, fmt.Sprintf("datapoints[%d].dpt %q is invalid", i, dp.DPT))
		}
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when MQTT is enabled")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when InfluxDB is enabled")
	}
	if c.Logging.Output == "file" && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when logging.output is file")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		if c.API.WebSocket.PingInterval < 1 || c.API.WebSocket.PongTimeout < 1 {
			errs = append(errs, "api.websocket ping_interval and pong_timeout must be positive")
		}
		if c.API.JWT.Secret != "" && len(c.API.JWT.Secret) < minJWTSecret {
			errs = append(errs, fmt.Sprintf("api.jwt.secret must be at least %d characters", minJWTSecret))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DPTTable builds the immutable group address to datapoint table.
// Call after Validate; invalid entries are skipped.
func (c *Config) DPTTable() *knx.DPTTable {
	entries := make(map[knx.GroupAddress]knx.DPT, len(c.Datapoints))
	for _, dp := range c.Datapoints {
		ga, err := knx.ParseGroupAddress(dp.GA)
		if err != nil {
			continue
		}
		dpt, err := knx.ParseDPT(dp.DPT)
		if err != nil {
			continue
		}
		entries[ga] = dpt
	}
	return knx.NewDPTTable(entries)
}

// DatapointNames maps group addresses to their configured names.
func (c *Config) DatapointNames() map[knx.GroupAddress]string {
	names := make(map[knx.GroupAddress]string)
	for _, dp := range c.Datapoints {
		if dp.Name == "" {
			continue
		}
		if ga, err := knx.ParseGroupAddress(dp.GA); err == nil {
			names[ga] = dp.Name
		}
	}
	return names
}

// GatewayEndpoint returns the configured gateway, if any.
func (c *Config) GatewayEndpoint() (netip.AddrPort, bool) {
	if c.Tunnel.GatewayHost == "" {
		return netip.AddrPort{}, false
	}
	ip, err := netip.ParseAddr(c.Tunnel.GatewayHost)
	if err != nil {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(ip, uint16(c.Tunnel.GatewayPort)), true //nolint:gosec // validated range
}

// DiscoveryGroup returns the search request destination.
func (c *Config) DiscoveryGroup() netip.AddrPort {
	ip, err := netip.ParseAddr(c.Discovery.MulticastGroup)
	if err != nil {
		return netip.AddrPort{}
	}
	return netip.AddrPortFrom(ip, uint16(c.Discovery.Port)) //nolint:gosec // validated range
}

// LocalEndpoint returns the local tunnel endpoint. The address is
// unspecified when client.local_ip is empty.
func (c *Config) LocalEndpoint() netip.AddrPort {
	ip := netip.IPv4Unspecified()
	if c.Client.LocalIP != "" {
		if parsed, err := netip.ParseAddr(c.Client.LocalIP); err == nil {
			ip = parsed
		}
	}
	return netip.AddrPortFrom(ip, uint16(c.Client.LocalPort)) //nolint:gosec // validated range
}

// Style returns the configured group address style.
func (c *Config) Style() knx.AddressStyle {
	return knx.AddressStyle(c.Client.AddressStyle)
}

// HealthInterval returns the MQTT health period as a Duration.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.MQTT.HealthInterval) * time.Second
}
