package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-knxip/internal/api"
	"github.com/nerrad567/gray-logic-knxip/internal/bridges/knxip"
	"github.com/nerrad567/gray-logic-knxip/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-knxip/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-knxip/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-knxip/internal/metrics"
	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
	"github.com/nerrad567/gray-logic-knxip/migrations"
)

type monitorFlags struct {
	output string
	quiet  bool
}

func newMonitorCmd(root *rootFlags) *cobra.Command {
	flags := &monitorFlags{}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Open a tunnel and print or bridge every group telegram",
		Long: `Connect to the configured gateway, or the first discovered gateway that
supports tunnelling, and decode every telegram until interrupted.

Enabled integrations receive each telegram as well:
  mqtt      publishes {prefix}/telegram/{ga} and accepts {prefix}/command/{ga}
  influxdb  writes one knx_telegram point per telegram
  database  keeps an inventory of devices, group addresses and gateways
  metrics   serves Prometheus counters on metrics.listen
  api       serves status, inventory, sending and a live WebSocket stream`,
		Example: `  # Print telegrams as text
  knxip monitor --config knxip.yaml

  # Print JSON lines
  knxip monitor --output json

  # Bridge only, no console output
  knxip monitor --quiet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(flags.output); err != nil {
				return err
			}
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			var out io.Writer = cmd.OutOrStdout()
			if flags.quiet {
				out = io.Discard
			}
			return runMonitor(cmd.Context(), a, out, flags.output)
		},
	}

	cmd.Flags().StringVar(&flags.output, "output", outputText, "Output format: text|json")
	cmd.Flags().BoolVar(&flags.quiet, "quiet", false, "Do not print telegrams")

	return cmd
}

// runMonitor wires the session to every enabled sink and blocks until
// ctx ends or the session closes.
func runMonitor(ctx context.Context, a *app, out io.Writer, output string) error {
	cfg := a.cfg

	var (
		reg            *prometheus.Registry
		sessionMetrics *metrics.Session
		bridgeMetrics  *metrics.Bridge
	)
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		sessionMetrics = metrics.NewSession(reg)
		bridgeMetrics = metrics.NewBridge(reg)
	}

	var obs tunnel.Observer
	if sessionMetrics != nil {
		obs = sessionMetrics
	}
	_, hasGateway := cfg.GatewayEndpoint()
	s, err := a.newSession(!hasGateway, obs)
	if err != nil {
		return err
	}
	defer s.Close()

	if reg != nil {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, reg); err != nil {
				a.log.Error("metrics server stopped", "error", err)
			}
		}()
		a.log.Info("metrics listening", "addr", cfg.Metrics.Listen)
	}

	if _, err := a.connect(ctx, s); err != nil {
		return err
	}
	defer a.disconnect(s)

	opts := knxip.BridgeOptions{
		QoS:            byte(cfg.MQTT.QoS), //nolint:gosec // validated 0-2
		Metrics:        bridgeMetrics,
		DPTs:           cfg.DPTTable(),
		Names:          cfg.DatapointNames(),
		Style:          cfg.Style(),
		SendRate:       cfg.Tunnel.SendRate,
		SendBurst:      cfg.Tunnel.SendBurst,
		HealthInterval: cfg.HealthInterval(),
		Version:        version,
		Logger:         a.log,
	}

	closers, err := attachSinks(ctx, a, &opts)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()
	if err != nil {
		return err
	}

	printer := &eventPrinter{w: out, output: output, style: opts.Style, dpts: opts.DPTs, names: opts.Names}
	opts.Session = teeEvents(ctx, s, printer.print)

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.API.WebSocket, a.log)
		go hub.Run(ctx)
		opts.Broadcaster = hub
	}

	bridge, err := knxip.NewBridge(opts)
	if err != nil {
		return err
	}

	if hub != nil {
		srv, err := startAPI(ctx, a, s, bridge, opts.Recorder, reg, hub)
		if err != nil {
			return err
		}
		defer func() {
			if err := srv.Close(); err != nil {
				a.log.Error("error closing API server", "error", err)
			}
		}()
	}

	if err := bridge.Run(ctx); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}

	st := bridge.Stats()
	a.log.Info("monitor stopped",
		"telegrams", st.Telegrams,
		"gateways", st.Gateways,
		"commands", st.Commands,
		"errors", st.Errors)
	return nil
}

// startAPI serves the HTTP API over the running session and bridge.
func startAPI(ctx context.Context, a *app, s *tunnel.Session, bridge *knxip.Bridge,
	rec knxip.TelegramRecorder, reg *prometheus.Registry, hub *api.Hub,
) (*api.Server, error) {
	deps := api.Deps{
		Config:    a.cfg.API,
		Logger:    a.log,
		Session:   s,
		Commander: bridge,
		Metrics:   reg,
		Hub:       hub,
		Version:   version,
	}
	if r, ok := rec.(*knxip.Recorder); ok && r != nil {
		deps.Inventory = r
	}

	srv, err := api.New(deps)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	return srv, nil
}

// attachSinks connects every enabled integration and sets it on opts.
// The returned closers run in reverse order, even on error.
func attachSinks(ctx context.Context, a *app, opts *knxip.BridgeOptions) ([]func(), error) {
	cfg := a.cfg
	var closers []func()

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return closers, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(a.log)
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				a.log.Error("error closing MQTT", "error", err)
			}
		})
		opts.MQTT = client
		opts.Topics = client.Topics()
		a.log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID)
	}

	if cfg.InfluxDB.Enabled {
		influx, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return closers, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		influx.SetOnError(func(err error) {
			a.log.Error("InfluxDB write failed", "error", err)
		})
		closers = append(closers, func() {
			if err := influx.Close(); err != nil {
				a.log.Error("error closing InfluxDB", "error", err)
			}
		})
		opts.Points = influx
		a.log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	if cfg.Database.Enabled {
		rec, closeDB, err := openRecorder(ctx, a)
		if err != nil {
			return closers, err
		}
		closers = append(closers, closeDB)
		opts.Recorder = rec
	}

	return closers, nil
}

// openRecorder opens and migrates the database and starts a recorder.
func openRecorder(ctx context.Context, a *app) (*knxip.Recorder, func(), error) {
	db, err := database.Open(database.ConfigFrom(a.cfg.Database))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	rec := knxip.NewRecorder(db.DB)
	if err := rec.Start(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("starting recorder: %w", err)
	}
	a.log.Info("database ready", "path", db.Path())

	return rec, func() {
		rec.Stop()
		if err := db.Close(); err != nil {
			a.log.Error("error closing database", "error", err)
		}
	}, nil
}

// teedSession hands the bridge a copy of the session's event stream
// after each event has been passed to a side observer.
type teedSession struct {
	*tunnel.Session
	events chan tunnel.Event
}

func (t *teedSession) Events() <-chan tunnel.Event { return t.events }

func teeEvents(ctx context.Context, s *tunnel.Session, fn func(tunnel.Event)) *teedSession {
	t := &teedSession{Session: s, events: make(chan tunnel.Event, cap(s.Events()))}
	go func() {
		defer close(t.events)
		src := s.Events()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-src:
				if !ok {
					return
				}
				fn(ev)
				select {
				case t.events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return t
}
