// knxip - KNXnet/IP client
//
// knxip discovers KNXnet/IP gateways on the local network, opens a
// tunnelling connection and decodes the group telegrams flowing through
// it. Telegrams can be bridged to MQTT, InfluxDB and a SQLite inventory,
// and captured traffic can be decoded offline from pcap files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// configEnv names the config file when --config is not given.
const configEnv = "KNXIP_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "knxip",
		Short: "KNXnet/IP discovery, tunnelling and telegram decoding",
		Long: `knxip talks to KNX installations through KNXnet/IP gateways.

It discovers gateways with multicast search requests, opens a tunnelling
connection, acknowledges every tunnelled frame and decodes the group
telegrams it carries. The monitor command can forward telegrams to MQTT,
InfluxDB and a SQLite inventory of the bus.

Configuration is read from --config, or the file named by KNXIP_CONFIG.
Every setting can be overridden with KNXIP_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", os.Getenv(configEnv), "Configuration file (YAML)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override logging.level: debug|info|warn|error")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newDiscoverCmd(flags))
	root.AddCommand(newMonitorCmd(flags))
	root.AddCommand(newSendCmd(flags))
	root.AddCommand(newDecodeCmd(flags))
	root.AddCommand(newPcapCmd(flags))
	root.AddCommand(newInventoryCmd(flags))
	root.AddCommand(newTokenCmd(flags))
	root.AddCommand(newImportCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "knxip %s (commit %s, built %s)\n", version, commit, date)
			return nil
		},
	}
}
