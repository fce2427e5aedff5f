package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-knxip/internal/bridges/knxip"
	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

type discoverFlags struct {
	timeout time.Duration
	output  string
}

func newDiscoverCmd(root *rootFlags) *cobra.Command {
	flags := &discoverFlags{}

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find KNXnet/IP gateways with a multicast search request",
		Long: `Discover KNXnet/IP gateways by sending a search request to the
discovery multicast group (224.0.23.12:3671 by default) and listing every
answer received before the timeout.

Gateways behind NAT that advertise 0.0.0.0:0 are listed with the address
their answer came from.`,
		Example: `  # Search with the configured timeout
  knxip discover

  # Wait longer and print JSON
  knxip discover --timeout 10s --output json`,
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

			timeout := flags.timeout
			if timeout <= 0 {
				timeout = a.cfg.Discovery.Timeout
			}

			s, err := a.newSession(true, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			gws, err := discover(cmd.Context(), s, timeout)
			if err != nil {
				return err
			}
			return printGateways(cmd.OutOrStdout(), gws, flags.output)
		},
	}

	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "How long to collect answers (default: discovery.timeout)")
	cmd.Flags().StringVar(&flags.output, "output", outputText, "Output format: text|json")

	return cmd
}

func printGateways(w io.Writer, gws []tunnel.Gateway, output string) error {
	if output == outputJSON {
		msgs := make([]knxip.GatewayMessage, 0, len(gws))
		for _, gw := range gws {
			msgs = append(msgs, knxip.NewGatewayMessage(gw))
		}
		data, err := json.MarshalIndent(msgs, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Fprintf(w, "%s\n", data)
		return nil
	}

	if len(gws) == 0 {
		fmt.Fprintf(w, "No gateways discovered\n")
		return nil
	}

	fmt.Fprintf(w, "Discovered %d gateway(s):\n\n", len(gws))
	for i, gw := range gws {
		msg := knxip.NewGatewayMessage(gw)
		fmt.Fprintf(w, "Gateway %d:\n", i+1)
		fmt.Fprintf(w, "  Name:       %s\n", msg.Name)
		fmt.Fprintf(w, "  Endpoint:   %s\n", msg.Endpoint)
		if gw.HasInfo {
			fmt.Fprintf(w, "  Address:    %s\n", msg.IndividualAddress)
			fmt.Fprintf(w, "  Serial:     %s\n", msg.Serial)
			fmt.Fprintf(w, "  MAC:        %s\n", msg.MAC)
		}
		fmt.Fprintf(w, "  Tunnelling: %t\n", msg.Tunnelling)
		if i < len(gws)-1 {
			fmt.Fprintf(w, "\n")
		}
	}
	return nil
}
