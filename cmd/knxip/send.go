package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
)

type sendFlags struct {
	dpt  string
	read bool
}

func newSendCmd(root *rootFlags) *cobra.Command {
	flags := &sendFlags{}

	cmd := &cobra.Command{
		Use:   "send <group-address> [value]",
		Short: "Write a value to, or read from, a group address",
		Long: `Open a tunnel, send one GroupValue_Write (or GroupValue_Read with --read)
and disconnect.

The value is encoded with --dpt, or the datapoint type configured for the
group address. Numbers, true/false and on/off are accepted.`,
		Example: `  # Switch a light on
  knxip send 1/1/1 on --dpt 1.001

  # Set a temperature setpoint configured as 9.001
  knxip send 3/0/1 21.5

  # Ask the bus for the current value
  knxip send 3/0/2 --read`,
		Args: cobra.RangeArgs(1, 2), //nolint:mnd // address and optional value
		RunE: func(cmd *cobra.Command, args []string) error {
			ga, err := knx.ParseGroupAddress(args[0])
			if err != nil {
				return err
			}
			if flags.read == (len(args) == 2) { //nolint:mnd // value present
				return fmt.Errorf("give either a value or --read")
			}

			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				dpt  knx.DPT
				data []byte
			)
			if !flags.read {
				dpt, data, err = encodeArg(a.cfg.DPTTable(), ga, flags.dpt, args[1])
				if err != nil {
					return err
				}
			}

			_, hasGateway := a.cfg.GatewayEndpoint()
			s, err := a.newSession(!hasGateway, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			if _, err := a.connect(ctx, s); err != nil {
				return err
			}
			defer a.disconnect(s)

			if flags.read {
				if err := s.SendRead(ctx, ga); err != nil {
					return fmt.Errorf("read %s: %w", ga, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "GroupValue_Read -> %s\n", ga)
				return nil
			}
			if err := s.Send(ctx, ga, dpt, data); err != nil {
				return fmt.Errorf("write %s: %w", ga, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "GroupValue_Write -> %s: %s\n", ga, knx.Display(data, dpt))
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.dpt, "dpt", "", "Datapoint type, e.g. 1.001 or 9.001 (default: from config)")
	cmd.Flags().BoolVar(&flags.read, "read", false, "Send GroupValue_Read instead of a write")

	return cmd
}

// encodeArg encodes a command line value for ga. JSON literals are
// decoded first so "21.5" is a number and "true" a boolean; anything
// else is passed on as a string.
func encodeArg(table *knx.DPTTable, ga knx.GroupAddress, dptFlag, arg string) (knx.DPT, []byte, error) {
	dpt := table.Lookup(ga)
	if dptFlag != "" {
		parsed, err := knx.ParseDPT(dptFlag)
		if err != nil {
			return "", nil, err
		}
		dpt = parsed
	}

	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		v = arg
	}
	data, err := knx.EncodeValue(dpt, v)
	if err != nil {
		return "", nil, fmt.Errorf("encoding %q as %s: %w", arg, dpt, err)
	}
	return dpt, data, nil
}
