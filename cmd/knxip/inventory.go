package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-knxip/internal/bridges/knxip"
)

const (
	inventoryAddresses = "addresses"
	inventoryDevices   = "devices"
	inventoryGateways  = "gateways"
)

type inventoryFlags struct {
	output string
}

func newInventoryCmd(root *rootFlags) *cobra.Command {
	flags := &inventoryFlags{}

	cmd := &cobra.Command{
		Use:   "inventory [addresses|devices|gateways]",
		Short: "List what monitor has recorded in the database",
		Long: `Print the bus inventory kept in database.path by the monitor command:
group addresses with their last value, source devices, or gateways.

Rows are ordered by when they were last seen, most recent first.`,
		Example: `  knxip inventory
  knxip inventory devices --output json`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{inventoryAddresses, inventoryDevices, inventoryGateways},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(flags.output); err != nil {
				return err
			}
			kind := inventoryAddresses
			if len(args) == 1 {
				kind = args[0]
			}

			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			rec, closeDB, err := openRecorder(ctx, a)
			if err != nil {
				return err
			}
			defer closeDB()

			return printInventory(ctx, cmd.OutOrStdout(), rec, kind, flags.output)
		},
	}

	cmd.Flags().StringVar(&flags.output, "output", outputText, "Output format: text|json")

	return cmd
}

func printInventory(ctx context.Context, w io.Writer, rec *knxip.Recorder, kind, output string) error {
	var (
		rows   any
		header string
		lines  []string
	)

	switch kind {
	case inventoryDevices:
		devices, err := rec.Devices(ctx)
		if err != nil {
			return err
		}
		rows = devices
		header = "ADDRESS\tMESSAGES\tFIRST SEEN\tLAST SEEN"
		for _, d := range devices {
			lines = append(lines, fmt.Sprintf("%s\t%d\t%s\t%s",
				d.IndividualAddress, d.MessageCount, stamp(d.FirstSeen), stamp(d.LastSeen)))
		}
	case inventoryGateways:
		gateways, err := rec.Gateways(ctx)
		if err != nil {
			return err
		}
		rows = gateways
		header = "ENDPOINT\tNAME\tADDRESS\tSERIAL\tMAC\tTUNNELLING\tLAST SEEN"
		for _, g := range gateways {
			lines = append(lines, fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%t\t%s",
				g.Endpoint, g.Name, g.IndividualAddress, g.Serial, g.MAC, g.Tunnelling, stamp(g.LastSeen)))
		}
	default:
		addrs, err := rec.GroupAddresses(ctx)
		if err != nil {
			return err
		}
		rows = addrs
		header = "GROUP\tDPT\tLAST VALUE\tMESSAGES\tRESPONDS\tLAST SEEN"
		for _, g := range addrs {
			lines = append(lines, fmt.Sprintf("%s\t%s\t%s\t%d\t%t\t%s",
				g.GroupAddress, g.DPT, g.LastValue, g.MessageCount, g.HasReadResponse, stamp(g.LastSeen)))
		}
	}

	if output == outputJSON {
		b, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Fprintf(w, "%s\n", b)
		return nil
	}

	if len(lines) == 0 {
		fmt.Fprintf(w, "No %s recorded\n", kind)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0) //nolint:mnd // column padding
	fmt.Fprintln(tw, header)
	for _, l := range lines {
		fmt.Fprintln(tw, l)
	}
	return tw.Flush()
}

func stamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
