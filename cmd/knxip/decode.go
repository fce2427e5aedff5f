package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
)

type decodeFlags struct {
	cemi bool
}

func newDecodeCmd(root *rootFlags) *cobra.Command {
	flags := &decodeFlags{}

	cmd := &cobra.Command{
		Use:   "decode <hex>...",
		Short: "Decode KNXnet/IP datagrams or CEMI frames given as hex",
		Long: `Decode a hex string and print a one-line summary.

Input is a complete KNXnet/IP datagram unless --cemi is set. Arguments are
concatenated, so a datagram can be pasted in chunks. Spaces, colons and a
leading 0x are ignored. Group values are rendered with the datapoint
types from the configuration.`,
		Example: `  # A tunnelling request carrying a temperature
  knxip decode 06100420001704070300 2900bce011050a03030080 0c1a

  # A bare CEMI frame
  knxip decode --cemi 2900bce011050a030300800c1a`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			raw, err := knx.FromHex(cleanHex(strings.Join(args, "")))
			if err != nil {
				return err
			}

			dec := a.decoder()
			out := cmd.OutOrStdout()
			if flags.cemi {
				f, err := dec.CEMI.DecodeCEMI(raw)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s\n", f.Code, f.Text)
				return nil
			}

			f, err := dec.Decode(raw)
			if errors.Is(err, knxnetip.ErrUnknownServiceType) {
				fmt.Fprintf(out, "unknown service: %v\n", err)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, describeFrame(f))
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.cemi, "cemi", false, "Input is a CEMI frame without KNXnet/IP header")

	return cmd
}

func cleanHex(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	return strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(s)
}
