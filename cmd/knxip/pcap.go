package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-knxip/internal/capture"
	"github.com/nerrad567/gray-logic-knxip/internal/knxnetip"
)

type pcapFlags struct {
	port    uint16
	summary bool
	output  string
}

func newPcapCmd(root *rootFlags) *cobra.Command {
	flags := &pcapFlags{}

	cmd := &cobra.Command{
		Use:   "pcap <file>",
		Short: "Decode KNXnet/IP traffic from a pcap or pcapng capture",
		Long: `Read a packet capture and decode every IPv4/UDP datagram to or from the
KNXnet/IP port. Both classic pcap and pcapng files are accepted.

Datagrams with an unknown service type are skipped; malformed ones are
listed with their decode error.`,
		Example: `  # List every decoded frame
  knxip pcap tunnel.pcapng

  # Only count frames per service
  knxip pcap tunnel.pcap --summary

  # Gateway on a non-standard port
  knxip pcap lab.pcap --port 3700`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(flags.output); err != nil {
				return err
			}
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := capture.Options{Port: flags.port, Decoder: a.decoder()}
			return runPcap(cmd.OutOrStdout(), args[0], opts, flags)
		},
	}

	cmd.Flags().Uint16Var(&flags.port, "port", capture.DefaultPort, "KNXnet/IP UDP port")
	cmd.Flags().BoolVar(&flags.summary, "summary", false, "Print frame counts only")
	cmd.Flags().StringVar(&flags.output, "output", outputText, "Output format: text|json")

	return cmd
}

// pcapRecord is the JSON form of one decoded datagram.
type pcapRecord struct {
	Index   int    `json:"index"`
	Time    string `json:"time"`
	Src     string `json:"src"`
	Dst     string `json:"dst"`
	Service string `json:"service,omitempty"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

func runPcap(w io.Writer, path string, opts capture.Options, flags *pcapFlags) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if flags.summary {
		sum, err := capture.Summarize(f, opts)
		if err != nil {
			return err
		}
		return printSummary(w, sum, flags.output)
	}

	return capture.Decode(f, opts, func(r capture.Record) error {
		rec := pcapRecord{
			Index: r.Index,
			Time:  r.Time.UTC().Format("2006-01-02T15:04:05.000000Z"),
			Src:   r.Src.String(),
			Dst:   r.Dst.String(),
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		} else {
			rec.Service = r.Frame.Service().String()
			rec.Text = describeFrame(r.Frame)
		}

		if flags.output == outputJSON {
			b, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\n", b)
			return nil
		}
		if rec.Error != "" {
			fmt.Fprintf(w, "%5d %s %s -> %s  error: %s\n", rec.Index, rec.Time, rec.Src, rec.Dst, rec.Error)
			return nil
		}
		fmt.Fprintf(w, "%5d %s %s -> %s  %s\n", rec.Index, rec.Time, rec.Src, rec.Dst, rec.Text)
		return nil
	})
}

func printSummary(w io.Writer, sum capture.Summary, output string) error {
	if output == outputJSON {
		byService := make(map[string]int, len(sum.ByService))
		for svc, n := range sum.ByService {
			byService[svc.String()] = n
		}
		b, err := json.MarshalIndent(struct {
			Datagrams    int            `json:"datagrams"`
			DecodeErrors int            `json:"decode_errors"`
			ByService    map[string]int `json:"by_service"`
			First        string         `json:"first,omitempty"`
			Last         string         `json:"last,omitempty"`
		}{sum.Datagrams, sum.DecodeErrors, byService, formatFirst(sum), formatLast(sum)}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Fprintf(w, "%s\n", b)
		return nil
	}

	fmt.Fprintf(w, "Datagrams:     %d\n", sum.Datagrams)
	fmt.Fprintf(w, "Decode errors: %d\n", sum.DecodeErrors)
	if sum.Datagrams > 0 {
		fmt.Fprintf(w, "Span:          %s .. %s (%s)\n", formatFirst(sum), formatLast(sum), sum.Last.Sub(sum.First))
	}

	services := make([]knxnetip.ServiceType, 0, len(sum.ByService))
	for svc := range sum.ByService {
		services = append(services, svc)
	}
	sort.Slice(services, func(i, j int) bool { return services[i] < services[j] })
	if len(services) > 0 {
		fmt.Fprintf(w, "\nBy service:\n")
	}
	for _, svc := range services {
		fmt.Fprintf(w, "  %-28s %d\n", svc, sum.ByService[svc])
	}
	return nil
}

func formatFirst(sum capture.Summary) string {
	if sum.First.IsZero() {
		return ""
	}
	return sum.First.UTC().Format("2006-01-02T15:04:05Z")
}

func formatLast(sum capture.Summary) string {
	if sum.Last.IsZero() {
		return ""
	}
	return sum.Last.UTC().Format("2006-01-02T15:04:05Z")
}
