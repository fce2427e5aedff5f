package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-knxip/internal/etsimport"
	"github.com/nerrad567/gray-logic-knxip/internal/infrastructure/config"
)

const outputYAML = "yaml"

type importFlags struct {
	output string
	quiet  bool
}

func newImportCmd() *cobra.Command {
	flags := &importFlags{}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Build the datapoints table from an ETS export",
		Long: `Read group addresses from an ETS project (.knxproj) or an ETS group
address export (.xml or .csv) and print a datapoints section that can be
pasted into the configuration file.

Addresses without a datapoint type, or with a type knxip cannot decode,
are left out and reported as warnings on stderr. Use --output json to see
every address with its group range path.`,
		Example: `  knxip import house.knxproj >> knxip.yaml
  knxip import "Group Addresses.csv" --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.output != outputYAML && flags.output != outputJSON {
				return fmt.Errorf("invalid output format %q; must be %q or %q", flags.output, outputYAML, outputJSON)
			}

			res, err := etsimport.ParseFile(args[0])
			if err != nil {
				return fmt.Errorf("importing %s: %w", args[0], err)
			}
			if !flags.quiet {
				printImportWarnings(cmd.ErrOrStderr(), res.Warnings)
			}
			return printImport(cmd.OutOrStdout(), res, flags.output)
		},
	}

	cmd.Flags().StringVar(&flags.output, "output", outputYAML, "Output format: yaml|json")
	cmd.Flags().BoolVar(&flags.quiet, "quiet", false, "Do not print warnings")

	return cmd
}

// importDatapoints converts the typed addresses of an import into
// configuration entries.
func importDatapoints(res *etsimport.Result) []config.DatapointConfig {
	typed := res.Typed()
	out := make([]config.DatapointConfig, 0, len(typed))
	for _, ga := range typed {
		out = append(out, config.DatapointConfig{
			GA:   ga.Address.String(),
			DPT:  string(ga.DPT),
			Name: ga.Name,
		})
	}
	return out
}

func printImport(w io.Writer, res *etsimport.Result, output string) error {
	if output == outputJSON {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Fprintf(w, "%s\n", b)
		return nil
	}

	doc := struct {
		Datapoints []config.DatapointConfig `yaml:"datapoints"`
	}{importDatapoints(res)}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2) //nolint:mnd // matches the example config
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("marshal YAML: %w", err)
	}
	return enc.Close()
}

func printImportWarnings(w io.Writer, warnings []etsimport.Warning) {
	for _, warn := range warnings {
		fmt.Fprintf(w, "warning: %s %s: %s\n", warn.Address, warn.Code, warn.Message)
	}
}
