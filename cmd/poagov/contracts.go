package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/dmagro/poagov/internal/config"
)

var (
	bold = color.New(color.Bold).SprintFunc()
	dim  = color.New(color.Faint).SprintFunc()
)

func contractsCmd(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contracts",
		Short: "List the contracts a run would monitor",
		Long: `Resolve the config and flags exactly like run does and print the
selected governance contracts without contacting the node.

Examples:
  poagov contracts --core
  poagov contracts --sokol --v2 -k`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, warnings, err := resolveSettings(cmd, opts)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.YellowString("Warning:"), w)
			}
			renderContracts(cmd.OutOrStdout(), settings)
			return nil
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func renderContracts(w io.Writer, s *config.Settings) {
	fmt.Fprintf(w, "%s %s %s\n\n", bold("Network:"), s.Network, dim(s.Endpoint))

	headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
	tbl := table.New("Kind", "Version", "Contract", "Address").WithWriter(w)
	tbl.WithHeaderFormatter(headerFmt)
	for _, d := range s.Contracts {
		tbl.AddRow(d.Kind, d.Version, d.Kind.ContractName(), d.Address.Hex())
	}
	tbl.Print()

	fmt.Fprintf(w, "\n%s %s   %s %s\n", bold("Start:"), s.StartBlock, bold("Block time:"), s.BlockTime)
}
