// Command poagov watches the POA Network governance contracts and notifies
// validators of newly created ballots.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmagro/poagov/internal/env"
)

const defaultConfigPath = "config/poagov.yaml"

func rootCmd() *cobra.Command {
	opts := &runOptions{}

	root := &cobra.Command{
		Use:   "poagov",
		Short: "Notify validators of new POA Network governance ballots",
		Long: `poagov polls a POA network's governance contracts for BallotCreated
events and sends a notification for each new ballot.

Examples:
  poagov --core --latest
  poagov run --sokol -k -t --start 0x5f5e10 --email
  poagov contracts --xdai`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(cmd, opts)
		},
	}

	root.PersistentFlags().String("config", defaultConfigPath, "Config file path")
	root.PersistentFlags().String("env-file", ".env", "Environment file loaded before the config")
	root.PersistentFlags().StringVar(&opts.network, "network", "", "Network to poll: core|sokol|xdai")
	root.PersistentFlags().BoolVar(&opts.core, "core", false, "Use the core network")
	root.PersistentFlags().BoolVar(&opts.sokol, "sokol", false, "Use the sokol network")
	root.PersistentFlags().BoolVar(&opts.xdai, "xdai", false, "Use the xdai network")
	root.MarkFlagsMutuallyExclusive("network", "core", "sokol", "xdai")

	addRunFlags(root, opts)
	root.AddCommand(runCmd(opts))
	root.AddCommand(contractsCmd(opts))
	return root
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadEnv(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		return nil
	}
	return env.Load(path)
}
