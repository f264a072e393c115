// Command scanctl administers the packaging scan service: rule import,
// schema migration, offline code validation and pallet label printing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "scanctl",
		Short:         "Administer the packaging scan service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./config.yaml or /etc/mfg-scans/config.yaml)")

	cmd.AddCommand(
		newRulesCmd(opts),
		newMigrateCmd(opts),
		newValidateCmd(opts),
		newLabelCmd(opts),
	)
	return cmd
}
