package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "agentd",
	Short: "Field-sales invoice and collection ledger",
	Long: `agentd keeps a field agent's local invoice and collection ledger and
reconciles it with the remote accounting system over an unreliable network.

Invoices and receipts are recorded locally first and pushed in the
background; balances and catalogs are pulled back on every sync cycle.

Configuration is read from config.yaml (working directory or
/etc/ledgersync) and LEDGERSYNC_* environment variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
