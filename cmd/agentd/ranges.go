package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/fieldsales/ledgersync/internal/domain/shared"
)

var rangesCmd = &cobra.Command{
	Use:   "ranges",
	Short: "Show the configured document number ranges",
	RunE:  runRanges,
}

var configureRangeCmd = &cobra.Command{
	Use:   "configure-range <kind> <start> <end>",
	Short: "Create or replace a document number range",
	Long: `Create or replace the number range for a counter kind.

Kind is "invoice" or "receipt". Replacing a range resets its cursor to
start, so a new range must not overlap an already used one.`,
	Example: `  agentd configure-range invoice 1000 1999
  agentd configure-range receipt 300 899`,
	Args: cobra.ExactArgs(3),
	RunE: runConfigureRange,
}

func init() {
	rootCmd.AddCommand(rangesCmd)
	rootCmd.AddCommand(configureRangeCmd)
}

func runRanges(cmd *cobra.Command, args []string) error {
	app, err := newApplication()
	if err != nil {
		return err
	}
	defer app.Close()

	statuses := make([]any, 0, 2)
	for _, kind := range []ledger.CounterKind{ledger.CounterKindInvoice, ledger.CounterKindReceipt} {
		status, err := app.invoices.GetNumberRangeStatus(cmd.Context(), kind)
		if err != nil {
			if errors.Is(err, shared.ErrRangeNotConfigured) {
				statuses = append(statuses, map[string]string{"kind": kind.String(), "status": "not configured"})
				continue
			}
			return err
		}
		statuses = append(statuses, status)
	}

	out, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runConfigureRange(cmd *cobra.Command, args []string) error {
	kind := ledger.CounterKind(args[0])
	start, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid start number %q", args[1])
	}
	end, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid end number %q", args[2])
	}

	app, err := newApplication()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.invoices.ConfigureNumberRange(cmd.Context(), kind, start, end); err != nil {
		return err
	}
	fmt.Printf("Configured %s range %d-%d\n", kind, start, end)
	return nil
}
