package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Show effective open balances",
	Long: `Show the derived open items: the stored remote snapshot merged with
provisional lines for local unsent invoices, net of local collections.

The result reflects the last completed sync; run "agentd sync" first for
fresh remote data.`,
	RunE: runBalances,
}

func init() {
	rootCmd.AddCommand(balancesCmd)
	balancesCmd.Flags().String("partner", "", "Limit to one partner ID")
}

func runBalances(cmd *cobra.Command, args []string) error {
	app, err := newApplication()
	if err != nil {
		return err
	}
	defer app.Close()

	var partnerID *uuid.UUID
	if raw, _ := cmd.Flags().GetString("partner"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid partner ID %q", raw)
		}
		partnerID = &id
	}

	balances, err := app.balances.EffectiveBalances(cmd.Context(), partnerID)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(balances, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
