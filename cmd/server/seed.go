package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/payment-ledger/api"
	"github.com/warp/payment-ledger/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo scenarios",
	Long: `Run demo scenarios against the configured database. Scenarios only
add data: each creates a customer, an invoice and its payments.`,
	Example: `  ledgerd seed --scenario all
  ledgerd seed --scenario over-total --print`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("scenario", "all", "Scenario id, or \"all\"")
	seedCmd.Flags().Bool("print", false, "Print scenario results as JSON")
}

func runSeed(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("seed")
	scenarioID, _ := cmd.Flags().GetString("scenario")
	printJSON, _ := cmd.Flags().GetBool("print")

	svc, store, err := openService(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ids := []string{scenarioID}
	if scenarioID == "all" {
		ids = ids[:0]
		for _, sc := range api.Scenarios() {
			ids = append(ids, sc.ID)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, id := range ids {
		result, err := api.RunScenario(cmd.Context(), svc, id)
		if err != nil {
			return err
		}
		log.Info().
			Str("scenario", id).
			Int64("invoice_id", result.Invoice.ID).
			Str("balance", result.Invoice.Balance).
			Str("status", result.Invoice.Status).
			Msg("scenario loaded")
		if printJSON {
			if err := enc.Encode(result); err != nil {
				return err
			}
		}
	}
	return nil
}
