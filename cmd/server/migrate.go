package main

import (
	"github.com/spf13/cobra"
	"github.com/warp/payment-ledger/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema and seed lookup tables",
	Long: `Create all tables and seed the payment status, invoice status and
payment method lookup tables. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.WithComponent("migrate")

		// Opening a store migrates it; run once more explicitly so the
		// command reports its own error.
		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(cmd.Context()); err != nil {
			return err
		}
		log.Info().Str("db_driver", cfg.DBDriver).Msg("schema up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
