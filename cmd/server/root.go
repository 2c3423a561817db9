package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/warp/payment-ledger/config"
	"github.com/warp/payment-ledger/ledger"
	"github.com/warp/payment-ledger/logger"
	"github.com/warp/payment-ledger/store/postgres"
	"github.com/warp/payment-ledger/store/sqlite"
)

var version = "1.0.0"

// cfg is loaded once in PersistentPreRunE and shared by all subcommands.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ledgerd",
	Short: "Invoice and payment ledger",
	Long: `ledgerd tracks invoices and the payments made against them.

Every payment status change is validated against the invoice total and
recomputes the invoice balance and status in the same transaction.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is normal outside development.
		_ = godotenv.Load()

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, loaded)
		cfg = loaded

		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("db-driver", "", "Database driver: sqlite or postgres (overrides LEDGER_DB_DRIVER)")
	rootCmd.PersistentFlags().String("db-dsn", "", "Database path or DSN (overrides LEDGER_DB_DSN)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides LOG_LEVEL)")
}

func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	if v, _ := cmd.Flags().GetString("db-driver"); v != "" {
		c.DBDriver = v
	}
	if v, _ := cmd.Flags().GetString("db-dsn"); v != "" {
		c.DBDSN = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		c.LogLevel = v
	}
}

// ledgerStore is what the commands need from either backend.
type ledgerStore interface {
	ledger.Store
	Migrate(ctx context.Context) error
	Close() error
}

// openStore opens (and migrates) the configured backend.
func openStore(ctx context.Context, c *config.Config) (ledgerStore, error) {
	switch c.DBDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, c.DBDSN, postgres.WithLockTimeout(c.LockTimeout))
	case config.DriverSQLite:
		return sqlite.New(c.DBDSN, sqlite.WithBusyTimeout(c.LockTimeout))
	}
	return nil, fmt.Errorf("unsupported database driver %q", c.DBDriver)
}

// openService opens the store and builds the ledger service over it.
func openService(ctx context.Context, c *config.Config) (*ledger.Service, ledgerStore, error) {
	store, err := openStore(ctx, c)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	catalog, err := ledger.LoadCatalog(ctx, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	svc := ledger.NewService(store, catalog, c.LedgerOptions(), logger.WithComponent("ledger"))
	return svc, store, nil
}
