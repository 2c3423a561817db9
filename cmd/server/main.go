/*
main.go - Application entry point

PURPOSE:
  Starts the ledgerd CLI. Subcommands live next to this file:
    serve    HTTP API (serve.go)
    migrate  create schema and seed lookup tables (migrate.go)
    seed     load demo scenarios (seed.go)
    check    report invoices that disagree with their payments (check.go)

STARTUP SEQUENCE (root.go, before any subcommand):
  1. Load .env if present (godotenv)
  2. Read configuration from the environment (config.Load)
  3. Apply command-line flag overrides
  4. Initialize the global zerolog logger

ENVIRONMENT:
  LEDGER_ADDR, LEDGER_DB_DRIVER, LEDGER_DB_DSN, LEDGER_TX_TIMEOUT,
  LEDGER_LOCK_TIMEOUT, LEDGER_RETRY_ATTEMPTS, LEDGER_MAX_ATTACHMENT_BYTES,
  LEDGER_CORS_ORIGINS, LEDGER_CHECK_INTERVAL, LOG_LEVEL, LOG_FORMAT,
  LOG_TIME_FORMAT, LOG_OUTPUT

EXAMPLES:
  # Run with file database
  ledgerd serve --db-dsn ./data/ledger.db

  # Run against PostgreSQL
  LEDGER_DB_DRIVER=postgres LEDGER_DB_DSN=postgres://localhost/ledger ledgerd serve

  # Load every demo scenario
  ledgerd seed --scenario all

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment variables
*/
package main

func main() {
	Execute()
}
