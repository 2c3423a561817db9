package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payment-ledger/ledger"
)

var envKeys = []string{
	"LEDGER_ADDR", "LEDGER_CORS_ORIGINS", "LEDGER_DB_DRIVER", "LEDGER_DB_DSN",
	"LEDGER_LOCK_TIMEOUT", "LEDGER_TX_TIMEOUT", "LEDGER_RETRY_ATTEMPTS",
	"LEDGER_MAX_ATTACHMENT_BYTES", "LEDGER_CHECK_INTERVAL", "LOG_LEVEL", "LOG_FORMAT", "LOG_TIME_FORMAT", "LOG_OUTPUT",
}

// clearEnv blanks every variable Load reads; empty values fall back to
// defaults.
func clearEnv(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "./data/ledger.db", cfg.DBDSN)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, int64(ledger.DefaultMaxAttachmentBytes), cfg.MaxAttachmentBytes)
	assert.Equal(t, time.Hour, cfg.CheckInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_ADDR", ":9999")
	t.Setenv("LEDGER_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("LEDGER_DB_DRIVER", "Postgres")
	t.Setenv("LEDGER_DB_DSN", "postgres://ledger@localhost/ledger")
	t.Setenv("LEDGER_TX_TIMEOUT", "750ms")
	t.Setenv("LEDGER_RETRY_ATTEMPTS", "5")
	t.Setenv("LEDGER_CHECK_INTERVAL", "0")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 750*time.Millisecond, cfg.TxTimeout)
	assert.Zero(t, cfg.CheckInterval)

	opts := cfg.LedgerOptions()
	assert.Equal(t, 750*time.Millisecond, opts.TxTimeout)
	assert.Equal(t, 5, opts.Retry.Attempts)

	logCfg := cfg.GetLoggerConfig()
	assert.Equal(t, "json", logCfg.Format)
	assert.Equal(t, "stdout", logCfg.Output)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown driver", "LEDGER_DB_DRIVER", "mysql"},
		{"bad duration", "LEDGER_TX_TIMEOUT", "soon"},
		{"negative timeout", "LEDGER_TX_TIMEOUT", "-1s"},
		{"zero attempts", "LEDGER_RETRY_ATTEMPTS", "0"},
		{"bad integer", "LEDGER_MAX_ATTACHMENT_BYTES", "ten"},
		{"negative lock timeout", "LEDGER_LOCK_TIMEOUT", "-5s"},
		{"negative check interval", "LEDGER_CHECK_INTERVAL", "-1m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
