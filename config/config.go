// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/warp/payment-ledger/ledger"
	"github.com/warp/payment-ledger/logger"
)

// Supported LEDGER_DB_DRIVER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	// HTTP
	Addr        string
	CORSOrigins []string

	// Database
	DBDriver    string
	DBDSN       string
	LockTimeout time.Duration

	// Ledger
	TxTimeout          time.Duration
	RetryAttempts      int
	MaxAttachmentBytes int64
	CheckInterval      time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from environment variables. Call
// godotenv.Load first if a .env file should be honoured.
func Load() (*Config, error) {
	var errs []string
	duration := func(key, def string) time.Duration {
		v := getEnv(key, def)
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return d
	}
	integer := func(key, def string) int64 {
		v := getEnv(key, def)
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return n
	}

	config := &Config{
		Addr:               getEnv("LEDGER_ADDR", ":8080"),
		CORSOrigins:        splitList(getEnv("LEDGER_CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		DBDriver:           strings.ToLower(getEnv("LEDGER_DB_DRIVER", DriverSQLite)),
		DBDSN:              getEnv("LEDGER_DB_DSN", "./data/ledger.db"),
		LockTimeout:        duration("LEDGER_LOCK_TIMEOUT", "2s"),
		TxTimeout:          duration("LEDGER_TX_TIMEOUT", "5s"),
		RetryAttempts:      int(integer("LEDGER_RETRY_ATTEMPTS", "3")),
		MaxAttachmentBytes: integer("LEDGER_MAX_ATTACHMENT_BYTES", strconv.Itoa(ledger.DefaultMaxAttachmentBytes)),
		CheckInterval:      duration("LEDGER_CHECK_INTERVAL", "1h"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:      getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:          getEnv("LOG_OUTPUT", "stdout"),
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("config parse failed: %s", strings.Join(errs, "; "))
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("LEDGER_DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("LEDGER_DB_DSN is required")
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("LEDGER_TX_TIMEOUT must be positive")
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("LEDGER_LOCK_TIMEOUT must not be negative")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("LEDGER_RETRY_ATTEMPTS must be at least 1")
	}
	if c.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("LEDGER_MAX_ATTACHMENT_BYTES must be positive")
	}
	if c.CheckInterval < 0 {
		return fmt.Errorf("LEDGER_CHECK_INTERVAL must not be negative")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// LedgerOptions maps the configuration onto service options.
func (c *Config) LedgerOptions() ledger.Options {
	opts := ledger.DefaultOptions()
	opts.TxTimeout = c.TxTimeout
	opts.Retry.Attempts = c.RetryAttempts
	opts.MaxAttachmentBytes = c.MaxAttachmentBytes
	return opts
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
