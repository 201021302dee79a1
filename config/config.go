/*
Package config loads server configuration from the environment.

SOURCES (later wins):
  1. Built-in defaults
  2. A .env file in the working directory, if present
  3. Process environment variables
  4. Command-line flags in cmd/server (port and database only)

VARIABLES:
  PORT               HTTP port (8080)
  APP_ENV            development | production (development)
  DB_DRIVER          sqlite | postgres (sqlite)
  DB_PATH            SQLite file, ":memory:" allowed (motivation.db)
  DATABASE_URL       PostgreSQL DSN, required when DB_DRIVER=postgres
  LOG_LEVEL          debug | info | warn | error (info)
  LOG_FILE           rotated log file, stdout only when empty
  PAYROLL_INTERVAL   scheduler tick, "0" disables it (24h)
  PAYROLL_CONCURRENCY  parallel calculations per run (4)
  CORS_ORIGINS       comma-separated allowed origins
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Log      LogConfig
	Payroll  PayrollConfig
}

type AppConfig struct {
	Port        int
	Env         string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Driver string
	Path   string
	URL    string
}

// LogConfig controls the slog handler. File output is rotated by size.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type PayrollConfig struct {
	Interval    time.Duration
	Concurrency int
}

// Load reads .env (when it exists) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.App = AppConfig{
		Port:        port,
		Env:         getEnv("APP_ENV", "development"),
		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),
	}

	cfg.Database = DatabaseConfig{
		Driver: strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		Path:   getEnv("DB_PATH", "motivation.db"),
		URL:    getEnv("DATABASE_URL", ""),
	}

	cfg.Log = LogConfig{
		Level: getEnv("LOG_LEVEL", "info"),
		File:  getEnv("LOG_FILE", ""),
	}
	if cfg.Log.MaxSizeMB, err = getInt("LOG_MAX_SIZE_MB", 100); err != nil {
		return nil, err
	}
	if cfg.Log.MaxBackups, err = getInt("LOG_MAX_BACKUPS", 5); err != nil {
		return nil, err
	}
	if cfg.Log.MaxAgeDays, err = getInt("LOG_MAX_AGE_DAYS", 30); err != nil {
		return nil, err
	}

	interval, err := time.ParseDuration(getEnv("PAYROLL_INTERVAL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_INTERVAL: %w", err)
	}
	concurrency, err := getInt("PAYROLL_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	cfg.Payroll = PayrollConfig{Interval: interval, Concurrency: concurrency}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("DB_PATH is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required for postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver)
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.App.Port)
	}
	if c.Payroll.Interval < 0 {
		return errors.New("PAYROLL_INTERVAL must not be negative")
	}
	if c.Payroll.Concurrency < 1 {
		return errors.New("PAYROLL_CONCURRENCY must be at least 1")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.App.Env, "development")
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvSlice(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
