// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Recalc    RecalcConfig
	Holidays  HolidayConfig
	Scheduler SchedulerConfig
}

type AppConfig struct {
	Port        int
	LogLevel    string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Path string
}

// RecalcConfig bounds malla batch recalculation.
type RecalcConfig struct {
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
}

type HolidayConfig struct {
	LookupTimeout time.Duration
}

// SchedulerConfig drives the config-change watcher. A zero Interval
// disables it.
type SchedulerConfig struct {
	Interval  time.Duration
	CompanyID string
}

// Load reads .env (if present) and the environment. Variables already set
// in the environment win over .env.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit .env paths. Missing files are skipped.
func LoadFiles(paths ...string) (*Config, error) {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}
	}

	config := &Config{}
	var err error

	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}
	config.App = AppConfig{
		Port:        appPort,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),
	}

	config.Database = DatabaseConfig{
		Path: getEnv("DB_PATH", "recargos.db"),
	}

	workers, err := strconv.Atoi(getEnv("RECALC_WORKERS", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECALC_WORKERS: %w", err)
	}
	attempts, err := strconv.Atoi(getEnv("RECALC_MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECALC_MAX_ATTEMPTS: %w", err)
	}
	backoff, err := time.ParseDuration(getEnv("RECALC_BACKOFF", "200ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECALC_BACKOFF: %w", err)
	}
	config.Recalc = RecalcConfig{Workers: workers, MaxAttempts: attempts, Backoff: backoff}

	timeout, err := time.ParseDuration(getEnv("HOLIDAY_LOOKUP_TIMEOUT", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HOLIDAY_LOOKUP_TIMEOUT: %w", err)
	}
	config.Holidays = HolidayConfig{LookupTimeout: timeout}

	interval, err := time.ParseDuration(getEnv("SCHEDULER_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_INTERVAL: %w", err)
	}
	config.Scheduler = SchedulerConfig{
		Interval:  interval,
		CompanyID: getEnv("COMPANY_ID", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Port < 1 || c.App.Port > 65535 {
		return fmt.Errorf("APP_PORT must be 1-65535, got %d", c.App.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.Recalc.Workers < 1 {
		return fmt.Errorf("RECALC_WORKERS must be positive, got %d", c.Recalc.Workers)
	}
	if c.Recalc.MaxAttempts < 1 {
		return fmt.Errorf("RECALC_MAX_ATTEMPTS must be positive, got %d", c.Recalc.MaxAttempts)
	}
	if c.Holidays.LookupTimeout <= 0 {
		return fmt.Errorf("HOLIDAY_LOOKUP_TIMEOUT must be positive")
	}
	if c.Scheduler.Interval < 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LOG_LEVEL (debug, info, warn, error).
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", c.App.LogLevel)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
