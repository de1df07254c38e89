// Package config loads server settings from the environment, then lets
// command-line flags override the few that operators change by hand.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rfidlib/circulation-engine/fines"
	"github.com/shopspring/decimal"
)

// Config holds everything cmd/server needs to wire the engine.
type Config struct {
	Port            int           `env:"LIBRARY_PORT"             envDefault:"8080"`
	DBPath          string        `env:"LIBRARY_DB"               envDefault:"library.db"`
	LoanDays        int           `env:"LIBRARY_LOAN_DAYS"        envDefault:"14"`
	DailyFine       string        `env:"LIBRARY_DAILY_FINE"       envDefault:"1"`
	Timezone        string        `env:"LIBRARY_TIMEZONE"         envDefault:"Local"`
	RefreshInterval time.Duration `env:"LIBRARY_REFRESH_INTERVAL" envDefault:"1m"`
	SeedFile        string        `env:"LIBRARY_SEED_FILE"`
	AllowedOrigins  []string      `env:"LIBRARY_ALLOWED_ORIGINS"  envSeparator:","`
}

// Load parses the environment, applies flags from args and validates the
// result. args excludes the program name.
func Load(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, `SQLite database path (":memory:" for in-memory)`)
	fs.StringVar(&cfg.SeedFile, "seed", cfg.SeedFile, "bootstrap catalog/student JSON file")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.LoanDays <= 0 {
		return fmt.Errorf("LIBRARY_LOAN_DAYS must be positive, got %d", c.LoanDays)
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(c.DailyFine))
	if err != nil {
		return fmt.Errorf("LIBRARY_DAILY_FINE %q: %w", c.DailyFine, err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("LIBRARY_DAILY_FINE must not be negative, got %s", rate)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("LIBRARY_REFRESH_INTERVAL must be positive, got %s", c.RefreshInterval)
	}
	return nil
}

// Calculator builds the fine calculator. Call after Validate.
func (c Config) Calculator() fines.Calculator {
	rate, _ := decimal.NewFromString(strings.TrimSpace(c.DailyFine))
	return fines.Calculator{LoanDays: c.LoanDays, DailyRate: rate}
}

// Location resolves Timezone. "Local" and "" mean the server's zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("LIBRARY_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
