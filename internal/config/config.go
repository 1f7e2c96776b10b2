// Package config содержит логику чтения конфигурации сервиса агрокредитования.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/agrocredit-system/internal/calc"
)

// Config содержит параметры конфигурации сервиса агрокредитования.
// Доля первоначального взноса, число взносов и период графика — бизнес-правила,
// поэтому задаются конфигурацией, а не константами в коде.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	DatabaseURI     string `env:"DATABASE_URI"`
	IdentityAddress string `env:"IDENTITY_ADDRESS"`
	SessionSecret   string `env:"SESSION_SECRET"`

	UpfrontFractionRaw    string        `env:"UPFRONT_FRACTION"`
	InstallmentCount      int           `env:"INSTALLMENT_COUNT" envDefault:"3"`
	InstallmentPeriodDays int           `env:"INSTALLMENT_PERIOD_DAYS" envDefault:"30"`
	StorageTimeout        time.Duration `env:"STORAGE_TIMEOUT" envDefault:"5s"`

	// UpfrontFraction — разобранное значение UpfrontFractionRaw.
	UpfrontFraction decimal.Decimal `env:"-"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envIdentityAddress := cfg.IdentityAddress
	envUpfrontFraction := cfg.UpfrontFractionRaw

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.IdentityAddress, "i", "", "identity provider address")
	flag.StringVar(&cfg.UpfrontFractionRaw, "f", calc.DefaultUpfrontFraction, "upfront fraction of the order cost")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envIdentityAddress != "" {
		cfg.IdentityAddress = envIdentityAddress
	}
	if envUpfrontFraction != "" {
		cfg.UpfrontFractionRaw = envUpfrontFraction
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	fraction, err := decimal.NewFromString(cfg.UpfrontFractionRaw)
	if err != nil {
		return nil, fmt.Errorf("parse upfront fraction %q: %w", cfg.UpfrontFractionRaw, err)
	}
	if fraction.LessThanOrEqual(decimal.Zero) || fraction.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("upfront fraction %s out of range (0, 1]", fraction)
	}
	cfg.UpfrontFraction = fraction

	if cfg.InstallmentCount < 1 {
		return nil, fmt.Errorf("installment count must be positive, got %d", cfg.InstallmentCount)
	}
	if cfg.InstallmentPeriodDays < 1 {
		return nil, fmt.Errorf("installment period must be positive, got %d days", cfg.InstallmentPeriodDays)
	}

	return cfg, nil
}
