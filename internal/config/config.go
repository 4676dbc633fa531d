// Package config содержит логику чтения конфигурации сервиса отложенных покупок.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса отложенных покупок.
type Config struct {
	RunAddress          string  `env:"RUN_ADDRESS"`
	DatabaseURI         string  `env:"DATABASE_URI"`
	FiscalSystemAddress string  `env:"FISCAL_SYSTEM_ADDRESS"`
	PrinterAddress      string  `env:"PRINTER_ADDRESS"`
	AmqpURL             string  `env:"AMQP_URL"`
	WalkInCustomerID    int64   `env:"WALKIN_CUSTOMER_ID"`
	ExpirationDays      int     `env:"EXPIRATION_DAYS"`
	MinInitialPercent   float64 `env:"MIN_INITIAL_PERCENT"`
	CompanyName         string  `env:"COMPANY_NAME"`
	CompanyTaxID        string  `env:"COMPANY_TAX_ID"`
	CompanyAddress      string  `env:"COMPANY_ADDRESS"`
	CompanyPhone        string  `env:"COMPANY_PHONE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envFiscalAddress := cfg.FiscalSystemAddress
	envPrinterAddress := cfg.PrinterAddress
	envAmqpURL := cfg.AmqpURL
	envWalkIn := cfg.WalkInCustomerID
	envExpirationDays := cfg.ExpirationDays
	envMinInitial := cfg.MinInitialPercent

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.FiscalSystemAddress, "f", "", "fiscal validation system address")
	flag.StringVar(&cfg.PrinterAddress, "p", "", "receipt printer bridge address")
	flag.StringVar(&cfg.AmqpURL, "q", "", "AMQP broker URL for reservation events")
	flag.Int64Var(&cfg.WalkInCustomerID, "w", 0, "walk-in customer id, disallowed for layaway")
	flag.IntVar(&cfg.ExpirationDays, "e", 90, "reservation expiration period in days")
	flag.Float64Var(&cfg.MinInitialPercent, "m", 20.0, "minimum initial payment percent")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envFiscalAddress != "" {
		cfg.FiscalSystemAddress = envFiscalAddress
	}
	if envPrinterAddress != "" {
		cfg.PrinterAddress = envPrinterAddress
	}
	if envAmqpURL != "" {
		cfg.AmqpURL = envAmqpURL
	}
	if envWalkIn != 0 {
		cfg.WalkInCustomerID = envWalkIn
	}
	if envExpirationDays != 0 {
		cfg.ExpirationDays = envExpirationDays
	}
	if envMinInitial != 0 {
		cfg.MinInitialPercent = envMinInitial
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.ExpirationDays <= 0 {
		cfg.ExpirationDays = 90
	}

	return cfg, nil
}
