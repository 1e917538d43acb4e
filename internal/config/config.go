// Package config содержит логику чтения конфигурации сервиса.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress       = "localhost:8080"
	defaultReconcileRetries = 3
	defaultAuditTimeout     = 2 * time.Second
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress       string        `env:"RUN_ADDRESS"`
	DatabaseURI      string        `env:"DATABASE_URI"`
	SecretKey        string        `env:"SECRET_KEY"`
	ReconcileRetries int           `env:"RECONCILE_RETRIES"`
	AuditTimeout     time.Duration `env:"AUDIT_TIMEOUT"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.SecretKey, "s", "", "session cookie signing key")
	flag.IntVar(&cfg.ReconcileRetries, "r", defaultReconcileRetries, "retry attempts for conflicting ledger transactions")
	flag.DurationVar(&cfg.AuditTimeout, "t", defaultAuditTimeout, "deadline for writing one action log record")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.SecretKey != "" {
		cfg.SecretKey = fromEnv.SecretKey
	}
	if fromEnv.ReconcileRetries != 0 {
		cfg.ReconcileRetries = fromEnv.ReconcileRetries
	}
	if fromEnv.AuditTimeout != 0 {
		cfg.AuditTimeout = fromEnv.AuditTimeout
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.ReconcileRetries <= 0 {
		return nil, fmt.Errorf("reconcile retries must be positive, got %d", cfg.ReconcileRetries)
	}
	if cfg.AuditTimeout <= 0 {
		return nil, fmt.Errorf("audit timeout must be positive, got %s", cfg.AuditTimeout)
	}

	return cfg, nil
}
