// Package config содержит логику чтения конфигурации сервиса выплат продавцам.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-payouts/internal/commission"
)

// Config содержит параметры конфигурации сервиса выплат.
type Config struct {
	RunAddress              string `env:"RUN_ADDRESS"`
	DatabaseURI             string `env:"DATABASE_URI"`
	TransferProviderAddress string `env:"TRANSFER_PROVIDER_ADDRESS"`
	RedisURL                string `env:"REDIS_URL"`
	// AuthSecret задаёт ключ подписи JWT. Пустое значение означает случайный ключ на время жизни процесса.
	AuthSecret string `env:"AUTH_SECRET"`

	HoldPeriod           time.Duration `env:"EARNINGS_HOLD_PERIOD"`
	MaturationInterval   time.Duration `env:"MATURATION_INTERVAL"`
	TransferSyncInterval time.Duration `env:"TRANSFER_SYNC_INTERVAL"`
	// MinimumPayout задаётся в минимальных единицах валюты.
	MinimumPayout     int64  `env:"MINIMUM_PAYOUT"`
	DefaultCommission string `env:"DEFAULT_COMMISSION_PERCENTAGE"`

	PayoutRateLimit float64       `env:"PAYOUT_RATE_LIMIT"`
	PayoutRateBurst int           `env:"PAYOUT_RATE_BURST"`
	IdempotencyTTL  time.Duration `env:"IDEMPOTENCY_TTL"`

	LogLevel   string `env:"LOG_LEVEL"`
	LogFile    string `env:"LOG_FILE"`
	DBMaxConns int    `env:"DB_MAX_CONNS"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	// .env необязателен, уже заданные переменные окружения он не перезаписывает.
	_ = godotenv.Load()

	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.TransferProviderAddress, "t", "", "transfer provider address")
	flag.StringVar(&cfg.RedisURL, "r", "", "redis URL for idempotency keys")
	flag.StringVar(&cfg.AuthSecret, "s", "", "JWT signing secret")
	flag.DurationVar(&cfg.HoldPeriod, "hold", 7*24*time.Hour, "earnings hold period before payout")
	flag.DurationVar(&cfg.MaturationInterval, "mi", time.Minute, "maturation sweep interval, 0 disables")
	flag.DurationVar(&cfg.TransferSyncInterval, "ti", 5*time.Second, "transfer status sync interval")
	flag.Int64Var(&cfg.MinimumPayout, "min", 1000, "minimum payout amount in minor units")
	flag.StringVar(&cfg.DefaultCommission, "c", "10", "default platform commission percentage")
	flag.Float64Var(&cfg.PayoutRateLimit, "rl", 0.2, "payout requests per second per vendor")
	flag.IntVar(&cfg.PayoutRateBurst, "rb", 3, "payout request burst per vendor")
	flag.DurationVar(&cfg.IdempotencyTTL, "it", 24*time.Hour, "idempotency key retention")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log level")
	flag.StringVar(&cfg.LogFile, "lf", "", "log file path")
	flag.IntVar(&cfg.DBMaxConns, "dbc", 10, "max database connections")

	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Commission возвращает ставку комиссии по умолчанию.
func (c *Config) Commission() decimal.Decimal {
	pct, err := commission.ParsePercentage(c.DefaultCommission)
	if err != nil {
		return decimal.Zero
	}
	return pct
}

func (c *Config) validate() error {
	if _, err := commission.ParsePercentage(c.DefaultCommission); err != nil {
		return fmt.Errorf("default commission: %w", err)
	}
	if c.HoldPeriod < 0 {
		return errors.New("earnings hold period must not be negative")
	}
	if c.MinimumPayout < 0 {
		return errors.New("minimum payout must not be negative")
	}
	if c.PayoutRateLimit < 0 || c.PayoutRateBurst < 0 {
		return errors.New("payout rate limit must not be negative")
	}
	return nil
}
