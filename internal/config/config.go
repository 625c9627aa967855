package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env              string
	Port             string
	SessionSecret    string
	DatabaseURL      string // postgres URL, or sqlite:<path> for local runs
	RedisURL         string
	LogLevel         zerolog.Level
	CORSOriginSuffix string
	PaymentToken     string // ledger token id buyers pay with and yield is deposited in
	LedgerAdminKey   string // X-Admin-Key for the payment token faucet; empty disables it
	MaxSnapshots     int
	RecordCacheTTL   time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string
	TopUpCurrency       string // currency of card top-ups; one minor unit buys one payment unit
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PAYMENT_TOKEN", "USDC")
	v.SetDefault("MAX_HOLDER_SNAPSHOTS", 0)
	v.SetDefault("RECORD_CACHE_TTL", "5m")
	v.SetDefault("TOPUP_CURRENCY", "usd")

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(v.GetString("LOG_LEVEL")))
	if err != nil {
		return nil, err
	}
	ttl, err := time.ParseDuration(v.GetString("RECORD_CACHE_TTL"))
	if err != nil {
		return nil, err
	}
	return &Config{
		Env:              v.GetString("APP_ENV"),
		Port:             v.GetString("PORT"),
		SessionSecret:    v.GetString("SESSION_SECRET"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		RedisURL:         v.GetString("REDIS_URL"),
		LogLevel:         level,
		CORSOriginSuffix: v.GetString("CORS_ORIGIN_SUFFIX"),
		PaymentToken:     v.GetString("PAYMENT_TOKEN"),
		LedgerAdminKey:   v.GetString("LEDGER_ADMIN_KEY"),
		MaxSnapshots:     v.GetInt("MAX_HOLDER_SNAPSHOTS"),
		RecordCacheTTL:   ttl,

		StripeSecretKey:     v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		TopUpCurrency:       strings.ToLower(v.GetString("TOPUP_CURRENCY")),
	}, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
