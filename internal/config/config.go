package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBSource string
	Port     string
	Env      string
	LogLevel string

	// Pomelo webhook authentication.
	PomeloAPISecret   string
	PomeloWebhookPath string

	// Circle custodial ledger.
	CircleBaseURL        string
	CircleAPIKey         string
	CircleMasterWalletID string

	// Exchange rates.
	RatesBaseURL string
	RedisAddr    string
	RateCacheTTL time.Duration
}

func Load() (*Config, error) {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	pomeloSecret := os.Getenv("POMELO_API_SECRET")
	if pomeloSecret == "" {
		return nil, fmt.Errorf("POMELO_API_SECRET environment variable is required")
	}

	circleKey := os.Getenv("CIRCLE_API_KEY")
	if circleKey == "" {
		return nil, fmt.Errorf("CIRCLE_API_KEY environment variable is required")
	}

	ttl := 15 * time.Minute
	if raw := os.Getenv("RATE_CACHE_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_CACHE_TTL %q: %w", raw, err)
		}
		ttl = parsed
	}

	return &Config{
		DBSource: dbSource,
		Port:     getEnv("SERVER_PORT", "8080"),
		Env:      getEnv("ENVIRONMENT", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		PomeloAPISecret:   pomeloSecret,
		PomeloWebhookPath: getEnv("POMELO_WEBHOOK_PATH", "/webhooks/pomelo/transactions/authorizations"),

		CircleBaseURL:        getEnv("CIRCLE_BASE_URL", "https://api-sandbox.circle.com"),
		CircleAPIKey:         circleKey,
		CircleMasterWalletID: getEnv("CIRCLE_MASTER_WALLET_ID", ""),

		RatesBaseURL: getEnv("RATES_BASE_URL", "http://localhost:9090"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RateCacheTTL: ttl,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
