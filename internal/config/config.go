package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	MarketData MarketDataConfig
	Billing    BillingConfig
}

type ServerConfig struct {
	Port     string
	LogLevel string
}

// DatabaseConfig is optional; an empty URL runs the service without history.
type DatabaseConfig struct {
	URL            string
	MigrationsPath string
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	SnapshotTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type MarketDataConfig struct {
	Provider            string
	AlphaVantageAPIKey  string
	AlphaVantageBaseURL string
	AlpacaAPIKey        string
	AlpacaAPISecret     string
	StaleAfter          time.Duration
	RefreshInterval     time.Duration
}

type BillingConfig struct {
	CostPerPortfolio decimal.Decimal
	CostPerAdvice    decimal.Decimal
}

// Load reads a .env file when present and then the process environment.
func Load(log *logrus.Logger) *Config {
	// Load .env file if it exists, but don't fail if it's missing (e.g. in production)
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			LogLevel: getEnv("LOG_LEVEL", "debug"),
		},
		Database: DatabaseConfig{
			URL:            os.Getenv("POSTGRES_URL"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),
		},
		Redis: RedisConfig{
			Addr:        os.Getenv("REDIS_ADDR"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          getEnvInt(log, "REDIS_DB", 0),
			SnapshotTTL: getEnvSeconds(log, "SNAPSHOT_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: parseList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "portfolio.analyses"),
		},
		MarketData: MarketDataConfig{
			Provider:            strings.ToLower(getEnv("MARKET_DATA_PROVIDER", "alphavantage")),
			AlphaVantageAPIKey:  os.Getenv("ALPHA_VANTAGE_API_KEY"),
			AlphaVantageBaseURL: os.Getenv("ALPHA_VANTAGE_BASE_URL"),
			AlpacaAPIKey:        os.Getenv("APCA_API_KEY_ID"),
			AlpacaAPISecret:     os.Getenv("APCA_API_SECRET_KEY"),
			StaleAfter:          getEnvSeconds(log, "PRICE_STALE_AFTER", 15*time.Minute),
			RefreshInterval:     getEnvSeconds(log, "PRICE_UPDATE_INTERVAL", 0),
		},
		Billing: BillingConfig{
			CostPerPortfolio: getEnvDecimal(log, "COST_PER_PORTFOLIO", decimal.RequireFromString("2.00")),
			CostPerAdvice:    getEnvDecimal(log, "COST_PER_ADVICE", decimal.RequireFromString("0.25")),
		},
	}
}

// Configured reports whether the selected provider has credentials.
func (c *MarketDataConfig) Configured() bool {
	switch c.Provider {
	case "alpaca":
		return c.AlpacaAPIKey != "" && c.AlpacaAPISecret != ""
	default:
		return c.AlphaVantageAPIKey != ""
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(log *logrus.Logger, key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("invalid integer for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

// getEnvSeconds reads a whole number of seconds, as PRICE_UPDATE_INTERVAL always has.
func getEnvSeconds(log *logrus.Logger, key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Warnf("invalid seconds for %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return time.Duration(n) * time.Second
}

func getEnvDecimal(log *logrus.Logger, key string, fallback decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		log.Warnf("invalid amount for %s=%q, using default %s", key, v, fallback.StringFixed(2))
		return fallback
	}
	return d
}

func parseList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
