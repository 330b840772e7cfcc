package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL   string
	Port          string
	IsProduction  bool
	EnableDBCheck bool

	// Currency topology
	HubUnit    string // triangulation pivot, served by the central bank feed
	CryptoUnit string // main unit of the crypto feed

	// Background execution
	WorkerPoolSize int
	IndexTimeout   time.Duration
	SweepInterval  time.Duration

	// Feeds
	FeedTimeout      time.Duration
	FeedRetryMax     int
	CBRURLs          []string // mirrors, each with a single %s for dd/MM/yyyy
	CryptoTickerURLs []string
	CryptoHistoryURL string // %s is replaced by the currency code

	RateLimit string // ulule formatted rate, e.g. "60-M"
}

const (
	defaultWorkerPoolSize = 4
	defaultIndexTimeout   = 5 * time.Second
	defaultFeedTimeout    = 10 * time.Second
	defaultSweepInterval  = time.Hour
)

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("HUB_UNIT", "RUB")
	viper.SetDefault("CRYPTO_UNIT", "BTC")
	viper.SetDefault("WORKER_POOL_SIZE", defaultWorkerPoolSize)
	viper.SetDefault("INDEX_TIMEOUT", defaultIndexTimeout.String())
	viper.SetDefault("SWEEP_INTERVAL", defaultSweepInterval.String())
	viper.SetDefault("FEED_TIMEOUT", defaultFeedTimeout.String())
	viper.SetDefault("FEED_RETRY_MAX", 1)
	viper.SetDefault("CBR_URLS", "http://www.cbr.ru/scripts/XML_daily.asp?date_req=%s,https://www.cbr.ru/scripts/XML_daily.asp?date_req=%s")
	viper.SetDefault("CRYPTO_TICKER_URLS", "https://blockchain.info/ticker,https://api.bitcoinaverage.com/ticker/global/all")
	viper.SetDefault("CRYPTO_HISTORY_URL", "https://api.bitcoinaverage.com/history/%s/per_day_all_time_history.csv")
	viper.SetDefault("RATE_LIMIT", "60-M")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set. Background batches will run without a transaction.")
	}

	cfg.Port = viper.GetString("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")

	cfg.HubUnit = strings.ToUpper(strings.TrimSpace(viper.GetString("HUB_UNIT")))
	cfg.CryptoUnit = strings.ToUpper(strings.TrimSpace(viper.GetString("CRYPTO_UNIT")))

	cfg.WorkerPoolSize = viper.GetInt("WORKER_POOL_SIZE")
	if cfg.WorkerPoolSize <= 0 {
		log.Printf("Warning: Invalid value for WORKER_POOL_SIZE (%d). Defaulting to %d.\n", cfg.WorkerPoolSize, defaultWorkerPoolSize)
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}

	cfg.IndexTimeout = durationOrDefault("INDEX_TIMEOUT", defaultIndexTimeout)
	cfg.SweepInterval = durationOrDefault("SWEEP_INTERVAL", defaultSweepInterval)
	cfg.FeedTimeout = durationOrDefault("FEED_TIMEOUT", defaultFeedTimeout)

	cfg.FeedRetryMax = viper.GetInt("FEED_RETRY_MAX")
	if cfg.FeedRetryMax < 0 {
		cfg.FeedRetryMax = 0
	}

	cfg.CBRURLs = splitList(viper.GetString("CBR_URLS"))
	cfg.CryptoTickerURLs = splitList(viper.GetString("CRYPTO_TICKER_URLS"))
	cfg.CryptoHistoryURL = viper.GetString("CRYPTO_HISTORY_URL")
	if len(cfg.CBRURLs) == 0 {
		log.Println("Warning: CBR_URLS is empty. Hub unit rates will never be fetched.")
	}

	cfg.RateLimit = viper.GetString("RATE_LIMIT")

	return cfg, nil
}

// durationOrDefault parses a duration key; zero is a valid value (it disables periodic work).
func durationOrDefault(key string, def time.Duration) time.Duration {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, def.String())
		}
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
