// Package config loads runtime configuration from the environment with
// optional .env overrides and hot-reloads the tier limits file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is the full runtime configuration.
type Config struct {
	ListenAddr string
	JWTSecret  string

	LogLevel  string
	LogFormat string

	// DataPath holds the sqlite databases. Empty selects in-memory
	// stores.
	DataPath string

	IngestSource   string // simulated | kafka
	IngestInterval time.Duration

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// LimitsFile optionally overrides the built-in tier limit table and
	// is watched for changes.
	LimitsFile string

	WebhookURL string

	UpstreamRatePerSec    float64
	UpstreamBurst         int
	UpstreamDailyBudget   int
	UpstreamMonthlyBudget int
}

// Load reads configuration from the environment. A .env file in the
// current directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded configuration from .env")
	}

	cfg := &Config{
		ListenAddr:            envString("SHOREWATCH_LISTEN", ":8080"),
		JWTSecret:             os.Getenv("SHOREWATCH_JWT_SECRET"),
		LogLevel:              envString("SHOREWATCH_LOG_LEVEL", "info"),
		LogFormat:             envString("SHOREWATCH_LOG_FORMAT", "auto"),
		DataPath:              os.Getenv("SHOREWATCH_DATA_PATH"),
		IngestSource:          envString("SHOREWATCH_INGEST_SOURCE", "simulated"),
		IngestInterval:        envDuration("SHOREWATCH_INGEST_INTERVAL", 60*time.Second),
		KafkaTopic:            envString("SHOREWATCH_KAFKA_TOPIC", "beach-conditions"),
		KafkaGroupID:          envString("SHOREWATCH_KAFKA_GROUP", "shorewatch"),
		LimitsFile:            os.Getenv("SHOREWATCH_LIMITS_FILE"),
		WebhookURL:            os.Getenv("SHOREWATCH_WEBHOOK_URL"),
		UpstreamRatePerSec:    envFloat("SHOREWATCH_UPSTREAM_RATE", 5),
		UpstreamBurst:         envInt("SHOREWATCH_UPSTREAM_BURST", 10),
		UpstreamDailyBudget:   envInt("SHOREWATCH_UPSTREAM_DAILY_BUDGET", 0),
		UpstreamMonthlyBudget: envInt("SHOREWATCH_UPSTREAM_MONTHLY_BUDGET", 0),
	}

	if brokers := os.Getenv("SHOREWATCH_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("SHOREWATCH_JWT_SECRET is required")
	}
	switch c.IngestSource {
	case "simulated":
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("SHOREWATCH_KAFKA_BROKERS is required for the kafka source")
		}
	default:
		return fmt.Errorf("unknown ingest source %q", c.IngestSource)
	}
	if c.IngestInterval < time.Second {
		return fmt.Errorf("ingest interval %s is below the 1s floor", c.IngestInterval)
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer in environment, using default")
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid float in environment, using default")
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration in environment, using default")
		return fallback
	}
	return d
}
