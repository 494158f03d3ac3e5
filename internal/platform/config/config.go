package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr string

	// SoftDeleteTTL is the undo window before a pending delete finalizes.
	SoftDeleteTTL time.Duration
	// SweepInterval paces the background finalization sweep.
	SweepInterval time.Duration

	// RedisURL switches record persistence to Redis when set.
	RedisURL string
	// PostgresDSN switches record persistence to Postgres when set. Redis
	// wins if both are configured.
	PostgresDSN string

	// KafkaBrokers enables the Kafka change-notification publisher when
	// non-empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:          envOr("COHERE_ADDR", ":8080"),
		SoftDeleteTTL: durationOr("COHERE_SOFT_DELETE_TTL", 15*time.Second),
		SweepInterval: durationOr("COHERE_SWEEP_INTERVAL", 5*time.Second),
		RedisURL:      os.Getenv("COHERE_REDIS_URL"),
		PostgresDSN:   os.Getenv("COHERE_POSTGRES_DSN"),
		KafkaTopic:    envOr("COHERE_KAFKA_TOPIC", "cohere.changes"),
	}
	if brokers := os.Getenv("COHERE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
