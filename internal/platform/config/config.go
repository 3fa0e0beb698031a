package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	Environment   string
	DatabaseURL   string
	JWTSigningKey string

	// DailyRequestCap is the rolling per-requester daily cap on access
	// requests. Soft limit: enforced by counting same-day rows.
	DailyRequestCap int

	// RequestTTL is how long an access request stays pending before it is
	// considered expired.
	RequestTTL time.Duration

	// GrantTTLAll and GrantTTLSingle fix the visibility windows created on
	// approval, by scope.
	GrantTTLAll    time.Duration
	GrantTTLSingle time.Duration

	// AllocatorLockTimeout bounds the wait on the sequence counter row.
	AllocatorLockTimeout time.Duration

	// KafkaBrokers enables the notification outbox sink when non-empty.
	KafkaBrokers string
	KafkaTopic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                 envOr("ATTESTA_ADDR", ":8080"),
		Environment:          envOr("ATTESTA_ENV", "development"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		JWTSigningKey:        envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		DailyRequestCap:      10,
		RequestTTL:           7 * 24 * time.Hour,
		GrantTTLAll:          30 * 24 * time.Hour,
		GrantTTLSingle:       7 * 24 * time.Hour,
		AllocatorLockTimeout: 3 * time.Second,
		KafkaBrokers:         os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:           envOr("KAFKA_NOTIFY_TOPIC", "attesta.notifications"),
	}

	if v := os.Getenv("DAILY_REQUEST_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DailyRequestCap = n
		}
	}
	if v := os.Getenv("REQUEST_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RequestTTL = d
		}
	}
	if v := os.Getenv("ALLOCATOR_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AllocatorLockTimeout = d
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
