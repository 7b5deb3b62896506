package config

import (
	"os"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	MetricsAddr string

	// PostgresDSN empty means "run on the in-memory stores" (dev profile).
	PostgresDSN string

	Redis RedisConfig

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// LockTimeout bounds the wait for an item's row lock; an expired wait
	// surfaces to the caller as a retryable conflict.
	LockTimeout time.Duration
}

// RedisConfig holds the optional catalog cache settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CIRCULATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	metricsAddr := os.Getenv("CIRCULATE_METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default, must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	lockTimeout := 2 * time.Second
	if v := os.Getenv("CIRCULATE_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			lockTimeout = d
		}
	}

	return Server{
		Addr:          addr,
		MetricsAddr:   metricsAddr,
		PostgresDSN:   os.Getenv("CIRCULATE_POSTGRES_DSN"),
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     envOr("JWT_ISSUER", "circulate"),
		JWTAudience:   envOr("JWT_AUDIENCE", "circulate-api"),
		LockTimeout:   lockTimeout,
		Redis: RedisConfig{
			URL:          os.Getenv("CIRCULATE_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			CacheTTL:     5 * time.Minute,
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
