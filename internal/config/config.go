// Package config loads runtime configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the API server.
type Config struct {
	Addr          string
	PGDSN         string
	MaxBodyBytes  int64
	RateBurst     int
	RatePerSecond int
	AuditTimeout  time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Addr:          envStr("MLINZI_ADDR", ":8080"),
		PGDSN:         os.Getenv("MLINZI_PG_DSN"),
		MaxBodyBytes:  int64(envInt("MLINZI_MAX_BODY_BYTES", 1<<20)),
		RateBurst:     envInt("MLINZI_RATE_BURST", 50),
		RatePerSecond: envInt("MLINZI_RATE_PER_SECOND", 20),
		AuditTimeout:  envDur("MLINZI_AUDIT_TIMEOUT", 5*time.Second),
	}
}

func envStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
