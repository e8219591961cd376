// Package config loads server configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Policy   PolicyConfig
}

type AppConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	// Path to the SQLite database file; ":memory:" for in-memory.
	Path string
}

type PolicyConfig struct {
	// CacheTTL bounds how stale a policy snapshot may be.
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	// A missing .env is fine; the environment alone is enough.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	ttl, err := time.ParseDuration(getEnv("POLICY_CACHE_TTL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLICY_CACHE_TTL: %w", err)
	}

	return &Config{
		App: AppConfig{
			Port: port,
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "attendance.db"),
		},
		Policy: PolicyConfig{
			CacheTTL: ttl,
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
