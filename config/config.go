/*
config.go - Environment-driven application configuration

PURPOSE:
  Loads configuration from a .env file (when present) and the process
  environment. Command-line flags in cmd/server override everything, so the
  precedence is flags > environment > .env > defaults.
*/
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	Port        int
	DBPath      string
	CronSpec    string
	CronEnabled bool
	CORSOrigins []string
}

// Load reads the .env file when present and builds the configuration from the
// environment with sensible defaults.
func Load() *Config {
	// Missing .env is fine; the environment alone is a valid source.
	_ = godotenv.Load()

	return &Config{
		Port:        envInt("APP_PORT", 8080),
		DBPath:      envString("DB_PATH", "cowcard.db"),
		CronSpec:    envString("CRON_SCHEDULE", "0 0 * * *"), // daily at midnight
		CronEnabled: envBool("CRON_ENABLED", true),
		CORSOrigins: []string{envString("CORS_ORIGINS", "*")},
	}
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
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
