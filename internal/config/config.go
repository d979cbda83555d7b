package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr          string
	DBInteractURL     string
	DBInteractTimeout time.Duration
	JWTSecret         string
	LinkingCodeTTL    time.Duration
	Environment       string
}

func Load() Config {
	// Optional local overrides; ignored when no .env file exists.
	_ = godotenv.Load()

	return Config{
		HTTPAddr:          getenv("HTTP_ADDR", ":5002"),
		DBInteractURL:     getenv("DB_INTERACT_SERVICE_URL", "http://localhost:8082"),
		DBInteractTimeout: getenvDuration("DB_INTERACT_TIMEOUT", 10*time.Second),
		JWTSecret:         getenv("JWT_SECRET", "dev-secret"),
		LinkingCodeTTL:    getenvDuration("LINKING_CODE_TTL", 24*time.Hour),
		Environment:       getenv("ENV", "development"),
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
