package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	DatabaseDriver  string
	DatabaseURL     string
	DatabaseDebug   bool
	JWTSecret       string
	JWTExpiration   time.Duration
	ServerPort      string
	LogLevel        string
	LogFormat       string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// SeedAdminPassword creates a super admin on first start when set.
	SeedAdminPassword string
}

func Load() *Config {
	return &Config{
		DatabaseDriver:    getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:       getEnv("DATABASE_URL", "postgresql://postgres@localhost:5432/timeledger"),
		DatabaseDebug:     getBoolEnv("DB_DEBUG", false),
		JWTSecret:         getEnv("JWT_SECRET", "your-super-secret-key-change-in-production"),
		JWTExpiration:     getDurationEnv("JWT_EXPIRATION", 24*time.Hour),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
		RequestTimeout:    getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:   getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
		SeedAdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		log.Warn().Str("key", key).Bool("default", defaultValue).Msg("invalid boolean value, using default")
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Warn().Str("key", key).Dur("default", defaultValue).Msg("invalid duration value, using default")
	}
	return defaultValue
}
