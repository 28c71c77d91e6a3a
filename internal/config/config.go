package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        int
	LogLevel    string
	LogFormat   string
	DatabaseURL string
	StoreDriver string // "postgres" or "memory"

	MainSweepInterval   time.Duration
	FastSweepInterval   time.Duration
	FastSweepIterations int
	FastSweepDelay      time.Duration
	SweepTimeout        time.Duration
	GameTimeout         time.Duration
}

func Load() *Config {
	return &Config{
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/yamago?sslmode=disable"),
		StoreDriver: getEnv("STORE_DRIVER", "postgres"),

		MainSweepInterval:   getEnvDuration("MAIN_SWEEP_INTERVAL", time.Minute),
		FastSweepInterval:   getEnvDuration("FAST_SWEEP_INTERVAL", time.Minute),
		FastSweepIterations: getEnvInt("FAST_SWEEP_ITERATIONS", 5),
		FastSweepDelay:      getEnvDuration("FAST_SWEEP_DELAY", 10*time.Second),
		SweepTimeout:        getEnvDuration("SWEEP_TIMEOUT", 50*time.Second),
		GameTimeout:         getEnvDuration("GAME_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings such as "30s" or "1m".
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
