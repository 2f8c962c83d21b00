package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddress   string
	ShutdownTimeout time.Duration
	DatabasePath    string
	LogLevel        slog.Level

	// Background jobs
	RolloverInterval time.Duration // how often open sessions check for a new local day
	FlushRetryRate   float64       // pending-flush retries per second

	RulesFile       string // optional YAML overrides for rules.Table
	RankingTimezone string // reference zone for daily/weekly leaderboard cutoffs
	MetricsEnabled  bool
}

// Load reads .env (if present) and the environment. A missing or malformed
// required variable is fatal.
func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()
	cfg, err := FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	var errs []string
	required := func(k string) string {
		v := os.Getenv(k)
		if v == "" {
			errs = append(errs, fmt.Sprintf("required environment variable %s is not set", k))
		}
		return v
	}

	cfg := &Config{
		ServerAddress:   required("SERVER_ADDRESS"),
		DatabasePath:    getenvDefault("DATABASE_PATH", "speakloop.db"),
		RulesFile:       os.Getenv("RULES_FILE"),
		RankingTimezone: getenvDefault("RANKING_TIMEZONE", "UTC"),
	}

	if v := required("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("SHUTDOWN_TIMEOUT=%q is not a valid duration: %v", v, err))
		}
		cfg.ShutdownTimeout = d
	}

	var err error
	if cfg.RolloverInterval, err = getDurationDefault("ROLLOVER_INTERVAL", time.Minute); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.FlushRetryRate, err = getFloatDefault("FLUSH_RETRY_RATE", 5); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.MetricsEnabled, err = getBoolDefault("METRICS_ENABLED", true); err != nil {
		errs = append(errs, err.Error())
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL: %v", err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getenvDefault(k, fallback string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fallback
}

func getDurationDefault(k string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback, fmt.Errorf("%s=%q is not a valid positive duration", k, v)
	}
	return d, nil
}

func getFloatDefault(k string, fallback float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback, fmt.Errorf("%s=%q is not a valid positive number", k, v)
	}
	return f, nil
}

func getBoolDefault(k string, fallback bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("%s=%q is not a valid boolean", k, v)
	}
	return b, nil
}
