// Package config provides configuration parsing and management for the assistant.
//
// It handles both command-line flags and environment variables, with flags
// taking precedence over environment variables. The Config struct contains
// all runtime configuration for the assistant including:
//   - HTTP listen address
//   - Logging configuration (level, format)
//   - Insight cache backend (memory or redis) and Redis connection settings
//   - Simulated pipeline latencies and the upstream update probability
//   - Task lifecycle bounds (processing deadline, finished-task TTL)
//   - Optional intent rule file and remote insight generator settings
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all assistant configuration.
type Config struct {
	Listen    string
	LogLevel  string
	LogFormat string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	UpdateProbability float64
	HitLatency        time.Duration
	MissLatency       time.Duration
	InsightLatency    time.Duration
	InsightCacheSize  int

	TaskTimeout time.Duration
	TaskTTL     time.Duration

	RulesFile   string
	InsightURL  string
	InsightPath string
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Environment variables are used as fallbacks when flags are not provided.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")

	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Insight cache backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 30*time.Minute), "Redis insight TTL")

	flag.Float64Var(&cfg.UpdateProbability, "update-probability", getEnvFloat("UPDATE_PROBABILITY", 0.10), "Per-check probability of an upstream data change")
	flag.DurationVar(&cfg.HitLatency, "hit-latency", getEnvDuration("HIT_LATENCY", 50*time.Millisecond), "Simulated data cache hit latency")
	flag.DurationVar(&cfg.MissLatency, "miss-latency", getEnvDuration("MISS_LATENCY", 800*time.Millisecond), "Simulated data cache miss latency")
	flag.DurationVar(&cfg.InsightLatency, "insight-latency", getEnvDuration("INSIGHT_LATENCY", time.Second), "Simulated insight generation latency")
	flag.IntVar(&cfg.InsightCacheSize, "insight-cache-size", getEnvInt("INSIGHT_CACHE_SIZE", 1024), "Memory insight cache capacity")

	flag.DurationVar(&cfg.TaskTimeout, "task-timeout", getEnvDuration("TASK_TIMEOUT", 2*time.Minute), "Per-task processing deadline")
	flag.DurationVar(&cfg.TaskTTL, "task-ttl", getEnvDuration("TASK_TTL", 15*time.Minute), "How long finished tasks stay queryable")

	flag.StringVar(&cfg.RulesFile, "rules-file", getEnv("RULES_FILE", ""), "Optional YAML file with the intent rule table")
	flag.StringVar(&cfg.InsightURL, "insight-url", getEnv("INSIGHT_URL", ""), "Optional remote insight generator endpoint")
	flag.StringVar(&cfg.InsightPath, "insight-path", getEnv("INSIGHT_PATH", "text"), "gjson path to the insight text in remote responses")

	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Storage {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid storage backend %q: must be memory or redis", c.Storage)
	}

	if c.Storage == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("redis storage requires --redis-addr")
	}

	if c.UpdateProbability < 0 || c.UpdateProbability > 1 {
		return fmt.Errorf("update probability %v out of range [0, 1]", c.UpdateProbability)
	}

	if c.TaskTimeout <= 0 {
		return fmt.Errorf("task timeout must be positive")
	}
	if c.TaskTTL <= 0 {
		return fmt.Errorf("task TTL must be positive")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
