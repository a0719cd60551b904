// Package store selects the insight cache backend from configuration.
package store

import (
	"fmt"
	"log/slog"

	"github.com/pivotlabs/chatlens/cmd/assistant/config"
	"github.com/pivotlabs/chatlens/pkg/insight"
)

// New creates the insight cache named by cfg.Storage.
//
// The memory backend is a bounded in-process cache suitable for a single
// instance. The redis backend shares generated insights across instances
// with TTL-based expiration.
func New(cfg *config.Config, logger *slog.Logger) (insight.Cache, error) {
	switch cfg.Storage {
	case "redis":
		logger.Info("using redis insight cache",
			"addr", cfg.RedisAddr,
			"db", cfg.RedisDB,
			"ttl", cfg.RedisTTL,
		)
		cache, err := insight.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			return nil, fmt.Errorf("create redis insight cache: %w", err)
		}
		return cache, nil

	case "memory":
		logger.Info("using memory insight cache", "capacity", cfg.InsightCacheSize)
		return insight.NewMemoryCache(cfg.InsightCacheSize), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
