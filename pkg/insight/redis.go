package insight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache using Redis as a backend. It enables
// multi-instance deployments to share generated insights, with TTL-based
// expiration bounding growth.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed insight cache.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - ttl: entry expiration (0 uses a default of 30 minutes)
//
// Returns an error if the connection to Redis fails or parameters are invalid.
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}

	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

func redisKey(key string) string {
	return "chatlens:insight:" + key
}

// Get returns the cached insight for key.
func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("insight cache key cannot be empty")
	}

	v, err := r.client.Get(ctx, redisKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get insight from redis: %w", err)
	}
	return v, true, nil
}

// Set stores an insight with the configured TTL.
func (r *RedisCache) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("insight cache key cannot be empty")
	}

	if err := r.client.Set(ctx, redisKey(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store insight in redis: %w", err)
	}
	return nil
}

// Ping checks the Redis connection health.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (r *RedisCache) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
