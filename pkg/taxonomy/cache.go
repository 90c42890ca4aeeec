package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Cache stores AI-path classification results keyed by a digest of the
// normalized input text, so repeated submissions of the same description do
// not burn generation calls.
type Cache interface {
	Get(ctx context.Context, key string) (Match, bool, error)
	Set(ctx context.Context, key string, match Match) error
}

// NoopCache is the default cache; it stores nothing.
type NoopCache struct{}

func (NoopCache) Get(_ context.Context, _ string) (Match, bool, error) {
	return Match{}, false, nil
}

func (NoopCache) Set(_ context.Context, _ string, _ Match) error {
	return nil
}

const (
	redisKeyPrefix  = "pisflow:classification:"
	defaultCacheTTL = 24 * time.Hour
)

// RedisCache implements Cache on Redis.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache connects to Redis at the given address and verifies the
// connection before returning.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client, ttl: defaultCacheTTL}, nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (Match, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Match{}, false, nil
		}

		return Match{}, false, fmt.Errorf("failed to read classification cache: %w", err)
	}

	var match Match
	if err := json.Unmarshal(data, &match); err != nil {
		return Match{}, false, fmt.Errorf("failed to decode cached classification: %w", err)
	}

	return match, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, match Match) error {
	data, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("failed to encode classification: %w", err)
	}

	err = c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to write classification cache: %w", err)
	}

	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
