package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/krbiz/backend/internal/domain/settings"
)

const defaultKeyPrefix = "krbiz:settings:"

// RedisSettingsStore implements settings.Store using Redis so several server
// instances share one configuration
type RedisSettingsStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisSettingsStore connects to Redis and verifies the connection
func NewRedisSettingsStore(cfg RedisConfig) (*RedisSettingsStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSettingsStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisSettingsStoreWithClient creates a store with an existing Redis client
func NewRedisSettingsStoreWithClient(client *redis.Client, keyPrefix string) *RedisSettingsStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisSettingsStore{client: client, keyPrefix: keyPrefix}
}

// Get returns a value and whether it exists
func (s *RedisSettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores a value without expiry
func (s *RedisSettingsStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *RedisSettingsStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisSettingsStore) Close() error {
	return s.client.Close()
}

// Ensure RedisSettingsStore implements settings.Store
var _ settings.Store = (*RedisSettingsStore)(nil)
