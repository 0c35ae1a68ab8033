package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/whattodo/core/internal/infrastructure/config"
)

const redisKeyPrefix = "whattodo:"

// RedisStore keeps one JSON string per remote path.
type RedisStore struct {
	client *redis.Client
}

// NewRedisClient connects to redis and checks the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.GetAddr(), err)
	}
	return client, nil
}

// NewRedisStore creates a store over client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the document stored at path, or nil when there is none.
func (s *RedisStore) Get(ctx context.Context, path string) (map[string]any, error) {
	b, err := s.client.Get(ctx, redisKeyPrefix+path).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get remote record: %w", err)
	}

	var value map[string]any
	if err := json.Unmarshal(b, &value); err != nil {
		return nil, fmt.Errorf("failed to decode remote record: %w", err)
	}
	return value, nil
}

// Set stores value at path without expiry.
func (s *RedisStore) Set(ctx context.Context, path string, value map[string]any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode remote record: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+path, b, 0).Err(); err != nil {
		return fmt.Errorf("failed to set remote record: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
