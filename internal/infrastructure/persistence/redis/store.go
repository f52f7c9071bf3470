// Package redis stores the application record as a plain string key in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/garyjia/visaflow/internal/application/port"
)

// Config holds connection settings
type Config struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// RecordStore implements port.RecordBackend on Redis
type RecordStore struct {
	client *redis.Client
	prefix string
}

var _ port.RecordBackend = (*RecordStore)(nil)

// Open connects to Redis and verifies the connection
func Open(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRecordStore(client, cfg.KeyPrefix), nil
}

// NewRecordStore wraps an existing client. Keys are stored as prefix+key.
func NewRecordStore(client *redis.Client, prefix string) *RecordStore {
	return &RecordStore{
		client: client,
		prefix: prefix,
	}
}

// Get returns the payload stored under key
func (s *RecordStore) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return payload, nil
}

// Put stores payload under key without expiry
func (s *RecordStore) Put(ctx context.Context, key string, payload []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key
func (s *RecordStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Health checks if the Redis connection is healthy
func (s *RecordStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RecordStore) Close() error {
	return s.client.Close()
}
