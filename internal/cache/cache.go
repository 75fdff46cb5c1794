// Package cache handles Redis caching operations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nmped/nmschooldata/internal/config"
	"github.com/nmped/nmschooldata/internal/models"
)

// Common errors
var (
	ErrCacheMiss = errors.New("cache miss")
)

// Cache defines the interface for caching operations.
type Cache interface {
	// Get retrieves a value from the cache.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with a TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Ping checks if the cache is healthy.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache client.
func NewRedisCache(ctx context.Context, cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// Verify connectivity
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a value from the cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}
	return val, nil
}

// Set stores a value in the cache with a TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Delete removes a value from the cache.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	err := c.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Ping checks if the cache is healthy.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the cache connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client for advanced operations.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// EnrollmentCacher defines the interface for enrollment caching operations.
// This interface enables easy mocking in tests.
type EnrollmentCacher interface {
	GetYear(ctx context.Context, year int) ([]models.EnrollmentRecord, error)
	SetYear(ctx context.Context, year int, records []models.EnrollmentRecord) error
	DeleteYear(ctx context.Context, year int) error
	Ping(ctx context.Context) error
}

// Ensure EnrollmentCache implements EnrollmentCacher
var _ EnrollmentCacher = (*EnrollmentCache)(nil)

// EnrollmentCache caches a year's enrollment records as one JSON value.
type EnrollmentCache struct {
	cache      Cache
	keyPrefix  string
	defaultTTL time.Duration
}

// NewEnrollmentCache creates a year-keyed enrollment cache.
func NewEnrollmentCache(cache Cache, keyPrefix string, defaultTTL time.Duration) *EnrollmentCache {
	if keyPrefix == "" {
		keyPrefix = "enr:"
	}
	if defaultTTL == 0 {
		defaultTTL = 24 * time.Hour
	}
	return &EnrollmentCache{
		cache:      cache,
		keyPrefix:  keyPrefix,
		defaultTTL: defaultTTL,
	}
}

// GetYear retrieves the cached records for a school year.
func (c *EnrollmentCache) GetYear(ctx context.Context, year int) ([]models.EnrollmentRecord, error) {
	data, err := c.cache.Get(ctx, c.key(year))
	if err != nil {
		return nil, err
	}

	var records []models.EnrollmentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached records: %w", err)
	}
	return records, nil
}

// SetYear stores a school year's records.
func (c *EnrollmentCache) SetYear(ctx context.Context, year int, records []models.EnrollmentRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	return c.cache.Set(ctx, c.key(year), data, c.defaultTTL)
}

// DeleteYear removes a school year from cache.
func (c *EnrollmentCache) DeleteYear(ctx context.Context, year int) error {
	return c.cache.Delete(ctx, c.key(year))
}

// Ping checks if the cache is healthy.
func (c *EnrollmentCache) Ping(ctx context.Context) error {
	return c.cache.Ping(ctx)
}

// key generates the cache key for a school year.
func (c *EnrollmentCache) key(year int) string {
	return c.keyPrefix + strconv.Itoa(year)
}
