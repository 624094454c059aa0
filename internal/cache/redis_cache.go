package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/domain"
)

// ErrCacheMiss is returned when a key is absent from the cache.
var ErrCacheMiss = errors.New("cache miss")

// ShareCache caches share metadata between lookups so repeated joins
// for the same token do not hit the database inside the TTL window.
type ShareCache interface {
	Get(ctx context.Context, shareToken string) (*domain.Share, error)
	Set(ctx context.Context, share *domain.Share, ttl time.Duration) error
	Delete(ctx context.Context, shareToken string) error
	Close() error
}

// RedisShareCache implements ShareCache on redis.
type RedisShareCache struct {
	client *redis.Client
	prefix string
}

// Options configure the redis connection.
type Options struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// NewRedisShareCache connects to redis and returns a share cache.
func NewRedisShareCache(opts Options) (*RedisShareCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisShareCache{
		client: client,
		prefix: opts.Prefix,
	}, nil
}

func (c *RedisShareCache) key(shareToken string) string {
	return fmt.Sprintf("%s:token:%s", c.prefix, shareToken)
}

// Get returns the cached share or ErrCacheMiss.
func (c *RedisShareCache) Get(ctx context.Context, shareToken string) (*domain.Share, error) {
	data, err := c.client.Get(ctx, c.key(shareToken)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var share domain.Share
	if err := json.Unmarshal(data, &share); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached share: %w", err)
	}
	return &share, nil
}

// Set stores the share under its token with the given TTL.
func (c *RedisShareCache) Set(ctx context.Context, share *domain.Share, ttl time.Duration) error {
	data, err := json.Marshal(share)
	if err != nil {
		return fmt.Errorf("failed to marshal share: %w", err)
	}

	if err := c.client.Set(ctx, c.key(share.ShareToken), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

// Delete drops a cached share.
func (c *RedisShareCache) Delete(ctx context.Context, shareToken string) error {
	if err := c.client.Del(ctx, c.key(shareToken)).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// Close releases the redis connection.
func (c *RedisShareCache) Close() error {
	return c.client.Close()
}
