package draft

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache stores generated drafts by CacheKey
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, draft string) error
}

// CacheKey hashes everything that determines a draft
func CacheKey(model, templateType, description string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(templateType))
	h.Write([]byte{0})
	h.Write([]byte(description))
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is an in-process LRU with per-entry expiry
type MemoryCache struct {
	lru *expirable.LRU[string, string]
}

// NewMemoryCache holds up to size drafts for ttl. A zero ttl never expires entries.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 100
	}
	return &MemoryCache{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key, draft string) error {
	m.lru.Add(key, draft)
	return nil
}

// Len returns the number of live entries
func (m *MemoryCache) Len() int {
	return m.lru.Len()
}

const redisKeyPrefix = "patentsearch:draft:"

// RedisCache shares drafts between processes through Redis
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache stores drafts in client with the given expiry
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key, draft string) error {
	return r.client.Set(ctx, redisKeyPrefix+key, draft, r.ttl).Err()
}

// ConnectRedis opens a client and pings it, backing off between attempts
func ConnectRedis(ctx context.Context, addr, password string, maxRetries int, logger zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              0,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
	})
	if maxRetries < 1 {
		maxRetries = 1
	}

	var err error
	for i := range maxRetries {
		if i > 0 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			logger.Info().Dur("backoff", backoff).Msg("waiting before redis retry")
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		err = client.Ping(ctx).Err()
		if err == nil {
			logger.Info().Str("addr", addr).Int("attempts", i+1).Msg("redis connected")
			return client, nil
		}
		logger.Warn().Err(err).Int("attempt", i+1).Msg("redis ping failed")
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", maxRetries, err)
}
