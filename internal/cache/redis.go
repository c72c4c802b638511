// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores upstream results in Redis so identical requests
// within the TTL do not repeat a billed provider call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "seo-relay:result:"

// Key derives the cache key for an upstream call.
func Key(path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// RedisCache is a result cache backed by Redis. A nil *RedisCache is a
// valid, always-missing cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to addr and verifies the connection.
// If addr is empty, returns nil (caching is disabled).
func NewRedisCache(ctx context.Context, addr, password string, ttl time.Duration) (*RedisCache, error) {
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// Get returns the cached result for key. A miss is (nil, false, nil).
func (r *RedisCache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if r == nil || r.client == nil {
		return nil, false, nil
	}
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache key %s: %w", key, err)
	}
	return json.RawMessage(data), true, nil
}

// Set stores result under key for the configured TTL.
func (r *RedisCache) Set(ctx context.Context, key string, result json.RawMessage) error {
	if r == nil || r.client == nil {
		return nil
	}
	if err := r.client.Set(ctx, key, []byte(result), r.ttl).Err(); err != nil {
		return fmt.Errorf("writing cache key %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
