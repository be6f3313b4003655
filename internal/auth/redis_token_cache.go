package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/shared/config"
	"github.com/cristianortiz/auctionEngine/internal/shared/metrics"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "auction:token:"

// RedisTokenCache shares verdicts between service instances. Expiry is left
// to redis. Redis failures degrade to cache misses so the remote check still runs.
type RedisTokenCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisClient builds a client for cfg; it does not dial.
func NewRedisClient(cfg config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisTokenCache(client *goredis.Client, ttl time.Duration) *RedisTokenCache {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &RedisTokenCache{client: client, ttl: ttl}
}

// Ping checks the connection at startup.
func (c *RedisTokenCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (c *RedisTokenCache) Close() error {
	return c.client.Close()
}

// redisKey hashes the cache key so raw bearer tokens never land in redis.
func redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return redisKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *RedisTokenCache) Get(ctx context.Context, key string) (bool, bool) {
	val, err := c.client.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, goredis.Nil) {
		metrics.TokenCacheLookups.WithLabelValues("miss").Inc()
		return false, false
	}
	if err != nil {
		log.Warn("Token cache lookup failed", zap.Error(err))
		metrics.TokenCacheLookups.WithLabelValues("error").Inc()
		return false, false
	}
	metrics.TokenCacheLookups.WithLabelValues("hit").Inc()
	return val == "1", true
}

func (c *RedisTokenCache) Put(ctx context.Context, key string, allowed bool) {
	val := "0"
	if allowed {
		val = "1"
	}
	if err := c.client.Set(ctx, redisKey(key), val, c.ttl).Err(); err != nil {
		log.Warn("Token cache store failed", zap.Error(err))
	}
}

func (c *RedisTokenCache) Clear(ctx context.Context) {
	var keys []string
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Warn("Token cache scan failed", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Warn("Token cache clear failed", zap.Error(err), zap.Int("keys", len(keys)))
	}
}
