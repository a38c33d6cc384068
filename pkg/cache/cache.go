package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"mandi-price-api/internal/config"
	"mandi-price-api/internal/models"
)

const keyPrefix = "prices:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

// NewRedisCache connects to Redis. It returns nil when caching is disabled or
// the server cannot be reached; every method is safe on a nil cache.
func NewRedisCache(ctx context.Context, cfg config.CacheConfig, log logrus.FieldLogger) *RedisCache {
	if !cfg.Enabled {
		log.Info("Response cache disabled")
		return nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		log.WithError(err).Error("Failed to parse Redis URL")
		return nil
	}
	opt.DB = cfg.DB

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("Redis connection failed, running without cache")
		_ = client.Close()
		return nil
	}

	log.WithFields(logrus.Fields{"db": cfg.DB, "ttl": cfg.TTL.String()}).Info("Redis connected")

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
		log:    log,
	}
}

// GetPrices returns the cached response for key, or nil on a miss.
func (r *RedisCache) GetPrices(ctx context.Context, key string) (*models.PriceResponse, error) {
	if !r.IsAvailable() {
		return nil, fmt.Errorf("redis client not available")
	}

	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var response models.PriceResponse
	if err := json.Unmarshal(val, &response); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	return &response, nil
}

func (r *RedisCache) SetPrices(ctx context.Context, key string, response *models.PriceResponse) error {
	if !r.IsAvailable() {
		return fmt.Errorf("redis client not available")
	}

	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("json marshal error: %w", err)
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

// GenerateKey builds the cache key for a normalised live query.
func GenerateKey(q models.PriceQuery) string {
	date := ""
	if !q.PriceDate.IsZero() {
		date = models.NewDate(q.PriceDate).String()
	}
	fallback := true
	if q.UseMockFallback != nil {
		fallback = *q.UseMockFallback
	}
	return fmt.Sprintf("%s%s:%s:%s:%s:%s:fb%t", keyPrefix,
		strings.ToLower(q.DataSource),
		strings.ToLower(q.State),
		strings.ToLower(q.District),
		strings.ToLower(q.CropName),
		date,
		fallback,
	)
}

func (r *RedisCache) Close() error {
	if !r.IsAvailable() {
		return nil
	}
	return r.client.Close()
}

func (r *RedisCache) IsAvailable() bool {
	return r != nil && r.client != nil
}

func (r *RedisCache) GetStats(ctx context.Context) map[string]interface{} {
	if !r.IsAvailable() {
		return map[string]interface{}{
			"status": "unavailable",
		}
	}

	return map[string]interface{}{
		"status":      "connected",
		"ttl_seconds": int(r.ttl.Seconds()),
		"keys":        len(r.GetAllKeys(ctx)),
		"memory_info": r.client.Info(ctx, "memory").Val(),
	}
}

func (r *RedisCache) GetAllKeys(ctx context.Context) []string {
	if !r.IsAvailable() {
		return []string{}
	}
	keys, err := r.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		r.log.WithError(err).Warn("Failed to list cache keys")
		return []string{}
	}
	return keys
}

func (r *RedisCache) GetKeyTTL(ctx context.Context, key string) time.Duration {
	if !r.IsAvailable() {
		return 0
	}
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0
	}
	return ttl
}

// FlushCache drops every cached price response and reports how many were removed.
func (r *RedisCache) FlushCache(ctx context.Context) (int64, error) {
	if !r.IsAvailable() {
		return 0, fmt.Errorf("redis client not available")
	}
	keys := r.GetAllKeys(ctx)
	if len(keys) == 0 {
		return 0, nil
	}
	return r.client.Del(ctx, keys...).Result()
}
