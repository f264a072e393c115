package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pesio-ai/be-mfg-scans/internal/repository"
)

// RedisRuleCache shares resolved article rules between service replicas
type RedisRuleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRuleCache creates a cache backed by Redis
func NewRedisRuleCache(addr, password string, db int, ttl time.Duration) *RedisRuleCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRuleCache{client: rdb, ttl: ttl}
}

// RuleKey is the Redis key of a rule
func RuleKey(workplace, article string) string {
	return fmt.Sprintf("article_rule:%s:%s", workplace, article)
}

// Ping checks connectivity
func (c *RedisRuleCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns a cached rule; ok is false on a miss
func (c *RedisRuleCache) Get(ctx context.Context, workplace, article string) (*repository.ArticleRule, bool, error) {
	data, err := c.client.Get(ctx, RuleKey(workplace, article)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis rule cache get: %w", err)
	}

	var rule repository.ArticleRule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, false, fmt.Errorf("redis rule cache decode: %w", err)
	}
	return &rule, true, nil
}

// Set stores a rule with the cache TTL
func (c *RedisRuleCache) Set(ctx context.Context, rule *repository.ArticleRule) error {
	data, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("redis rule cache encode: %w", err)
	}
	if err := c.client.Set(ctx, RuleKey(rule.Workplace, rule.Article), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis rule cache set: %w", err)
	}
	return nil
}

// Delete drops a rule
func (c *RedisRuleCache) Delete(ctx context.Context, workplace, article string) error {
	if err := c.client.Del(ctx, RuleKey(workplace, article)).Err(); err != nil {
		return fmt.Errorf("redis rule cache delete: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisRuleCache) Close() error {
	return c.client.Close()
}
