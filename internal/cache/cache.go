package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache layers a short-lived in-process LRU (L1) over Redis (L2).
// A nil Redis client disables L2; a zero L1 capacity disables L1.
type Cache struct {
	l1        *LRU[string]
	l2        *redis.Client
	l2TTL     time.Duration
	opTimeout time.Duration
}

type Config struct {
	L1Capacity int
	L1TTL      time.Duration
	L2TTL      time.Duration
	OpTimeout  time.Duration
}

func NewMultiTierCache(cfg Config, redisClient *redis.Client) *Cache {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 250 * time.Millisecond
	}
	return &Cache{
		l1:        NewLRU[string](cfg.L1Capacity, cfg.L1TTL),
		l2:        redisClient,
		l2TTL:     cfg.L2TTL,
		opTimeout: cfg.OpTimeout,
	}
}

// Get returns ("", false, nil) on a miss in both tiers.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if val, ok := c.l1.Get(key); ok {
		return val, true, nil
	}
	if c.l2 == nil {
		return "", false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	val, err := c.l2.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}

	c.l1.Set(key, val)
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key, value string) error {
	c.l1.Set(key, value)
	if c.l2 == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.l2.Set(ctx, key, value, c.l2TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	c.l1.Delete(key)
	if c.l2 == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.l2.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
