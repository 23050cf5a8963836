// Package bootstrap opens the shared dependencies of the shortqr binaries.
package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Varun5711/shortqr/internal/cache"
	"github.com/Varun5711/shortqr/internal/config"
	"github.com/Varun5711/shortqr/internal/database"
	"github.com/Varun5711/shortqr/internal/logger"
	"github.com/Varun5711/shortqr/internal/redis"
	"github.com/Varun5711/shortqr/internal/storage"
)

func NewLogger(service string, cfg config.LogConfig) *logger.Logger {
	return logger.NewWithOptions(service, logger.Options{
		Level:     cfg.Level,
		UseColors: cfg.Colors,
		File:      cfg.File,
	})
}

// Stores bundles the link store with the click store backing it.
type Stores struct {
	Links  storage.Storage
	Clicks storage.ClickStore
	DB     *database.DBManager
}

func (s *Stores) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}

// OpenStores connects to Postgres, or returns the in-memory store when
// STORAGE_MEMORY is set.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Stores, error) {
	if cfg.Memory {
		log.Warn("Using in-memory storage, data is lost on exit")
		mem := storage.NewMemoryStorage()
		return &Stores{Links: mem, Clicks: mem}, nil
	}

	db, err := database.NewDBManager(ctx, database.Config{
		PrimaryDSN:      cfg.PrimaryDSN,
		ReplicaDSNs:     cfg.ReplicaDSNs,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
		MaxConnIdleTime: cfg.MaxConnIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Connected to Postgres (%d replicas)", len(cfg.ReplicaDSNs))

	pg := storage.NewPostgresStorage(db, cfg.QueryTimeout)
	return &Stores{Links: pg, Clicks: pg, DB: db}, nil
}

// OpenRedis returns nil when Redis is disabled.
func OpenRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*goredis.Client, error) {
	if !cfg.Enabled {
		log.Warn("Redis disabled, running without L2 cache, rate limiting or job stream")
		return nil, nil
	}

	rdb, err := redis.NewClient(ctx, redis.Config{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, err
	}
	log.Info("Connected to Redis at %s", cfg.Addr)
	return rdb, nil
}

func NewLinkCache(cfg config.CacheConfig, rdb *goredis.Client) *cache.LinkCache {
	return cache.NewLinkCache(cache.NewMultiTierCache(cache.Config{
		L1Capacity: cfg.L1Capacity,
		L1TTL:      cfg.L1TTL,
		L2TTL:      cfg.L2TTL,
		OpTimeout:  cfg.OpTimeout,
	}, rdb))
}
