package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Varun5711/shortqr/internal/bootstrap"
	"github.com/Varun5711/shortqr/internal/config"
	"github.com/Varun5711/shortqr/internal/logger"
	"github.com/Varun5711/shortqr/internal/qrworker"
	"github.com/Varun5711/shortqr/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("qr-worker").Fatal("Failed to load config: %v", err)
	}

	log := bootstrap.NewLogger("qr-worker", cfg.Log)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Redis.Enabled {
		log.Fatal("The QR worker needs Redis; set REDIS_ENABLED=true")
	}
	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	stores, err := bootstrap.OpenStores(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("%v", err)
	}
	defer stores.Close()

	// The worker only refreshes entries the API already cached, so it reads
	// Redis directly.
	cacheCfg := cfg.Cache
	cacheCfg.L1Capacity = 0
	processor := qrworker.NewProcessor(stores.Links, bootstrap.NewLinkCache(cacheCfg, rdb), log)

	consumer := queue.NewConsumer(rdb, queue.ConsumerConfig{
		Stream:      cfg.Queue.Stream,
		Group:       cfg.Queue.ConsumerGroup,
		Consumer:    cfg.Queue.ConsumerName,
		BatchSize:   cfg.Queue.BatchSize,
		Block:       cfg.Queue.BlockTime,
		Concurrency: cfg.Queue.Concurrency,
		MaxAttempts: cfg.Queue.MaxAttempts,
		RetryDelay:  cfg.Queue.RetryDelay,
		JobTimeout:  cfg.Queue.JobTimeout,
		MaxLen:      cfg.Queue.MaxLen,
	}, log)

	log.Info("Consuming %s as %s/%s (concurrency %d)",
		cfg.Queue.Stream, cfg.Queue.ConsumerGroup, cfg.Queue.ConsumerName, cfg.Queue.Concurrency)

	if err := consumer.Run(ctx, processor.Process); err != nil {
		log.Fatal("Consumer stopped: %v", err)
	}
	log.Info("QR worker stopped")
}
