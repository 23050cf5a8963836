package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/Varun5711/shortqr/internal/bootstrap"
	"github.com/Varun5711/shortqr/internal/cleanup"
	"github.com/Varun5711/shortqr/internal/config"
	"github.com/Varun5711/shortqr/internal/lock"
	"github.com/Varun5711/shortqr/internal/logger"
)

const lockKey = "lock:cleanup-expired"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("cleanup-worker").Fatal("Failed to load config: %v", err)
	}

	log := bootstrap.NewLogger("cleanup-worker", cfg.Log)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("%v", err)
	}
	defer stores.Close()

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis: %v", err)
	}

	var locker cleanup.Locker
	if rdb != nil {
		defer rdb.Close()
		locker = lock.NewDistributedLock(rdb, lockKey, cfg.Cleanup.LockTTL)
	} else {
		log.Warn("Running without a distributed lock; run a single cleanup worker")
	}

	sweeper := cleanup.NewSweeper(
		stores.Links,
		bootstrap.NewLinkCache(cfg.Cache, rdb),
		locker,
		cleanup.Config{BatchSize: cfg.Cleanup.BatchSize, Timeout: cfg.Cleanup.LockTTL},
		log,
	)

	if n, err := sweeper.RunOnce(ctx); err != nil {
		log.Error("Initial cleanup failed: %v", err)
	} else {
		log.Info("Initial cleanup swept %d expired links", n)
	}

	c := cron.New()
	if _, err := sweeper.Schedule(ctx, c, cfg.Cleanup.Schedule); err != nil {
		log.Fatal("Failed to schedule cleanup %q: %v", cfg.Cleanup.Schedule, err)
	}
	c.Start()
	log.Info("Cleanup worker scheduled: %s", cfg.Cleanup.Schedule)

	<-ctx.Done()
	log.Info("Stopping cleanup worker")
	<-c.Stop().Done()
}
