package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Varun5711/shortqr/internal/logger"
)

// Handler processes one job. A returned error triggers the retry policy.
type Handler func(ctx context.Context, job QRJob) error

type ConsumerConfig struct {
	Stream      string
	Group       string
	Consumer    string
	BatchSize   int64
	Block       time.Duration
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration
	JobTimeout  time.Duration
	MaxLen      int64
}

type Consumer struct {
	client   *redis.Client
	cfg      ConsumerConfig
	producer *Producer
	log      *logger.Logger
}

func NewConsumer(client *redis.Client, cfg ConsumerConfig, log *logger.Logger) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	return &Consumer{
		client:   client,
		cfg:      cfg,
		producer: NewProducer(client, cfg.Stream, cfg.MaxLen),
		log:      log,
	}
}

// EnsureGroup creates the stream and consumer group if missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", c.cfg.Group, err)
	}
	return nil
}

// Run consumes until ctx is cancelled, then waits for in-flight handlers.
// Entries left pending by an earlier run of this consumer are replayed first.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	// "0" walks this consumer's pending list; ">" asks for new entries.
	cursor := "0"

	for {
		if ctx.Err() != nil {
			return nil
		}

		args := &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, cursor},
			Count:    c.cfg.BatchSize,
		}
		if cursor == ">" {
			args.Block = c.cfg.Block
		}

		streams, err := c.client.XReadGroup(ctx, args).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("Failed to read from stream %s: %v", c.cfg.Stream, err)
			if !sleepCtx(ctx, time.Second) {
				return nil
			}
			continue
		}

		received := 0
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				received++
				if cursor != ">" {
					cursor = msg.ID
				}

				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return nil
				}

				wg.Add(1)
				go func(msg redis.XMessage) {
					defer wg.Done()
					defer func() { <-sem }()
					c.handle(ctx, msg, h)
				}(msg)
			}
		}

		if cursor != ">" && received == 0 {
			cursor = ">"
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg redis.XMessage, h Handler) {
	job, err := decodeJob(msg.Values)
	if err != nil {
		c.log.Warn("Dropping malformed message %s: %v", msg.ID, err)
		c.ack(ctx, msg.ID)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, c.cfg.JobTimeout)
	err = safeCall(jobCtx, h, job)
	cancel()

	if err == nil {
		c.ack(ctx, msg.ID)
		return
	}

	if !shouldRetry(job.Attempt, c.cfg.MaxAttempts) {
		c.log.Error("Giving up on job %s for link %d after %d attempts: %v",
			job.JobID, job.LinkID, job.Attempt+1, err)
		c.ack(ctx, msg.ID)
		return
	}

	c.log.Warn("Job %s for link %d failed (attempt %d/%d), retrying: %v",
		job.JobID, job.LinkID, job.Attempt+1, c.cfg.MaxAttempts, err)

	// Cancelled while waiting: leave the entry pending so the next run replays it.
	if !sleepCtx(ctx, c.cfg.RetryDelay) {
		return
	}

	retry := job
	retry.Attempt++
	if err := c.producer.Enqueue(ctx, retry); err != nil {
		c.log.Error("Failed to requeue job %s: %v", job.JobID, err)
		return
	}
	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		c.log.Error("Failed to ack message %s: %v", id, err)
	}
}

func safeCall(ctx context.Context, h Handler, job QRJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
