package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Producer struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewProducer(client *redis.Client, stream string, maxLen int64) *Producer {
	return &Producer{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Enqueue appends job to the stream, assigning a JobID when empty.
func (p *Producer) Enqueue(ctx context.Context, job QRJob) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: job.values(),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to enqueue qr job for link %d: %w", job.LinkID, err)
	}
	return nil
}

func (p *Producer) Length(ctx context.Context) (int64, error) {
	return p.client.XLen(ctx, p.stream).Result()
}
