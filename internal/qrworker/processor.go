package qrworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Varun5711/shortqr/internal/background"
	"github.com/Varun5711/shortqr/internal/cache"
	"github.com/Varun5711/shortqr/internal/logger"
	"github.com/Varun5711/shortqr/internal/qrcode"
	"github.com/Varun5711/shortqr/internal/queue"
	"github.com/Varun5711/shortqr/internal/storage"
)

var (
	ErrMissingShortURL = errors.New("qr job has no short url")
	ErrSaturated       = errors.New("inline qr runner saturated")
)

// RenderFunc turns the encoded content into a data URI.
type RenderFunc func(content string) (string, error)

// Processor renders a link's QR image, stores it once and refreshes any
// cached projection of the link.
type Processor struct {
	store  storage.Storage
	cache  *cache.LinkCache
	render RenderFunc
	log    *logger.Logger
}

func NewProcessor(store storage.Storage, lc *cache.LinkCache, log *logger.Logger) *Processor {
	return &Processor{
		store:  store,
		cache:  lc,
		render: qrcode.GenerateQRCode,
		log:    log,
	}
}

// WithRenderer swaps the image renderer.
func (p *Processor) WithRenderer(render RenderFunc) *Processor {
	p.render = render
	return p
}

func (p *Processor) Process(ctx context.Context, job queue.QRJob) error {
	if job.ShortURL == "" {
		return ErrMissingShortURL
	}

	qr, err := p.render(job.ShortURL)
	if err != nil {
		return fmt.Errorf("render qr for link %d: %w", job.LinkID, err)
	}

	stored, err := p.store.SetQRCode(ctx, job.LinkID, qr)
	if err != nil {
		return fmt.Errorf("store qr for link %d: %w", job.LinkID, err)
	}
	if !stored {
		p.log.Info("Link %d already has a QR code or is gone, skipping", job.LinkID)
		return nil
	}

	p.refreshCache(ctx, job.ShortCode, qr)
	p.log.Info("Generated QR for link %d (%s)", job.LinkID, job.ShortCode)
	return nil
}

// refreshCache only rewrites an entry that is already cached.
func (p *Processor) refreshCache(ctx context.Context, code, qr string) {
	if p.cache == nil || code == "" {
		return
	}
	entry, err := p.cache.Get(ctx, code)
	if err != nil {
		p.log.Warn("Cache read failed for %s: %v", code, err)
		return
	}
	if entry == nil {
		return
	}
	entry.QRCode = qr
	if err := p.cache.Set(ctx, code, entry); err != nil {
		p.log.Warn("Cache refresh failed for %s: %v", code, err)
	}
}

// Inline runs QR jobs in-process on a background runner. It stands in for the
// stream when Redis is disabled. A failed job is retried inside the same task,
// so maxAttempts and retryDelay must fit within the runner's task timeout.
type Inline struct {
	proc        *Processor
	runner      *background.Runner
	maxAttempts int
	retryDelay  time.Duration
}

func NewInline(proc *Processor, runner *background.Runner) *Inline {
	return &Inline{proc: proc, runner: runner, maxAttempts: 1}
}

// WithRetry allows up to maxAttempts runs per job, waiting delay between them.
func (in *Inline) WithRetry(maxAttempts int, delay time.Duration) *Inline {
	if maxAttempts > 0 {
		in.maxAttempts = maxAttempts
	}
	in.retryDelay = delay
	return in
}

func (in *Inline) Enqueue(ctx context.Context, job queue.QRJob) error {
	if !in.runner.Go("qr-"+job.ShortCode, func(ctx context.Context) error {
		return in.run(ctx, job)
	}) {
		return ErrSaturated
	}
	return nil
}

func (in *Inline) run(ctx context.Context, job queue.QRJob) error {
	var err error
	for job.Attempt = 1; ; job.Attempt++ {
		if err = in.proc.Process(ctx, job); err == nil {
			return nil
		}
		if errors.Is(err, ErrMissingShortURL) || job.Attempt >= in.maxAttempts {
			return fmt.Errorf("qr job for link %d failed after %d attempts: %w", job.LinkID, job.Attempt, err)
		}
		in.proc.log.Warn("QR job for link %d failed (attempt %d/%d): %v", job.LinkID, job.Attempt, in.maxAttempts, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(in.retryDelay):
		}
	}
}
