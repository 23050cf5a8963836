package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Varun5711/shortqr/internal/cache"
	"github.com/Varun5711/shortqr/internal/lock"
	"github.com/Varun5711/shortqr/internal/logger"
	"github.com/Varun5711/shortqr/internal/storage"
)

// Locker serializes sweeps across worker instances.
type Locker interface {
	WithLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// Sweeper marks expired links as swept and evicts them from the cache.
type Sweeper struct {
	store     storage.Storage
	cache     *cache.LinkCache
	locker    Locker
	batchSize int
	timeout   time.Duration
	log       *logger.Logger
	now       func() time.Time
}

type Config struct {
	BatchSize int
	// Timeout bounds one full sweep.
	Timeout time.Duration
}

func NewSweeper(store storage.Storage, lc *cache.LinkCache, locker Locker, cfg Config, log *logger.Logger) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Sweeper{
		store:     store,
		cache:     lc,
		locker:    locker,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
		log:       log,
		now:       time.Now,
	}
}

// RunOnce sweeps until no unswept expired links remain and returns how many
// were marked. It returns (0, nil) when another instance holds the lock.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.locker == nil {
		return s.sweep(ctx)
	}

	var total int
	err := s.locker.WithLock(ctx, func(ctx context.Context) error {
		var err error
		total, err = s.sweep(ctx)
		return err
	})
	if errors.Is(err, lock.ErrLockNotAcquired) {
		s.log.Debug("Cleanup already running elsewhere, skipping")
		return 0, nil
	}
	return total, err
}

func (s *Sweeper) sweep(ctx context.Context) (int, error) {
	cutoff := s.now()
	total := 0
	for {
		codes, err := s.store.MarkExpired(ctx, cutoff, s.batchSize)
		if err != nil {
			return total, fmt.Errorf("mark expired links: %w", err)
		}
		s.evict(ctx, codes)
		total += len(codes)
		if len(codes) < s.batchSize {
			return total, nil
		}
	}
}

func (s *Sweeper) evict(ctx context.Context, codes []string) {
	if s.cache == nil {
		return
	}
	for _, code := range codes {
		if err := s.cache.Delete(ctx, code); err != nil {
			s.log.Warn("Cache evict failed for %s: %v", code, err)
		}
	}
}

// Schedule registers the sweep on c using a standard cron spec or a
// descriptor such as "@every 1h".
func (s *Sweeper) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		n, err := s.RunOnce(ctx)
		if err != nil {
			s.log.Error("Cleanup sweep failed: %v", err)
			return
		}
		if n > 0 {
			s.log.Info("Swept %d expired links", n)
		}
	})
}
