package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Varun5711/shortqr/internal/models"
)

var (
	// ErrCodeTaken reports a short code or alias that already exists as either.
	ErrCodeTaken = errors.New("short code already taken")
	ErrNotFound  = errors.New("link not found")
)

// Storage persists links. Lookups return (nil, nil) when nothing matches.
type Storage interface {
	// Create inserts link with its ShortCode and fills ID, CreatedAt and IsActive.
	Create(ctx context.Context, link *models.Link) error
	// CreateWithAlias checks and inserts link.CustomAlias as both code and alias in one transaction.
	CreateWithAlias(ctx context.Context, link *models.Link) error
	FindByCode(ctx context.Context, code string) (*models.Link, error)
	FindByID(ctx context.Context, id int64) (*models.Link, error)
	IncrementClicks(ctx context.Context, id int64) error
	// SetQRCode stores qr only while the link has none; false means it was already set.
	SetQRCode(ctx context.Context, id int64, qr string) (bool, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Link, int64, error)
	// Deactivate marks an owned link inactive and returns it, or ErrNotFound.
	Deactivate(ctx context.Context, id int64, ownerID string) (*models.Link, error)
	// MarkExpired records up to limit links that expired before the given time and
	// have not been swept yet, returning their short codes. is_active is left alone
	// so the links still report as expired rather than deactivated.
	MarkExpired(ctx context.Context, before time.Time, limit int) ([]string, error)
	Ping(ctx context.Context) error
}

// ClickStore keeps the analytics table.
type ClickStore interface {
	RecordClick(ctx context.Context, event *models.ClickEvent) error
	RecentClicks(ctx context.Context, urlID int64, limit int) ([]*models.ClickEvent, error)
	ClickStats(ctx context.Context, urlID int64, since time.Time, topN int) (*models.LinkStats, error)
	// OwnerSummary totals an owner's links, picks the topN by click count and
	// counts their recorded clicks per day since the given time.
	OwnerSummary(ctx context.Context, ownerID string, since time.Time, topN int) (*models.Dashboard, error)
}

const (
	unknownBucket = "Unknown"
	directBucket  = "Direct"
)
