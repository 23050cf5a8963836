package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/Varun5711/shortqr/internal/analytics"
	"github.com/Varun5711/shortqr/internal/apperrors"
	"github.com/Varun5711/shortqr/internal/background"
	"github.com/Varun5711/shortqr/internal/cache"
	"github.com/Varun5711/shortqr/internal/enrichment"
	"github.com/Varun5711/shortqr/internal/idgen"
	"github.com/Varun5711/shortqr/internal/logger"
	"github.com/Varun5711/shortqr/internal/models"
	"github.com/Varun5711/shortqr/internal/queue"
	"github.com/Varun5711/shortqr/internal/storage"
	"github.com/Varun5711/shortqr/internal/validation"
)

// ErrCodeSpaceExhausted means every generated code in a create call collided.
var ErrCodeSpaceExhausted = errors.New("no free short code after max attempts")

const (
	DefaultMaxAttempts = 5
	DefaultPageSize    = 10
	MaxPageSize        = 100
	MaxTitleLength     = 255
	MaxExpiryDays      = 365
	// MaxListOffset caps the row offset a page number can reach.
	MaxListOffset = math.MaxInt32
)

const (
	msgNotFound      = "URL not found"
	msgDeactivated   = "URL has been deactivated"
	msgExpired       = "URL has expired"
	msgBadTarget     = "Unsupported or invalid target URL"
	msgAliasTaken    = "Custom alias already taken"
	msgCodeExhausted = "Failed to generate unique code"
	msgCreateFailed  = "Failed to create short URL"
	msgInternal      = "Internal server error"
)

// JobQueue accepts QR generation jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, job queue.QRJob) error
}

type Deps struct {
	Store     storage.Storage
	Cache     *cache.LinkCache
	Queue     JobQueue
	Codes     idgen.CodeSource
	Runner    *background.Runner
	Recorder  analytics.Recorder
	Analytics *analytics.Service
	Geo       *enrichment.GeoIPEnricher
	BaseURL   string
	// MaxAttempts bounds random code draws per create.
	MaxAttempts int
	Log         *logger.Logger
	Now         func() time.Time
}

type CreateLinkInput struct {
	OriginalURL   string
	OwnerID       string
	CustomAlias   string
	Title         string
	ExpiresInDays *int
}

type CreatedLink struct {
	Link      *models.Link
	ShortURL  string
	QRPending bool
}

// Resolution is the outcome of a successful redirect lookup.
type Resolution struct {
	Link      *models.CachedLink
	ShortCode string
	TargetURL string
	ShortURL  string
	FromCache bool
}

type LinkPage struct {
	Links      []*models.Link
	Pagination models.Pagination
}

type LinkService struct {
	store       storage.Storage
	cache       *cache.LinkCache
	queue       JobQueue
	codes       idgen.CodeSource
	runner      *background.Runner
	recorder    analytics.Recorder
	analytics   *analytics.Service
	geo         *enrichment.GeoIPEnricher
	baseURL     string
	maxAttempts int
	log         *logger.Logger
	now         func() time.Time
}

func NewLinkService(d Deps) *LinkService {
	s := &LinkService{
		store:       d.Store,
		cache:       d.Cache,
		queue:       d.Queue,
		codes:       d.Codes,
		runner:      d.Runner,
		recorder:    d.Recorder,
		analytics:   d.Analytics,
		geo:         d.Geo,
		baseURL:     d.BaseURL,
		maxAttempts: d.MaxAttempts,
		log:         d.Log,
		now:         d.Now,
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	if s.codes == nil {
		s.codes = idgen.RandomSource{Length: idgen.DefaultCodeLength}
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.runner == nil {
		s.runner = background.NewRunner(64, 5*time.Second, s.log)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *LinkService) ShortURL(code string) string {
	return s.baseURL + "/" + code
}

func (s *LinkService) Create(ctx context.Context, in CreateLinkInput) (*CreatedLink, error) {
	if err := validation.ValidateOriginalURL(in.OriginalURL); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if in.CustomAlias != "" {
		if err := validation.ValidateAlias(in.CustomAlias); err != nil {
			return nil, apperrors.Validation(err.Error())
		}
	}
	if len(in.Title) > MaxTitleLength {
		return nil, apperrors.Validation("Title must be at most 255 characters")
	}

	link := &models.Link{
		OriginalURL: in.OriginalURL,
		OwnerID:     in.OwnerID,
		Title:       in.Title,
	}
	if in.ExpiresInDays != nil {
		days := *in.ExpiresInDays
		if days < 1 || days > MaxExpiryDays {
			return nil, apperrors.Validation("expiresIn must be between 1 and 365 days")
		}
		expiresAt := s.now().UTC().AddDate(0, 0, days)
		link.ExpiresAt = &expiresAt
	}

	var err error
	if in.CustomAlias != "" {
		err = s.createWithAlias(ctx, link, in.CustomAlias)
	} else {
		err = s.createWithRandomCode(ctx, link)
	}
	if err != nil {
		return nil, err
	}

	shortURL := s.ShortURL(link.ShortCode)
	s.cacheSet(ctx, link.ShortCode, link.ToCached())
	s.enqueueQR(ctx, link, shortURL)

	s.log.Info("Created link %d code=%s owner=%q", link.ID, link.ShortCode, link.OwnerID)
	return &CreatedLink{
		Link:      link,
		ShortURL:  shortURL,
		QRPending: link.QRCode == "",
	}, nil
}

func (s *LinkService) createWithAlias(ctx context.Context, link *models.Link, alias string) error {
	link.ShortCode = alias
	link.CustomAlias = alias

	err := s.store.CreateWithAlias(ctx, link)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrCodeTaken):
		return apperrors.Conflict(msgAliasTaken)
	default:
		return apperrors.Internal(msgCreateFailed, err)
	}
}

func (s *LinkService) createWithRandomCode(ctx context.Context, link *models.Link) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.codes.NextCode()
		if err != nil {
			return apperrors.Internal(msgCodeExhausted, err)
		}
		link.ShortCode = code

		err = s.store.Create(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrCodeTaken) {
			return apperrors.Internal(msgCreateFailed, err)
		}
		s.log.Debug("Code %s collided on attempt %d", code, attempt)
	}
	return apperrors.Internal(msgCodeExhausted, ErrCodeSpaceExhausted)
}

func (s *LinkService) enqueueQR(ctx context.Context, link *models.Link, shortURL string) {
	if s.queue == nil {
		return
	}
	job := queue.QRJob{
		LinkID:    link.ID,
		ShortCode: link.ShortCode,
		ShortURL:  shortURL,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.log.Warn("Failed to enqueue QR job for link %d: %v", link.ID, err)
	}
}

// Resolve looks a code up cache-first, checks it is still live, and schedules
// the click side effects without waiting for them.
func (s *LinkService) Resolve(ctx context.Context, code string, meta models.RequestMeta) (*Resolution, error) {
	if code == "" || !idgen.IsBase62(code) {
		return nil, apperrors.NotFound(msgNotFound)
	}

	entry := s.cacheGet(ctx, code)
	fromCache := entry != nil

	if entry == nil {
		link, err := s.store.FindByCode(ctx, code)
		if err != nil {
			return nil, apperrors.Internal(msgInternal, err)
		}
		if link == nil {
			return nil, apperrors.NotFound(msgNotFound)
		}
		entry = link.ToCached()
		s.cacheSet(ctx, code, entry)
	}

	now := s.now()
	if !entry.IsActive {
		return nil, apperrors.Gone(msgDeactivated)
	}
	if entry.IsExpired(now) {
		return nil, apperrors.Gone(msgExpired)
	}

	target, err := validation.NormalizeTarget(entry.OriginalURL)
	if err != nil {
		s.log.Warn("Link %d has unusable target %q", entry.ID, entry.OriginalURL)
		return nil, apperrors.Validation(msgBadTarget)
	}

	s.dispatchClick(entry, code, meta, now)

	return &Resolution{
		Link:      entry,
		ShortCode: code,
		TargetURL: target,
		ShortURL:  s.ShortURL(code),
		FromCache: fromCache,
	}, nil
}

func (s *LinkService) dispatchClick(entry *models.CachedLink, code string, meta models.RequestMeta, now time.Time) {
	id := entry.ID

	if s.recorder != nil {
		event := analytics.BuildEvent(entry, code, meta, s.geo, now)
		s.runner.Go("record-click", func(ctx context.Context) error {
			return s.recorder.RecordClick(ctx, event)
		})
	}

	s.runner.Go("increment-clicks", func(ctx context.Context) error {
		return s.store.IncrementClicks(ctx, id)
	})
}

// List returns the owner's active links, newest first.
func (s *LinkService) List(ctx context.Context, ownerID string, page, limit int) (*LinkPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	links, total, err := s.store.ListByOwner(ctx, ownerID, limit, pageOffset(page, limit))
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch URLs", err)
	}
	return &LinkPage{
		Links:      links,
		Pagination: models.NewPagination(page, limit, total),
	}, nil
}

// pageOffset returns (page-1)*limit, saturating at MaxListOffset.
func pageOffset(page, limit int) int {
	if page-1 > MaxListOffset/limit {
		return MaxListOffset
	}
	return (page - 1) * limit
}

// Delete deactivates an owned link and evicts its cache entry.
func (s *LinkService) Delete(ctx context.Context, ownerID string, id int64) error {
	link, err := s.store.Deactivate(ctx, id, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound(msgNotFound)
	}
	if err != nil {
		return apperrors.Internal("Failed to delete URL", err)
	}

	s.cacheDelete(ctx, link.ShortCode)
	s.log.Info("Deactivated link %d code=%s", link.ID, link.ShortCode)
	return nil
}

func (s *LinkService) Stats(ctx context.Context, ownerID string, id int64, days int) (*models.LinkStats, error) {
	link, err := s.ownedLink(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.analytics.Stats(ctx, link, days)
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch analytics", err)
	}
	return stats, nil
}

func (s *LinkService) Clicks(ctx context.Context, ownerID string, id int64, limit int) ([]*models.ClickEvent, error) {
	link, err := s.ownedLink(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	events, err := s.analytics.RecentClicks(ctx, link.ID, limit)
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch analytics", err)
	}
	return events, nil
}

// Dashboard summarizes every link ownerID has created.
func (s *LinkService) Dashboard(ctx context.Context, ownerID string) (*models.Dashboard, error) {
	if ownerID == "" {
		return nil, apperrors.NotFound(msgNotFound)
	}
	dash, err := s.analytics.Dashboard(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch dashboard", err)
	}
	for i := range dash.TopURLs {
		dash.TopURLs[i].ShortURL = s.ShortURL(dash.TopURLs[i].ShortCode)
	}
	return dash, nil
}

func (s *LinkService) ownedLink(ctx context.Context, ownerID string, id int64) (*models.Link, error) {
	link, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(msgInternal, err)
	}
	if link == nil || ownerID == "" || link.OwnerID != ownerID {
		return nil, apperrors.NotFound(msgNotFound)
	}
	return link, nil
}

func (s *LinkService) cacheGet(ctx context.Context, code string) *models.CachedLink {
	if s.cache == nil {
		return nil
	}
	entry, err := s.cache.Get(ctx, code)
	if err != nil {
		s.log.Warn("Cache get failed for %s: %v", code, err)
		return nil
	}
	return entry
}

func (s *LinkService) cacheSet(ctx context.Context, code string, entry *models.CachedLink) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, code, entry); err != nil {
		s.log.Warn("Cache set failed for %s: %v", code, err)
	}
}

func (s *LinkService) cacheDelete(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, code); err != nil {
		s.log.Warn("Cache delete failed for %s: %v", code, err)
	}
}
