package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/Varun5711/shortqr/internal/enrichment"
	"github.com/Varun5711/shortqr/internal/logger"
	"github.com/Varun5711/shortqr/internal/models"
	"github.com/Varun5711/shortqr/internal/storage"
)

const (
	DefaultStatsDays = 30
	MaxStatsDays     = 365
	DefaultClicks    = 50
	MaxClicks        = 500
	topBuckets       = 10

	DashboardDays     = 7
	DashboardTopLinks = 5

	DefaultMirrorTimeout = 2 * time.Second
)

// Recorder persists one click event.
type Recorder interface {
	RecordClick(ctx context.Context, event *models.ClickEvent) error
}

// MultiRecorder writes to a primary recorder and mirrors best-effort to the rest.
// The primary is written first; each mirror then gets its own deadline.
type MultiRecorder struct {
	primary       Recorder
	mirrors       []Recorder
	mirrorTimeout time.Duration
	log           *logger.Logger
}

func NewMultiRecorder(log *logger.Logger, primary Recorder, mirrors ...Recorder) *MultiRecorder {
	return &MultiRecorder{primary: primary, mirrors: mirrors, mirrorTimeout: DefaultMirrorTimeout, log: log}
}

// WithMirrorTimeout bounds each mirror write.
func (m *MultiRecorder) WithMirrorTimeout(d time.Duration) *MultiRecorder {
	if d > 0 {
		m.mirrorTimeout = d
	}
	return m
}

func (m *MultiRecorder) RecordClick(ctx context.Context, event *models.ClickEvent) error {
	err := m.primary.RecordClick(ctx, event)

	for _, mirror := range m.mirrors {
		m.mirror(ctx, mirror, event)
	}
	return err
}

func (m *MultiRecorder) mirror(ctx context.Context, r Recorder, event *models.ClickEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.mirrorTimeout)
	defer cancel()

	if err := r.RecordClick(ctx, event); err != nil {
		m.log.Warn("Analytics mirror failed for link %d: %v", event.URLID, err)
	}
}

// BuildEvent classifies a visit into a click event.
func BuildEvent(link *models.CachedLink, shortCode string, meta models.RequestMeta, geo *enrichment.GeoIPEnricher, now time.Time) *models.ClickEvent {
	ua := enrichment.ParseUserAgent(meta.UserAgent)

	event := &models.ClickEvent{
		URLID:          link.ID,
		ShortCode:      shortCode,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		Referer:        meta.Referer,
		DeviceType:     ua.DeviceType,
		Browser:        ua.Browser,
		BrowserVersion: ua.BrowserVersion,
		OS:             ua.OS,
		IsBot:          ua.IsBot,
		ClickedAt:      now.UTC(),
	}
	if geo != nil {
		event.Country = geo.ResolveCountry(meta.Country, meta.IPAddress)
	}
	return event
}

// Service answers aggregated questions about a link's clicks.
type Service struct {
	clicks storage.ClickStore
	now    func() time.Time
}

func NewService(clicks storage.ClickStore) *Service {
	return &Service{clicks: clicks, now: time.Now}
}

// Stats aggregates the last days of clicks; days is clamped to [1, MaxStatsDays].
func (s *Service) Stats(ctx context.Context, link *models.Link, days int) (*models.LinkStats, error) {
	days = clamp(days, DefaultStatsDays, MaxStatsDays)

	y, m, d := s.now().UTC().Date()
	since := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	stats, err := s.clicks.ClickStats(ctx, link.ID, since, topBuckets)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate clicks: %w", err)
	}

	stats.LinkID = link.ID
	stats.ShortCode = link.ShortCode
	stats.TotalClicks = link.ClickCount
	stats.Days = days
	return stats, nil
}

func (s *Service) RecentClicks(ctx context.Context, linkID int64, limit int) ([]*models.ClickEvent, error) {
	limit = clamp(limit, DefaultClicks, MaxClicks)

	events, err := s.clicks.RecentClicks(ctx, linkID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load clicks: %w", err)
	}
	return events, nil
}

// Dashboard summarizes an owner's links with per-day clicks over the last
// DashboardDays days, today included.
func (s *Service) Dashboard(ctx context.Context, ownerID string) (*models.Dashboard, error) {
	y, m, d := s.now().UTC().Date()
	since := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(DashboardDays - 1))

	dash, err := s.clicks.OwnerSummary(ctx, ownerID, since, DashboardTopLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize owner links: %w", err)
	}
	if dash.TopURLs == nil {
		dash.TopURLs = []models.TopLink{}
	}
	if dash.RecentActivity == nil {
		dash.RecentActivity = []models.DailyCount{}
	}
	return dash, nil
}

// clamp maps non-positive values to def and caps at max.
func clamp(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
