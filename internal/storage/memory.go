package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Varun5711/shortqr/internal/models"
)

// MemoryStorage is an in-process Storage and ClickStore for development and tests.
// It returns copies so callers never share state with the store.
type MemoryStorage struct {
	mu     sync.RWMutex
	nextID int64
	links  map[int64]*models.Link
	codes  map[string]int64
	clicks []*models.ClickEvent
	swept  map[int64]bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		links: make(map[int64]*models.Link),
		codes: make(map[string]int64),
		swept: make(map[int64]bool),
	}
}

func copyLink(l *models.Link) *models.Link {
	c := *l
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// insert must run with mu held.
func (s *MemoryStorage) insert(link *models.Link) {
	s.nextID++
	link.ID = s.nextID
	link.IsActive = true
	link.CreatedAt = time.Now().UTC()

	s.links[link.ID] = copyLink(link)
	s.codes[link.ShortCode] = link.ID
	if link.CustomAlias != "" {
		s.codes[link.CustomAlias] = link.ID
	}
}

func (s *MemoryStorage) Create(ctx context.Context, link *models.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.codes[link.ShortCode]; taken {
		return ErrCodeTaken
	}
	if link.CustomAlias != "" {
		if _, taken := s.codes[link.CustomAlias]; taken {
			return ErrCodeTaken
		}
	}

	s.insert(link)
	return nil
}

func (s *MemoryStorage) CreateWithAlias(ctx context.Context, link *models.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.codes[link.CustomAlias]; taken {
		return ErrCodeTaken
	}

	link.ShortCode = link.CustomAlias
	s.insert(link)
	return nil
}

func (s *MemoryStorage) FindByCode(ctx context.Context, code string) (*models.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.codes[code]
	if !ok {
		return nil, nil
	}
	return copyLink(s.links[id]), nil
}

func (s *MemoryStorage) FindByID(ctx context.Context, id int64) (*models.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[id]
	if !ok {
		return nil, nil
	}
	return copyLink(link), nil
}

func (s *MemoryStorage) IncrementClicks(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok {
		return ErrNotFound
	}
	link.ClickCount++
	return nil
}

func (s *MemoryStorage) SetQRCode(ctx context.Context, id int64, qr string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok || link.QRCode != "" {
		return false, nil
	}
	link.QRCode = qr
	return true, nil
}

func (s *MemoryStorage) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Link, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []*models.Link
	for _, link := range s.links {
		if link.OwnerID == ownerID && link.IsActive {
			owned = append(owned, link)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	total := int64(len(owned))
	if offset < 0 {
		offset = 0
	}
	page := make([]*models.Link, 0, limit)
	for i := offset; i < len(owned) && len(page) < limit; i++ {
		page = append(page, copyLink(owned[i]))
	}
	return page, total, nil
}

func (s *MemoryStorage) Deactivate(ctx context.Context, id int64, ownerID string) (*models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok || link.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	link.IsActive = false
	return copyLink(link), nil
}

func (s *MemoryStorage) MarkExpired(ctx context.Context, before time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*models.Link
	for _, link := range s.links {
		if !s.swept[link.ID] && link.ExpiresAt != nil && link.ExpiresAt.Before(before) {
			expired = append(expired, link)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(*expired[j].ExpiresAt) })
	if len(expired) > limit {
		expired = expired[:limit]
	}

	codes := make([]string, 0, len(expired))
	for _, link := range expired {
		s.swept[link.ID] = true
		codes = append(codes, link.ShortCode)
	}
	return codes, nil
}

func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) RecordClick(ctx context.Context, event *models.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[event.URLID]; !ok {
		return ErrNotFound
	}

	e := *event
	e.ID = int64(len(s.clicks) + 1)
	if e.ClickedAt.IsZero() {
		e.ClickedAt = time.Now().UTC()
	}
	s.clicks = append(s.clicks, &e)
	return nil
}

func (s *MemoryStorage) RecentClicks(ctx context.Context, urlID int64, limit int) ([]*models.ClickEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ClickEvent, 0, limit)
	for i := len(s.clicks) - 1; i >= 0 && len(out) < limit; i-- {
		if s.clicks[i].URLID == urlID {
			e := *s.clicks[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

func (s *MemoryStorage) ClickStats(ctx context.Context, urlID int64, since time.Time, topN int) (*models.LinkStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.LinkStats{LinkID: urlID, Timeline: []models.DailyCount{}}
	visitors := make(map[string]struct{})
	daily := make(map[string]int64)
	counters := map[string]map[string]int64{
		"device": {}, "browser": {}, "os": {}, "referer": {}, "country": {},
	}

	for _, e := range s.clicks {
		if e.URLID != urlID || e.ClickedAt.Before(since) {
			continue
		}
		stats.RecordedClicks++
		visitors[e.IPAddress] = struct{}{}
		daily[e.ClickedAt.UTC().Format("2006-01-02")]++
		counters["device"][orDefault(e.DeviceType, unknownBucket)]++
		counters["browser"][orDefault(e.Browser, unknownBucket)]++
		counters["os"][orDefault(e.OS, unknownBucket)]++
		counters["referer"][orDefault(e.Referer, directBucket)]++
		counters["country"][orDefault(e.Country, unknownBucket)]++
	}
	stats.UniqueVisitors = int64(len(visitors))

	for day, n := range daily {
		stats.Timeline = append(stats.Timeline, models.DailyCount{Date: day, Clicks: n})
	}
	sort.Slice(stats.Timeline, func(i, j int) bool { return stats.Timeline[i].Date < stats.Timeline[j].Date })

	stats.Devices = topBuckets(counters["device"], topN)
	stats.Browsers = topBuckets(counters["browser"], topN)
	stats.OS = topBuckets(counters["os"], topN)
	stats.TopReferrers = topBuckets(counters["referer"], topN)
	stats.Countries = topBuckets(counters["country"], topN)
	return stats, nil
}

func (s *MemoryStorage) OwnerSummary(ctx context.Context, ownerID string, since time.Time, topN int) (*models.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := &models.Dashboard{TopURLs: []models.TopLink{}, RecentActivity: []models.DailyCount{}}
	owned := make(map[int64]bool)
	var links []*models.Link
	for _, link := range s.links {
		if link.OwnerID != ownerID {
			continue
		}
		owned[link.ID] = true
		links = append(links, link)
		d.TotalURLs++
		d.TotalClicks += link.ClickCount
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].ClickCount != links[j].ClickCount {
			return links[i].ClickCount > links[j].ClickCount
		}
		return links[i].ID > links[j].ID
	})
	for i := 0; i < len(links) && i < topN; i++ {
		l := links[i]
		d.TopURLs = append(d.TopURLs, models.TopLink{
			ID:          l.ID,
			OriginalURL: l.OriginalURL,
			ShortCode:   l.ShortCode,
			ClickCount:  l.ClickCount,
			CreatedAt:   l.CreatedAt,
		})
	}

	daily := make(map[string]int64)
	for _, e := range s.clicks {
		if owned[e.URLID] && !e.ClickedAt.Before(since) {
			daily[e.ClickedAt.UTC().Format("2006-01-02")]++
		}
	}
	for day, n := range daily {
		d.RecentActivity = append(d.RecentActivity, models.DailyCount{Date: day, Clicks: n})
	}
	sort.Slice(d.RecentActivity, func(i, j int) bool { return d.RecentActivity[i].Date > d.RecentActivity[j].Date })
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// topBuckets orders by count descending, then name, and keeps at most n.
func topBuckets(counts map[string]int64, n int) []models.Breakdown {
	out := make([]models.Breakdown, 0, len(counts))
	for name, c := range counts {
		out = append(out, models.Breakdown{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
