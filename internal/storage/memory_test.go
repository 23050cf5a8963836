package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Varun5711/shortqr/internal/models"
)

var (
	_ Storage    = (*MemoryStorage)(nil)
	_ ClickStore = (*MemoryStorage)(nil)
	_ Storage    = (*PostgresStorage)(nil)
	_ ClickStore = (*PostgresStorage)(nil)
)

func TestMemory_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	link := &models.Link{OriginalURL: "https://example.com", ShortCode: "abc123", OwnerID: "u1"}
	require.NoError(t, s.Create(ctx, link))
	assert.Equal(t, int64(1), link.ID)
	assert.True(t, link.IsActive)
	assert.False(t, link.CreatedAt.IsZero())

	got, err := s.FindByCode(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "https://example.com", got.OriginalURL)

	got, err = s.FindByCode(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = s.Create(ctx, &models.Link{OriginalURL: "https://other.com", ShortCode: "abc123"})
	assert.ErrorIs(t, err, ErrCodeTaken)
}

func TestMemory_AliasConflictLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	first := &models.Link{OriginalURL: "https://first.example", CustomAlias: "promo"}
	require.NoError(t, s.CreateWithAlias(ctx, first))
	assert.Equal(t, "promo", first.ShortCode)

	second := &models.Link{OriginalURL: "https://second.example", CustomAlias: "promo"}
	assert.ErrorIs(t, s.CreateWithAlias(ctx, second), ErrCodeTaken)

	got, err := s.FindByCode(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, "https://first.example", got.OriginalURL)
	assert.Len(t, s.links, 1)

	// A random code equal to an existing alias is also a collision.
	assert.ErrorIs(t, s.Create(ctx, &models.Link{OriginalURL: "https://x.example", ShortCode: "promo"}), ErrCodeTaken)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.Create(ctx, &models.Link{OriginalURL: "https://example.com", ShortCode: "c0py"}))

	got, _ := s.FindByCode(ctx, "c0py")
	got.OriginalURL = "https://evil.example"

	again, _ := s.FindByCode(ctx, "c0py")
	assert.Equal(t, "https://example.com", again.OriginalURL)
}

func TestMemory_SetQRCodeOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	link := &models.Link{OriginalURL: "https://example.com", ShortCode: "qr1"}
	require.NoError(t, s.Create(ctx, link))

	ok, err := s.SetQRCode(ctx, link.ID, "data:image/png;base64,AAA")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetQRCode(ctx, link.ID, "data:image/png;base64,BBB")
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := s.FindByID(ctx, link.ID)
	assert.Equal(t, "data:image/png;base64,AAA", got.QRCode)
}

func TestMemory_IncrementClicks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	link := &models.Link{OriginalURL: "https://example.com", ShortCode: "clk"}
	require.NoError(t, s.Create(ctx, link))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.IncrementClicks(ctx, link.ID))
	}
	got, _ := s.FindByID(ctx, link.ID)
	assert.Equal(t, int64(3), got.ClickCount)

	assert.ErrorIs(t, s.IncrementClicks(ctx, 999), ErrNotFound)
}

func TestMemory_ListByOwnerPaginates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Create(ctx, &models.Link{
			OriginalURL: fmt.Sprintf("https://example.com/%d", i),
			ShortCode:   fmt.Sprintf("own%d", i),
			OwnerID:     "alice",
		}))
	}
	require.NoError(t, s.Create(ctx, &models.Link{OriginalURL: "https://b.example", ShortCode: "bob0", OwnerID: "bob"}))

	page, total, err := s.ListByOwner(ctx, "alice", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, "own4", page[0].ShortCode)
	assert.Equal(t, "own3", page[1].ShortCode)

	page, _, err = s.ListByOwner(ctx, "alice", 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "own0", page[0].ShortCode)
}

func TestMemory_Deactivate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	link := &models.Link{OriginalURL: "https://example.com", ShortCode: "del", OwnerID: "alice"}
	require.NoError(t, s.Create(ctx, link))

	_, err := s.Deactivate(ctx, link.ID, "mallory")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.Deactivate(ctx, link.ID, "alice")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, "del", got.ShortCode)

	// Row is retained.
	found, _ := s.FindByCode(ctx, "del")
	require.NotNil(t, found)
	assert.False(t, found.IsActive)

	_, total, _ := s.ListByOwner(ctx, "alice", 10, 0)
	assert.Equal(t, int64(0), total)
}

func TestMemory_MarkExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	now := time.Now()
	past1, past2, future := now.Add(-2*time.Hour), now.Add(-time.Hour), now.Add(time.Hour)

	require.NoError(t, s.Create(ctx, &models.Link{OriginalURL: "https://a", ShortCode: "old1", ExpiresAt: &past1}))
	require.NoError(t, s.Create(ctx, &models.Link{OriginalURL: "https://b", ShortCode: "old2", ExpiresAt: &past2}))
	require.NoError(t, s.Create(ctx, &models.Link{OriginalURL: "https://c", ShortCode: "new1", ExpiresAt: &future}))
	require.NoError(t, s.Create(ctx, &models.Link{OriginalURL: "https://d", ShortCode: "never"}))

	codes, err := s.MarkExpired(ctx, now, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"old1"}, codes)

	codes, err = s.MarkExpired(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"old2"}, codes)

	codes, err = s.MarkExpired(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, codes)

	old, err := s.FindByCode(ctx, "old1")
	require.NoError(t, err)
	assert.True(t, old.IsActive)
}

func TestMemory_ClickStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	link := &models.Link{OriginalURL: "https://example.com", ShortCode: "stats"}
	require.NoError(t, s.Create(ctx, link))

	day1 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	events := []*models.ClickEvent{
		{URLID: link.ID, IPAddress: "1.1.1.1", DeviceType: "mobile", Browser: "Chrome", OS: "Android", Referer: "https://t.co", ClickedAt: day1},
		{URLID: link.ID, IPAddress: "1.1.1.1", DeviceType: "mobile", Browser: "Chrome", OS: "Android", ClickedAt: day1},
		{URLID: link.ID, IPAddress: "2.2.2.2", DeviceType: "desktop", Browser: "Firefox", OS: "Linux", ClickedAt: day2},
		{URLID: link.ID, IPAddress: "3.3.3.3", DeviceType: "desktop", Browser: "Safari", OS: "MacOS", ClickedAt: day1.Add(-30 * 24 * time.Hour)},
	}
	for _, e := range events {
		require.NoError(t, s.RecordClick(ctx, e))
	}

	stats, err := s.ClickStats(ctx, link.ID, day1.Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.RecordedClicks)
	assert.Equal(t, int64(2), stats.UniqueVisitors)
	assert.Equal(t, []models.DailyCount{{Date: "2025-05-01", Clicks: 2}, {Date: "2025-05-02", Clicks: 1}}, stats.Timeline)
	assert.Equal(t, []models.Breakdown{{Name: "mobile", Count: 2}, {Name: "desktop", Count: 1}}, stats.Devices)
	assert.Equal(t, []models.Breakdown{{Name: "Direct", Count: 2}, {Name: "https://t.co", Count: 1}}, stats.TopReferrers)
	assert.Equal(t, []models.Breakdown{{Name: "Unknown", Count: 3}}, stats.Countries)

	recent, err := s.RecentClicks(ctx, link.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "3.3.3.3", recent[0].IPAddress)

	assert.ErrorIs(t, s.RecordClick(ctx, &models.ClickEvent{URLID: 42}), ErrNotFound)
}

func TestMemory_OwnerSummary(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	now := time.Now().UTC()

	var ids []int64
	for i := 0; i < 6; i++ {
		link := &models.Link{OriginalURL: "https://example.com", ShortCode: fmt.Sprintf("own%02d", i), OwnerID: "alice"}
		require.NoError(t, s.Create(ctx, link))
		for j := 0; j < i; j++ {
			require.NoError(t, s.IncrementClicks(ctx, link.ID))
		}
		ids = append(ids, link.ID)
	}
	require.NoError(t, s.Create(ctx, &models.Link{OriginalURL: "https://example.com", ShortCode: "bob001", OwnerID: "bob"}))
	_, err := s.Deactivate(ctx, ids[5], "alice")
	require.NoError(t, err)

	require.NoError(t, s.RecordClick(ctx, &models.ClickEvent{URLID: ids[1], ClickedAt: now}))
	require.NoError(t, s.RecordClick(ctx, &models.ClickEvent{URLID: ids[2], ClickedAt: now.AddDate(0, 0, -1)}))
	require.NoError(t, s.RecordClick(ctx, &models.ClickEvent{URLID: ids[2], ClickedAt: now.AddDate(0, 0, -30)}))

	d, err := s.OwnerSummary(ctx, "alice", now.AddDate(0, 0, -6), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), d.TotalURLs)
	assert.Equal(t, int64(15), d.TotalClicks)
	require.Len(t, d.TopURLs, 5)
	assert.Equal(t, "own05", d.TopURLs[0].ShortCode)
	assert.Equal(t, "own01", d.TopURLs[4].ShortCode)

	require.Len(t, d.RecentActivity, 2)
	assert.Equal(t, now.Format("2006-01-02"), d.RecentActivity[0].Date)
	assert.Equal(t, now.AddDate(0, 0, -1).Format("2006-01-02"), d.RecentActivity[1].Date)
}
