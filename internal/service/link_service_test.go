package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Varun5711/shortqr/internal/analytics"
	"github.com/Varun5711/shortqr/internal/apperrors"
	"github.com/Varun5711/shortqr/internal/background"
	"github.com/Varun5711/shortqr/internal/cache"
	"github.com/Varun5711/shortqr/internal/cleanup"
	"github.com/Varun5711/shortqr/internal/idgen"
	"github.com/Varun5711/shortqr/internal/logger"
	"github.com/Varun5711/shortqr/internal/models"
	"github.com/Varun5711/shortqr/internal/queue"
	"github.com/Varun5711/shortqr/internal/storage"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []queue.QRJob
	err  error
}

func (q *fakeQueue) Enqueue(ctx context.Context, job queue.QRJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// fixedCodes always returns the same code.
type fixedCodes string

func (f fixedCodes) NextCode() (string, error) { return string(f), nil }

type fixture struct {
	svc    *LinkService
	store  *storage.MemoryStorage
	cache  *cache.LinkCache
	queue  *fakeQueue
	runner *background.Runner
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()
	store := storage.NewMemoryStorage()
	lc := cache.NewLinkCache(cache.NewMultiTierCache(cache.Config{L1Capacity: 100, L1TTL: time.Minute}, nil))
	q := &fakeQueue{}
	runner := background.NewRunner(16, time.Second, logger.NewNop())

	d := Deps{
		Store:     store,
		Cache:     lc,
		Queue:     q,
		Codes:     idgen.RandomSource{Length: 6},
		Runner:    runner,
		Recorder:  store,
		Analytics: analytics.NewService(store),
		BaseURL:   "http://sho.rt",
		Log:       logger.NewNop(),
	}
	for _, o := range opts {
		o(&d)
	}
	return &fixture{svc: NewLinkService(d), store: store, cache: d.Cache, queue: q, runner: runner}
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.runner.Wait(ctx))
}

func (f *fixture) seed(t *testing.T, link *models.Link) *models.Link {
	t.Helper()
	require.NoError(t, f.store.Create(context.Background(), link))
	return link
}

func TestCreate_RandomCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		created, err := f.svc.Create(ctx, CreateLinkInput{OriginalURL: "https://example.com/page"})
		require.NoError(t, err)

		code := created.Link.ShortCode
		assert.Len(t, code, 6)
		assert.True(t, idgen.IsBase62(code))
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestCreate_ReturnsShortURLAndEnqueues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateLinkInput{OriginalURL: "https://example.com", OwnerID: "u1", Title: "home"})
	require.NoError(t, err)

	assert.Equal(t, "http://sho.rt/"+created.Link.ShortCode, created.ShortURL)
	assert.True(t, created.QRPending)
	assert.Empty(t, created.Link.QRCode)
	assert.Nil(t, created.Link.ExpiresAt)

	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, created.Link.ID, f.queue.jobs[0].LinkID)
	assert.Equal(t, created.ShortURL, f.queue.jobs[0].ShortURL)

	entry, err := f.cache.Get(ctx, created.Link.ShortCode)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "https://example.com", entry.OriginalURL)
}

func TestCreate_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, func(d *Deps) { d.Now = func() time.Time { return now } })

	days := 7
	created, err := f.svc.Create(context.Background(), CreateLinkInput{OriginalURL: "https://example.com", ExpiresInDays: &days})
	require.NoError(t, err)
	require.NotNil(t, created.Link.ExpiresAt)
	assert.Equal(t, now.AddDate(0, 0, 7), *created.Link.ExpiresAt)

	days = 0
	_, err = f.svc.Create(context.Background(), CreateLinkInput{OriginalURL: "https://example.com", ExpiresInDays: &days})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []CreateLinkInput{
		{OriginalURL: ""},
		{OriginalURL: "not a url"},
		{OriginalURL: "ftp://example.com"},
		{OriginalURL: "https://example.com", CustomAlias: "ab"},
		{OriginalURL: "https://example.com", CustomAlias: "has-dash"},
		{OriginalURL: "https://example.com", CustomAlias: "admin"},
	} {
		_, err := f.svc.Create(ctx, in)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err), "input %+v", in)
	}
	assert.Empty(t, f.queue.jobs)
}

func TestCreate_AliasConflictLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, CreateLinkInput{OriginalURL: "https://first.example", CustomAlias: "promo", OwnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "promo", first.Link.ShortCode)

	_, err = f.svc.Create(ctx, CreateLinkInput{OriginalURL: "https://second.example", CustomAlias: "promo", OwnerID: "u1"})
	require.Error(t, err)
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.KindConflict, appErr.Kind)
	assert.Equal(t, "Custom alias already taken", appErr.Message)

	got, err := f.store.FindByCode(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, "https://first.example", got.OriginalURL)

	_, total, err := f.store.ListByOwner(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestCreate_CodeSpaceExhausted(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Codes = fixedCodes("AAAAAA")
		d.MaxAttempts = 3
	})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateLinkInput{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, CreateLinkInput{OriginalURL: "https://example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}

func TestCreate_QueueFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("stream down")

	created, err := f.svc.Create(context.Background(), CreateLinkInput{OriginalURL: "https://example.com"})
	require.NoError(t, err)
	assert.True(t, created.QRPending)
}

func TestResolve_CacheMissSeedsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	link := f.seed(t, &models.Link{OriginalURL: "http://localhost/path", ShortCode: "miss01"})

	res, err := f.svc.Resolve(ctx, "miss01", models.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/path", res.TargetURL)
	assert.False(t, res.FromCache)
	assert.Equal(t, "http://sho.rt/miss01", res.ShortURL)

	entry, err := f.cache.Get(ctx, "miss01")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, link.ID, entry.ID)

	res, err = f.svc.Resolve(ctx, "miss01", models.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
}

func TestResolve_SideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	link := f.seed(t, &models.Link{OriginalURL: "https://example.com", ShortCode: "fx0001"})

	_, err := f.svc.Resolve(ctx, "fx0001", models.RequestMeta{IPAddress: "203.0.113.9", UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile Safari/604.1", Referer: "https://news.example"})
	require.NoError(t, err)
	f.drain(t)

	got, err := f.store.FindByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ClickCount)

	clicks, err := f.store.RecentClicks(ctx, link.ID, 10)
	require.NoError(t, err)
	require.Len(t, clicks, 1)
	assert.Equal(t, "mobile", clicks[0].DeviceType)
	assert.Equal(t, "iOS", clicks[0].OS)
	assert.Equal(t, "https://news.example", clicks[0].Referer)
}

func TestResolve_NotFound(t *testing.T) {
	f := newFixture(t)

	for _, code := range []string{"nothere", "bad-code", ""} {
		_, err := f.svc.Resolve(context.Background(), code, models.RequestMeta{})
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err), code)
	}
}

func TestResolve_InactiveFromStoreAndCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link := f.seed(t, &models.Link{OriginalURL: "https://example.com", ShortCode: "gone01", OwnerID: "u1"})
	_, err := f.store.Deactivate(ctx, link.ID, "u1")
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, "gone01", models.RequestMeta{})
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.KindGone, appErr.Kind)
	assert.Equal(t, "URL has been deactivated", appErr.Message)

	require.NoError(t, f.cache.Set(ctx, "gone02", &models.CachedLink{ID: 99, OriginalURL: "https://example.com", IsActive: false}))
	_, err = f.svc.Resolve(ctx, "gone02", models.RequestMeta{})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "URL has been deactivated", appErr.Message)
}

func TestResolve_Expiry(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, func(d *Deps) { d.Now = func() time.Time { return now } })
	ctx := context.Background()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	f.seed(t, &models.Link{OriginalURL: "https://example.com", ShortCode: "old001", ExpiresAt: &past})
	f.seed(t, &models.Link{OriginalURL: "https://example.com", ShortCode: "new001", ExpiresAt: &future})
	f.seed(t, &models.Link{OriginalURL: "https://example.com", ShortCode: "nul001"})

	_, err := f.svc.Resolve(ctx, "old001", models.RequestMeta{})
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.KindGone, appErr.Kind)
	assert.Equal(t, "URL has expired", appErr.Message)

	_, err = f.svc.Resolve(ctx, "new001", models.RequestMeta{})
	assert.NoError(t, err)
	_, err = f.svc.Resolve(ctx, "nul001", models.RequestMeta{})
	assert.NoError(t, err)
}

func TestResolve_TargetNormalization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, &models.Link{OriginalURL: "example.com", ShortCode: "norm01"})
	res, err := f.svc.Resolve(ctx, "norm01", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", res.TargetURL)

	f.seed(t, &models.Link{OriginalURL: "javascript:alert(1)", ShortCode: "xss001"})
	_, err = f.svc.Resolve(ctx, "xss001", models.RequestMeta{})
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.KindValidation, appErr.Kind)
	assert.Equal(t, "Unsupported or invalid target URL", appErr.Message)
	assert.Equal(t, 400, appErr.StatusCode())

	f.drain(t)
	clicks, err := f.store.RecentClicks(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, clicks)
}

func TestUnreachableCacheDoesNotBlock(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { rdb.Close() })

	broken := cache.NewLinkCache(cache.NewMultiTierCache(cache.Config{OpTimeout: 200 * time.Millisecond}, rdb))
	f := newFixture(t, func(d *Deps) { d.Cache = broken })
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateLinkInput{OriginalURL: "https://example.com/down"})
	require.NoError(t, err)

	res, err := f.svc.Resolve(ctx, created.Link.ShortCode, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/down", res.TargetURL)
	assert.False(t, res.FromCache)
}

func TestListAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var codes []string
	for i := 0; i < 3; i++ {
		created, err := f.svc.Create(ctx, CreateLinkInput{OriginalURL: "https://example.com", OwnerID: "owner"})
		require.NoError(t, err)
		codes = append(codes, created.Link.ShortCode)
	}
	_, err := f.svc.Create(ctx, CreateLinkInput{OriginalURL: "https://example.com", OwnerID: "other"})
	require.NoError(t, err)

	page, err := f.svc.List(ctx, "owner", 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Links, 2)
	assert.Equal(t, int64(3), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	target, err := f.store.FindByCode(ctx, codes[0])
	require.NoError(t, err)

	err = f.svc.Delete(ctx, "other", target.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	require.NoError(t, f.svc.Delete(ctx, "owner", target.ID))

	entry, err := f.cache.Get(ctx, codes[0])
	require.NoError(t, err)
	assert.Nil(t, entry)

	_, err = f.svc.Resolve(ctx, codes[0], models.RequestMeta{})
	assert.Equal(t, apperrors.KindGone, apperrors.KindOf(err))

	page, err = f.svc.List(ctx, "owner", 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Links, 2)
}

func TestStatsAndClicksRequireOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateLinkInput{OriginalURL: "https://example.com", OwnerID: "owner"})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := f.svc.Resolve(ctx, created.Link.ShortCode, models.RequestMeta{IPAddress: "198.51.100.7"})
		require.NoError(t, err)
	}
	f.drain(t)

	stats, err := f.svc.Stats(ctx, "owner", created.Link.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalClicks)
	assert.Equal(t, int64(2), stats.RecordedClicks)
	assert.Equal(t, int64(1), stats.UniqueVisitors)

	clicks, err := f.svc.Clicks(ctx, "owner", created.Link.ID, 0)
	require.NoError(t, err)
	assert.Len(t, clicks, 2)

	_, err = f.svc.Stats(ctx, "intruder", created.Link.ID, 7)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	_, err = f.svc.Clicks(ctx, "", created.Link.ID, 10)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestResolve_ExpiredAfterCleanupSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	f.seed(t, &models.Link{OriginalURL: "https://example.com", ShortCode: "swept1", OwnerID: "owner", ExpiresAt: &past})

	_, err := f.svc.Resolve(ctx, "swept1", models.RequestMeta{})
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "URL has expired", appErr.Message)

	n, err := cleanup.NewSweeper(f.store, f.cache, nil, cleanup.Config{}, logger.NewNop()).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.Resolve(ctx, "swept1", models.RequestMeta{})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.KindGone, appErr.Kind)
	assert.Equal(t, "URL has expired", appErr.Message)

	page, err := f.svc.List(ctx, "owner", 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Links, 1)
}

func TestList_HugePageIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateLinkInput{OriginalURL: "https://example.com", OwnerID: "owner"})
	require.NoError(t, err)

	for _, page := range []int{math.MaxInt / 50, math.MaxInt, math.MaxInt32} {
		result, err := f.svc.List(ctx, "owner", page, 100)
		require.NoError(t, err, page)
		assert.Empty(t, result.Links, page)
		assert.Equal(t, int64(1), result.Pagination.Total)
	}
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, pageOffset(1, 10))
	assert.Equal(t, 20, pageOffset(3, 10))
	assert.Equal(t, MaxListOffset, pageOffset(math.MaxInt, 100))
	assert.Equal(t, MaxListOffset, pageOffset(math.MaxInt/50, 100))
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var codes []string
	for i := 0; i < 3; i++ {
		created, err := f.svc.Create(ctx, CreateLinkInput{OriginalURL: "https://example.com", OwnerID: "owner"})
		require.NoError(t, err)
		codes = append(codes, created.Link.ShortCode)
	}
	_, err := f.svc.Create(ctx, CreateLinkInput{OriginalURL: "https://example.com", OwnerID: "other"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Resolve(ctx, codes[1], models.RequestMeta{})
		require.NoError(t, err)
	}
	_, err = f.svc.Resolve(ctx, codes[2], models.RequestMeta{})
	require.NoError(t, err)
	f.drain(t)

	dash, err := f.svc.Dashboard(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, int64(3), dash.TotalURLs)
	assert.Equal(t, int64(4), dash.TotalClicks)
	require.Len(t, dash.TopURLs, 3)
	assert.Equal(t, codes[1], dash.TopURLs[0].ShortCode)
	assert.Equal(t, int64(3), dash.TopURLs[0].ClickCount)
	assert.Equal(t, "http://sho.rt/"+codes[1], dash.TopURLs[0].ShortURL)
	assert.Equal(t, codes[2], dash.TopURLs[1].ShortCode)
	require.Len(t, dash.RecentActivity, 1)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), dash.RecentActivity[0].Date)
	assert.Equal(t, int64(4), dash.RecentActivity[0].Clicks)

	empty, err := f.svc.Dashboard(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalURLs)
	assert.NotNil(t, empty.TopURLs)
	assert.NotNil(t, empty.RecentActivity)

	_, err = f.svc.Dashboard(ctx, "")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
