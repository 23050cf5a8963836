package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Varun5711/shortqr/internal/models"
)

func (s *PostgresStorage) RecordClick(ctx context.Context, e *models.ClickEvent) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	clickedAt := e.ClickedAt
	if clickedAt.IsZero() {
		clickedAt = time.Now()
	}

	query := `
		INSERT INTO analytics (url_id, ip_address, user_agent, referer, device_type,
			browser, browser_version, os, is_bot, country, clicked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11)
	`

	_, err := s.db.Write().Exec(ctx, query,
		e.URLID,
		e.IPAddress,
		e.UserAgent,
		e.Referer,
		e.DeviceType,
		e.Browser,
		e.BrowserVersion,
		e.OS,
		e.IsBot,
		e.Country,
		clickedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecentClicks(ctx context.Context, urlID int64, limit int) ([]*models.ClickEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, url_id, COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(referer, ''),
			COALESCE(device_type, ''), COALESCE(browser, ''), COALESCE(browser_version, ''),
			COALESCE(os, ''), is_bot, COALESCE(country, ''), clicked_at
		FROM analytics
		WHERE url_id = $1
		ORDER BY clicked_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.db.Read().Query(ctx, query, urlID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query clicks: %w", err)
	}
	defer rows.Close()

	events := make([]*models.ClickEvent, 0, limit)
	for rows.Next() {
		var e models.ClickEvent
		if err := rows.Scan(
			&e.ID,
			&e.URLID,
			&e.IPAddress,
			&e.UserAgent,
			&e.Referer,
			&e.DeviceType,
			&e.Browser,
			&e.BrowserVersion,
			&e.OS,
			&e.IsBot,
			&e.Country,
			&e.ClickedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return events, nil
}

// Breakdown expressions are fixed strings, never caller input.
var breakdownColumns = map[string]string{
	"device":  `COALESCE(NULLIF(device_type, ''), '` + unknownBucket + `')`,
	"browser": `COALESCE(NULLIF(browser, ''), '` + unknownBucket + `')`,
	"os":      `COALESCE(NULLIF(os, ''), '` + unknownBucket + `')`,
	"referer": `COALESCE(NULLIF(referer, ''), '` + directBucket + `')`,
	"country": `COALESCE(NULLIF(country, ''), '` + unknownBucket + `')`,
}

func (s *PostgresStorage) ClickStats(ctx context.Context, urlID int64, since time.Time, topN int) (*models.LinkStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stats := &models.LinkStats{LinkID: urlID, Timeline: []models.DailyCount{}}
	conn := s.db.Read()

	err := conn.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT ip_address)
		FROM analytics
		WHERE url_id = $1 AND clicked_at >= $2
	`, urlID, since).Scan(&stats.RecordedClicks, &stats.UniqueVisitors)
	if err != nil {
		return nil, fmt.Errorf("failed to count clicks: %w", err)
	}

	rows, err := conn.Query(ctx, `
		SELECT to_char(date_trunc('day', clicked_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day, COUNT(*)
		FROM analytics
		WHERE url_id = $1 AND clicked_at >= $2
		GROUP BY day
		ORDER BY day
	`, urlID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	for rows.Next() {
		var d models.DailyCount
		if err := rows.Scan(&d.Date, &d.Clicks); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan timeline: %w", err)
		}
		stats.Timeline = append(stats.Timeline, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timeline: %w", err)
	}

	targets := []struct {
		column string
		dest   *[]models.Breakdown
	}{
		{"device", &stats.Devices},
		{"browser", &stats.Browsers},
		{"os", &stats.OS},
		{"referer", &stats.TopReferrers},
		{"country", &stats.Countries},
	}
	for _, t := range targets {
		b, err := s.breakdown(ctx, t.column, urlID, since, topN)
		if err != nil {
			return nil, err
		}
		*t.dest = b
	}

	return stats, nil
}

func (s *PostgresStorage) breakdown(ctx context.Context, column string, urlID int64, since time.Time, topN int) ([]models.Breakdown, error) {
	expr := breakdownColumns[column]
	query := fmt.Sprintf(`
		SELECT %s AS name, COUNT(*) AS n
		FROM analytics
		WHERE url_id = $1 AND clicked_at >= $2
		GROUP BY name
		ORDER BY n DESC, name
		LIMIT $3
	`, expr)

	rows, err := s.db.Read().Query(ctx, query, urlID, since, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s breakdown: %w", column, err)
	}
	defer rows.Close()

	out := []models.Breakdown{}
	for rows.Next() {
		var b models.Breakdown
		if err := rows.Scan(&b.Name, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan %s breakdown: %w", column, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) OwnerSummary(ctx context.Context, ownerID string, since time.Time, topN int) (*models.Dashboard, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	d := &models.Dashboard{}
	conn := s.db.Read()

	err := conn.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(click_count), 0)::BIGINT
		FROM urls
		WHERE owner_id = $1
	`, ownerID).Scan(&d.TotalURLs, &d.TotalClicks)
	if err != nil {
		return nil, fmt.Errorf("failed to total owner links: %w", err)
	}

	rows, err := conn.Query(ctx, `
		SELECT id, original_url, short_code, click_count, created_at
		FROM urls
		WHERE owner_id = $1
		ORDER BY click_count DESC, id DESC
		LIMIT $2
	`, ownerID, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to query top links: %w", err)
	}
	d.TopURLs, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TopLink, error) {
		var t models.TopLink
		err := row.Scan(&t.ID, &t.OriginalURL, &t.ShortCode, &t.ClickCount, &t.CreatedAt)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect top links: %w", err)
	}

	rows, err = conn.Query(ctx, `
		SELECT to_char(date_trunc('day', a.clicked_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day, COUNT(*)
		FROM analytics a
		JOIN urls u ON u.id = a.url_id
		WHERE u.owner_id = $1 AND a.clicked_at >= $2
		GROUP BY day
		ORDER BY day DESC
	`, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query owner activity: %w", err)
	}
	d.RecentActivity, err = pgx.CollectRows(rows, pgx.RowToStructByPos[models.DailyCount])
	if err != nil {
		return nil, fmt.Errorf("failed to collect owner activity: %w", err)
	}
	return d, nil
}
