package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Varun5711/shortqr/internal/config"
	"github.com/Varun5711/shortqr/internal/models"
)

// Client mirrors click events into ClickHouse for offline analysis.
type Client struct {
	conn     driver.Conn
	database string
}

func NewClient(ctx context.Context, cfg config.ClickHouseConfig) (*Client, error) {
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     maxConns,
		MaxIdleConns:     maxConns / 2,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return &Client{conn: conn, database: cfg.Database}, nil
}

func (c *Client) table() string {
	return c.database + ".click_events"
}

// EnsureSchema creates the events table if it does not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			url_id          Int64,
			short_code      String,
			clicked_at      DateTime64(3, 'UTC'),
			ip_address      String,
			country         LowCardinality(String),
			user_agent      String,
			browser         LowCardinality(String),
			browser_version String,
			os              LowCardinality(String),
			device_type     LowCardinality(String),
			is_bot          UInt8,
			referer         String
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(clicked_at)
		ORDER BY (url_id, clicked_at)`, c.table())

	if err := c.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create click_events table: %w", err)
	}
	return nil
}

func (c *Client) RecordClick(ctx context.Context, event *models.ClickEvent) error {
	return c.InsertClickEvents(ctx, []*models.ClickEvent{event})
}

func (c *Client) InsertClickEvents(ctx context.Context, events []*models.ClickEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, fmt.Sprintf(`INSERT INTO %s (
		url_id, short_code, clicked_at, ip_address, country,
		user_agent, browser, browser_version, os, device_type, is_bot, referer
	)`, c.table()))
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range events {
		var isBot uint8
		if e.IsBot {
			isBot = 1
		}
		err := batch.Append(
			e.URLID,
			e.ShortCode,
			e.ClickedAt,
			e.IPAddress,
			e.Country,
			e.UserAgent,
			e.Browser,
			e.BrowserVersion,
			e.OS,
			e.DeviceType,
			isBot,
			e.Referer,
		)
		if err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
