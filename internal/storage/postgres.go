package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Varun5711/shortqr/internal/database"
	"github.com/Varun5711/shortqr/internal/models"
)

const uniqueViolation = "23505"

const linkColumns = `id, original_url, short_code, COALESCE(custom_alias, ''), COALESCE(owner_id, ''),
	COALESCE(title, ''), COALESCE(qr_code, ''), click_count, is_active, expires_at, created_at`

type PostgresStorage struct {
	db      *database.DBManager
	timeout time.Duration
}

func NewPostgresStorage(db *database.DBManager, queryTimeout time.Duration) *PostgresStorage {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &PostgresStorage{
		db:      db,
		timeout: queryTimeout,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func scanLink(row pgx.Row) (*models.Link, error) {
	var l models.Link
	err := row.Scan(
		&l.ID,
		&l.OriginalURL,
		&l.ShortCode,
		&l.CustomAlias,
		&l.OwnerID,
		&l.Title,
		&l.QRCode,
		&l.ClickCount,
		&l.IsActive,
		&l.ExpiresAt,
		&l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const insertLinkQuery = `
	INSERT INTO urls (original_url, short_code, custom_alias, owner_id, title, expires_at)
	VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6)
	RETURNING id, is_active, created_at
`

func (s *PostgresStorage) Create(ctx context.Context, link *models.Link) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.Write().QueryRow(ctx, insertLinkQuery,
		link.OriginalURL,
		link.ShortCode,
		link.CustomAlias,
		link.OwnerID,
		link.Title,
		link.ExpiresAt,
	).Scan(&link.ID, &link.IsActive, &link.CreatedAt)

	if isUniqueViolation(err) {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}
	return nil
}

func (s *PostgresStorage) CreateWithAlias(ctx context.Context, link *models.Link) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.Write().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var taken bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM urls WHERE short_code = $1 OR custom_alias = $1)`,
		link.CustomAlias,
	).Scan(&taken)
	if err != nil {
		return fmt.Errorf("failed to check alias: %w", err)
	}
	if taken {
		return ErrCodeTaken
	}

	link.ShortCode = link.CustomAlias
	err = tx.QueryRow(ctx, insertLinkQuery,
		link.OriginalURL,
		link.ShortCode,
		link.CustomAlias,
		link.OwnerID,
		link.Title,
		link.ExpiresAt,
	).Scan(&link.ID, &link.IsActive, &link.CreatedAt)
	if isUniqueViolation(err) {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert aliased link: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrCodeTaken
		}
		return fmt.Errorf("failed to commit alias insert: %w", err)
	}
	return nil
}

func (s *PostgresStorage) FindByCode(ctx context.Context, code string) (*models.Link, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `SELECT ` + linkColumns + `
		FROM urls
		WHERE short_code = $1 OR custom_alias = $1
		LIMIT 1`

	link, err := scanLink(s.db.Read().QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link by code: %w", err)
	}
	return link, nil
}

func (s *PostgresStorage) FindByID(ctx context.Context, id int64) (*models.Link, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `SELECT ` + linkColumns + ` FROM urls WHERE id = $1`

	link, err := scanLink(s.db.Read().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link by id: %w", err)
	}
	return link, nil
}

func (s *PostgresStorage) IncrementClicks(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tag, err := s.db.Write().Exec(ctx,
		`UPDATE urls SET click_count = click_count + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) SetQRCode(ctx context.Context, id int64, qr string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tag, err := s.db.Write().Exec(ctx,
		`UPDATE urls SET qr_code = $1, updated_at = NOW() WHERE id = $2 AND qr_code IS NULL`, qr, id)
	if err != nil {
		return false, fmt.Errorf("failed to set qr code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStorage) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Link, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var total int64
	err := s.db.Read().QueryRow(ctx,
		`SELECT COUNT(*) FROM urls WHERE owner_id = $1 AND is_active`, ownerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count links: %w", err)
	}

	query := `SELECT ` + linkColumns + `
		FROM urls
		WHERE owner_id = $1 AND is_active
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Read().Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := make([]*models.Link, 0, limit)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan row: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}

	return links, total, nil
}

func (s *PostgresStorage) Deactivate(ctx context.Context, id int64, ownerID string) (*models.Link, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `UPDATE urls SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + linkColumns

	link, err := scanLink(s.db.Write().QueryRow(ctx, query, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate link: %w", err)
	}
	return link, nil
}

func (s *PostgresStorage) MarkExpired(ctx context.Context, before time.Time, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		UPDATE urls SET expired_swept_at = NOW()
		WHERE id IN (
			SELECT id FROM urls
			WHERE expired_swept_at IS NULL AND expires_at IS NOT NULL AND expires_at < $1
			ORDER BY expires_at
			LIMIT $2
		)
		RETURNING short_code`

	rows, err := s.db.Write().Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to mark expired links: %w", err)
	}

	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect expired codes: %w", err)
	}
	return codes, nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.Ping(ctx)
}
