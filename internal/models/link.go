package models

import "time"

// Link is a row of the urls table.
type Link struct {
	ID          int64      `json:"id"`
	OriginalURL string     `json:"originalUrl"`
	ShortCode   string     `json:"shortCode"`
	CustomAlias string     `json:"customAlias,omitempty"`
	OwnerID     string     `json:"ownerId,omitempty"`
	Title       string     `json:"title,omitempty"`
	QRCode      string     `json:"qrCode,omitempty"`
	ClickCount  int64      `json:"clickCount"`
	IsActive    bool       `json:"isActive"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

func (l *Link) ToCached() *CachedLink {
	return &CachedLink{
		ID:          l.ID,
		OriginalURL: l.OriginalURL,
		ExpiresAt:   l.ExpiresAt,
		IsActive:    l.IsActive,
		QRCode:      l.QRCode,
	}
}

// CachedLink is the projection stored under url:<code>.
type CachedLink struct {
	ID          int64      `json:"id"`
	OriginalURL string     `json:"originalUrl"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	IsActive    bool       `json:"isActive"`
	QRCode      string     `json:"qrCode,omitempty"`
}

func (c *CachedLink) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// CreateLinkRequest is the POST /api/urls body. msg is the client-facing text for a failed rule.
type CreateLinkRequest struct {
	OriginalURL string `json:"originalUrl" validate:"required,url,max=2048" msg:"A valid URL is required"`
	CustomAlias string `json:"customAlias,omitempty" validate:"omitempty,alphanum,min=3,max=20" msg:"Custom alias must be 3-20 alphanumeric characters"`
	Title       string `json:"title,omitempty" validate:"max=255" msg:"Title must be at most 255 characters"`
	ExpiresIn   *int   `json:"expiresIn,omitempty" validate:"omitempty,min=1,max=365" msg:"expiresIn must be between 1 and 365 days"`
}

type LinkResponse struct {
	ID          int64      `json:"id"`
	OriginalURL string     `json:"originalUrl"`
	ShortCode   string     `json:"shortCode"`
	ShortURL    string     `json:"shortUrl"`
	Title       string     `json:"title,omitempty"`
	QRCode      *string    `json:"qrCode"`
	QRPending   bool       `json:"qrPending"`
	ClickCount  int64      `json:"clickCount"`
	IsActive    bool       `json:"isActive"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// NewLinkResponse shapes a link for clients; baseURL has no trailing slash.
func NewLinkResponse(l *Link, baseURL string) LinkResponse {
	resp := LinkResponse{
		ID:          l.ID,
		OriginalURL: l.OriginalURL,
		ShortCode:   l.ShortCode,
		ShortURL:    baseURL + "/" + l.ShortCode,
		Title:       l.Title,
		QRPending:   l.QRCode == "",
		ClickCount:  l.ClickCount,
		IsActive:    l.IsActive,
		ExpiresAt:   l.ExpiresAt,
		CreatedAt:   l.CreatedAt,
	}
	if l.QRCode != "" {
		qr := l.QRCode
		resp.QRCode = &qr
	}
	return resp
}

type RedirectResponse struct {
	Success     bool   `json:"success"`
	ShortCode   string `json:"shortCode"`
	OriginalURL string `json:"originalUrl"`
	TargetURL   string `json:"targetUrl"`
	ShortURL    string `json:"shortUrl"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
