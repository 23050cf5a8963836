package models

import "time"

// ClickEvent is one row of the append-only analytics table.
type ClickEvent struct {
	ID             int64     `json:"id,omitempty"`
	URLID          int64     `json:"urlId"`
	ShortCode      string    `json:"shortCode,omitempty"`
	IPAddress      string    `json:"ipAddress"`
	UserAgent      string    `json:"userAgent"`
	Referer        string    `json:"referer"`
	DeviceType     string    `json:"deviceType"`
	Browser        string    `json:"browser"`
	BrowserVersion string    `json:"browserVersion,omitempty"`
	OS             string    `json:"os"`
	IsBot          bool      `json:"isBot"`
	Country        string    `json:"country,omitempty"`
	ClickedAt      time.Time `json:"clickedAt"`
}

type DailyCount struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

type Breakdown struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type LinkStats struct {
	LinkID         int64        `json:"linkId"`
	ShortCode      string       `json:"shortCode"`
	TotalClicks    int64        `json:"totalClicks"`
	RecordedClicks int64        `json:"recordedClicks"`
	UniqueVisitors int64        `json:"uniqueVisitors"`
	Days           int          `json:"days"`
	Timeline       []DailyCount `json:"timeline"`
	Devices        []Breakdown  `json:"devices"`
	Browsers       []Breakdown  `json:"browsers"`
	OS             []Breakdown  `json:"os"`
	TopReferrers   []Breakdown  `json:"topReferrers"`
	Countries      []Breakdown  `json:"countries"`
}

// TopLink is one of an owner's most clicked links.
type TopLink struct {
	ID          int64     `json:"id"`
	OriginalURL string    `json:"originalUrl"`
	ShortCode   string    `json:"shortCode"`
	ShortURL    string    `json:"shortUrl"`
	ClickCount  int64     `json:"clickCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Dashboard summarizes every link an owner has created, active or not.
// RecentActivity is newest day first.
type Dashboard struct {
	TotalURLs      int64        `json:"totalUrls"`
	TotalClicks    int64        `json:"totalClicks"`
	TopURLs        []TopLink    `json:"topUrls"`
	RecentActivity []DailyCount `json:"recentActivity"`
}

// RequestMeta is what the redirect path knows about a visitor.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	Referer   string
	// Country is an edge-provided ISO code, if any.
	Country string
}
