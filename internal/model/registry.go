package model

import "time"

// SitemapStatus tracks the outcome of the most recent sitemap fetch.
type SitemapStatus string

const (
	SitemapStatusPending SitemapStatus = "pending"
	SitemapStatusSuccess SitemapStatus = "success"
	SitemapStatusFailed  SitemapStatus = "failed"
)

// SitemapInfo is the stored metadata for one domain's sitemap.
type SitemapInfo struct {
	Domain       string        `json:"domain"`
	SitemapURL   string        `json:"sitemap_url"`
	ContentHash  string        `json:"content_hash"`
	LastFetched  time.Time     `json:"last_fetched"`
	URLCount     int           `json:"url_count"`
	Status       SitemapStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// SitemapURL is one URL discovered in a domain's sitemap.
type SitemapURL struct {
	URL             string     `json:"url"`
	Domain          string     `json:"domain"`
	LastModified    string     `json:"last_modified,omitempty"`
	Priority        *float64   `json:"priority,omitempty"`
	ChangeFrequency string     `json:"change_frequency,omitempty"`
	Scraped         bool       `json:"scraped"`
	ScrapedAt       *time.Time `json:"scraped_at,omitempty"`
}

// RegistryStats summarizes the sitemap registry contents.
type RegistryStats struct {
	TotalSitemaps int `json:"total_sitemaps"`
	TotalURLs     int `json:"total_urls"`
	ScrapedURLs   int `json:"scraped_urls"`
	UnscrapedURLs int `json:"unscraped_urls"`
}
