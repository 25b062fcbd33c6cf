// Package store persists search cache entries and the sitemap registry.
package store

import (
	"context"
	"time"

	"github.com/justscrape/justscrape/internal/model"
)

// URLFilter specifies criteria for listing sitemap URLs.
type URLFilter struct {
	Limit         int  `json:"limit,omitempty"`
	Offset        int  `json:"offset,omitempty"`
	UnscrapedOnly bool `json:"unscraped_only,omitempty"`
}

// Store defines the persistence interface.
type Store interface {
	// Search cache
	GetCachedSearch(ctx context.Context, key string) ([]byte, error)
	SetCachedSearch(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	DeleteExpiredSearches(ctx context.Context) (int, error)

	// Sitemap registry
	UpsertSitemap(ctx context.Context, info model.SitemapInfo) error
	GetSitemap(ctx context.Context, domain string) (*model.SitemapInfo, error)
	ListSitemapDomains(ctx context.Context) ([]string, error)
	InsertSitemapURLs(ctx context.Context, urls []model.SitemapURL) error
	ListSitemapURLs(ctx context.Context, domain string, filter URLFilter) ([]string, error)
	MarkScraped(ctx context.Context, url string) error
	RegistryStats(ctx context.Context) (*model.RegistryStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
