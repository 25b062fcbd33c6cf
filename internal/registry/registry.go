// Package registry maintains a persistent catalog of sitemaps so URL
// discovery for known domains never needs a web search.
package registry

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/justscrape/justscrape/internal/model"
	"github.com/justscrape/justscrape/internal/store"
)

const (
	fetchTimeout    = 30 * time.Second
	maxSitemapBytes = 20 << 20
	userAgent       = "Mozilla/5.0 (compatible; SitemapBot/1.0)"
)

// Registry fetches, parses, and persists sitemaps.
type Registry struct {
	store     store.Store
	http      *http.Client
	staleness time.Duration
}

// New creates a Registry backed by st. stalenessDays controls when a stored
// sitemap is considered due for a refresh.
func New(st store.Store, stalenessDays int) *Registry {
	if stalenessDays <= 0 {
		stalenessDays = 7
	}
	return &Registry{
		store:     st,
		http:      &http.Client{Timeout: fetchTimeout},
		staleness: time.Duration(stalenessDays) * 24 * time.Hour,
	}
}

// AddDomain discovers and stores the sitemap for a domain. When sitemapURL
// is empty, common sitemap locations are probed in order. A failure is
// recorded in the registry, not just returned.
func (r *Registry) AddDomain(ctx context.Context, domain, sitemapURL string) (*model.SitemapInfo, error) {
	domain, err := cleanDomain(domain)
	if err != nil {
		return nil, err
	}

	candidates := []string{sitemapURL}
	if sitemapURL == "" {
		candidates = candidateURLs(domain)
	}

	for _, candidate := range candidates {
		content, err := r.fetch(ctx, candidate)
		if err != nil {
			zap.L().Debug("registry: sitemap candidate failed",
				zap.String("url", candidate),
				zap.Error(err),
			)
			continue
		}
		return r.process(ctx, domain, candidate, content)
	}

	info := model.SitemapInfo{
		Domain:       domain,
		LastFetched:  time.Now().UTC(),
		Status:       model.SitemapStatusFailed,
		ErrorMessage: "no valid sitemap found",
	}
	if err := r.store.UpsertSitemap(ctx, info); err != nil {
		return nil, err
	}
	return &info, eris.Errorf("registry: no valid sitemap found for %s", domain)
}

// Refresh re-fetches a known domain's sitemap. New URLs are added; URLs
// already marked scraped keep their markers. The content hash short-circuits
// an unchanged sitemap.
func (r *Registry) Refresh(ctx context.Context, domain string) (*model.SitemapInfo, error) {
	domain, err := cleanDomain(domain)
	if err != nil {
		return nil, err
	}

	existing, err := r.store.GetSitemap(ctx, domain)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.SitemapURL == "" {
		return r.AddDomain(ctx, domain, "")
	}

	content, err := r.fetch(ctx, existing.SitemapURL)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: refresh %s", domain)
	}
	if hashContent(content) == existing.ContentHash {
		return existing, nil
	}
	return r.process(ctx, domain, existing.SitemapURL, content)
}

// URLs returns stored URLs for a domain, priority-ordered.
func (r *Registry) URLs(ctx context.Context, domain string, limit int, unscrapedOnly bool) ([]string, error) {
	domain, err := cleanDomain(domain)
	if err != nil {
		return nil, err
	}
	return r.store.ListSitemapURLs(ctx, domain, store.URLFilter{
		Limit:         limit,
		UnscrapedOnly: unscrapedOnly,
	})
}

// MarkScraped records that a URL has been retrieved.
func (r *Registry) MarkScraped(ctx context.Context, rawURL string) error {
	return r.store.MarkScraped(ctx, rawURL)
}

// Info returns stored metadata for a domain, nil when unknown.
func (r *Registry) Info(ctx context.Context, domain string) (*model.SitemapInfo, error) {
	domain, err := cleanDomain(domain)
	if err != nil {
		return nil, err
	}
	return r.store.GetSitemap(ctx, domain)
}

// IsStale reports whether the domain's sitemap is missing or older than the
// staleness window.
func (r *Registry) IsStale(ctx context.Context, domain string) (bool, error) {
	info, err := r.Info(ctx, domain)
	if err != nil {
		return false, err
	}
	if info == nil {
		return true, nil
	}
	return time.Since(info.LastFetched) > r.staleness, nil
}

// Domains lists every domain in the registry.
func (r *Registry) Domains(ctx context.Context) ([]string, error) {
	return r.store.ListSitemapDomains(ctx)
}

// Stats summarizes the registry.
func (r *Registry) Stats(ctx context.Context) (*model.RegistryStats, error) {
	return r.store.RegistryStats(ctx)
}

func (r *Registry) process(ctx context.Context, domain, sitemapURL string, content []byte) (*model.SitemapInfo, error) {
	urls, children, err := parseSitemap(content, domain)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: parse sitemap %s", sitemapURL)
	}

	// A sitemap index carries no page URLs itself; collect from each child.
	if len(children) > 0 {
		for _, child := range children {
			childContent, err := r.fetch(ctx, child)
			if err != nil {
				zap.L().Warn("registry: child sitemap fetch failed",
					zap.String("url", child),
					zap.Error(err),
				)
				continue
			}
			childURLs, _, err := parseSitemap(childContent, domain)
			if err != nil {
				zap.L().Warn("registry: child sitemap parse failed",
					zap.String("url", child),
					zap.Error(err),
				)
				continue
			}
			urls = append(urls, childURLs...)
		}
	}

	if len(urls) == 0 {
		info := model.SitemapInfo{
			Domain:       domain,
			SitemapURL:   sitemapURL,
			ContentHash:  hashContent(content),
			LastFetched:  time.Now().UTC(),
			Status:       model.SitemapStatusFailed,
			ErrorMessage: "no URLs found in sitemap",
		}
		if err := r.store.UpsertSitemap(ctx, info); err != nil {
			return nil, err
		}
		return &info, eris.Errorf("registry: no URLs found in sitemap for %s", domain)
	}

	info := model.SitemapInfo{
		Domain:      domain,
		SitemapURL:  sitemapURL,
		ContentHash: hashContent(content),
		LastFetched: time.Now().UTC(),
		URLCount:    len(urls),
		Status:      model.SitemapStatusSuccess,
	}
	if err := r.store.UpsertSitemap(ctx, info); err != nil {
		return nil, err
	}
	if err := r.store.InsertSitemapURLs(ctx, urls); err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *Registry) fetch(ctx context.Context, sitemapURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "registry: create request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: get %s", sitemapURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("registry: status %d for %s", resp.StatusCode, sitemapURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, eris.Wrap(err, "registry: read body")
	}

	if strings.HasSuffix(sitemapURL, ".gz") {
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "registry: gunzip")
		}
		defer func() { _ = gz.Close() }()
		body, err = io.ReadAll(io.LimitReader(gz, maxSitemapBytes))
		if err != nil {
			return nil, eris.Wrap(err, "registry: gunzip read")
		}
	}
	return body, nil
}

// candidateURLs lists common sitemap locations in probe order.
func candidateURLs(domain string) []string {
	base := "https://" + domain
	return []string{
		base + "/sitemap.xml",
		base + "/sitemap_index.xml",
		base + "/sitemap-index.xml",
		base + "/sitemap1.xml",
		base + "/post-sitemap.xml",
		base + "/page-sitemap.xml",
		fmt.Sprintf("https://www.%s/sitemap.xml", domain),
	}
}

// cleanDomain normalizes a domain or URL down to a bare host without www.
func cleanDomain(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", eris.New("registry: empty domain")
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", eris.Errorf("registry: invalid domain %q", raw)
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www."), nil
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
