// Package duckduckgo queries the DuckDuckGo HTML endpoint. No API key is
// required; results are parsed out of the returned markup.
package duckduckgo

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://html.duckduckgo.com/html/"

// Result is one ranked search hit.
type Result struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
}

// Client performs DuckDuckGo searches.
type Client interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default endpoint URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRegion sets the region code (default worldwide, "wt-wt").
func WithRegion(region string) Option {
	return func(c *httpClient) {
		c.region = region
	}
}

type httpClient struct {
	baseURL string
	region  string
	http    *http.Client
}

// New creates a Client.
func New(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		region:  "wt-wt",
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search posts the query form and parses the ranked results.
func (c *httpClient) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	form := url.Values{
		"q":  {query},
		"kl": {c.region},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: post")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("duckduckgo: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: parse response")
	}

	var results []Result
	doc.Find(".result__body").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(results) >= maxResults {
			return false
		}

		link := s.Find(".result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		target := unwrapRedirect(href)
		if title == "" || !strings.HasPrefix(target, "http") {
			return true
		}

		snippet := strings.TrimSpace(s.Find(".result__snippet").First().Text())

		results = append(results, Result{
			Position: len(results) + 1,
			Title:    title,
			URL:      target,
			Snippet:  snippet,
		})
		return true
	})

	return results, nil
}

// unwrapRedirect extracts the destination from DuckDuckGo's /l/?uddg=...
// redirect links. Plain links pass through unchanged.
func unwrapRedirect(href string) string {
	if !strings.Contains(href, "uddg=") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
