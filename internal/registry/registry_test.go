package registry

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justscrape/justscrape/internal/model"
	"github.com/justscrape/justscrape/internal/store"
)

const simpleSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url>
    <loc>https://example.com/about</loc>
    <lastmod>2024-03-01</lastmod>
    <priority>0.5</priority>
  </url>
  <url>
    <loc>https://example.com/</loc>
    <priority>1.0</priority>
    <changefreq>daily</changefreq>
  </url>
  <url>
    <loc></loc>
  </url>
</urlset>`

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return New(st, 7)
}

func TestParseSitemap_URLSet(t *testing.T) {
	urls, children, err := parseSitemap([]byte(simpleSitemap), "example.com")
	require.NoError(t, err)

	assert.Empty(t, children)
	require.Len(t, urls, 2, "entries without a location are skipped")
	assert.Equal(t, "https://example.com/about", urls[0].URL)
	assert.Equal(t, "2024-03-01", urls[0].LastModified)
	require.NotNil(t, urls[0].Priority)
	assert.Equal(t, 0.5, *urls[0].Priority)
	assert.Equal(t, "daily", urls[1].ChangeFrequency)
}

func TestParseSitemap_Index(t *testing.T) {
	index := `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/sitemap-posts.xml</loc></sitemap>
  <sitemap><loc>https://example.com/sitemap-pages.xml</loc></sitemap>
</sitemapindex>`

	urls, children, err := parseSitemap([]byte(index), "example.com")
	require.NoError(t, err)
	assert.Empty(t, urls)
	assert.Equal(t, []string{
		"https://example.com/sitemap-posts.xml",
		"https://example.com/sitemap-pages.xml",
	}, children)
}

func TestParseSitemap_BadXML(t *testing.T) {
	_, _, err := parseSitemap([]byte("<urlset><url>"), "example.com")
	assert.Error(t, err)
}

func TestAddDomain_StoresSitemapAndURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(simpleSitemap))
	}))
	defer srv.Close()

	r := newTestRegistry(t)
	ctx := context.Background()

	info, err := r.AddDomain(ctx, "https://www.example.com", srv.URL+"/sitemap.xml")
	require.NoError(t, err)

	assert.Equal(t, "example.com", info.Domain)
	assert.Equal(t, model.SitemapStatusSuccess, info.Status)
	assert.Equal(t, 2, info.URLCount)
	assert.NotEmpty(t, info.ContentHash)

	urls, err := r.URLs(ctx, "example.com", 0, false)
	require.NoError(t, err)
	// Priority descending.
	assert.Equal(t, []string{"https://example.com/", "https://example.com/about"}, urls)
}

func TestAddDomain_SitemapIndex(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/sitemap_index.xml":
			_, _ = w.Write([]byte(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>` + srv.URL + `/sitemap-posts.xml</loc></sitemap>
</sitemapindex>`))
		case "/sitemap-posts.xml":
			_, _ = w.Write([]byte(simpleSitemap))
		default:
			http.NotFound(w, req)
		}
	}))
	defer srv.Close()

	r := newTestRegistry(t)
	info, err := r.AddDomain(context.Background(), "example.com", srv.URL+"/sitemap_index.xml")
	require.NoError(t, err)
	assert.Equal(t, 2, info.URLCount)
}

func TestAddDomain_GzippedSitemap(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(simpleSitemap))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	r := newTestRegistry(t)
	info, err := r.AddDomain(context.Background(), "example.com", srv.URL+"/sitemap.xml.gz")
	require.NoError(t, err)
	assert.Equal(t, 2, info.URLCount)
}

func TestAddDomain_RecordsFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r := newTestRegistry(t)
	ctx := context.Background()

	info, err := r.AddDomain(ctx, "broken.example", srv.URL+"/sitemap.xml")
	assert.Error(t, err)
	require.NotNil(t, info)
	assert.Equal(t, model.SitemapStatusFailed, info.Status)

	stored, err := r.Info(ctx, "broken.example")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.SitemapStatusFailed, stored.Status)
}

func TestRefresh_UnchangedContentShortCircuits(t *testing.T) {
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches++
		_, _ = w.Write([]byte(simpleSitemap))
	}))
	defer srv.Close()

	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.AddDomain(ctx, "example.com", srv.URL+"/sitemap.xml")
	require.NoError(t, err)

	info, err := r.Refresh(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, model.SitemapStatusSuccess, info.Status)
	assert.Equal(t, 2, fetches, "refresh refetches but does not reprocess")
}

func TestRefresh_KeepsScrapedMarkers(t *testing.T) {
	body := simpleSitemap
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.AddDomain(ctx, "example.com", srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	require.NoError(t, r.MarkScraped(ctx, "https://example.com/about"))

	// Changed content forces a reprocess.
	body = simpleSitemap + "\n<!-- updated -->"
	_, err = r.Refresh(ctx, "example.com")
	require.NoError(t, err)

	unscraped, err := r.URLs(ctx, "example.com", 0, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/"}, unscraped)
}

func TestIsStale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(simpleSitemap))
	}))
	defer srv.Close()

	r := newTestRegistry(t)
	ctx := context.Background()

	stale, err := r.IsStale(ctx, "example.com")
	require.NoError(t, err)
	assert.True(t, stale, "unknown domain is stale")

	_, err = r.AddDomain(ctx, "example.com", srv.URL+"/sitemap.xml")
	require.NoError(t, err)

	stale, err = r.IsStale(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestCleanDomain(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"example.com", "example.com"},
		{"https://www.Example.com/path", "example.com"},
		{"http://sub.example.com", "sub.example.com"},
	}
	for _, tc := range cases {
		got, err := cleanDomain(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := cleanDomain("")
	assert.Error(t, err)
}
