package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/justscrape/justscrape/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS search_cache (
	key        TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sitemaps (
	domain        TEXT PRIMARY KEY,
	sitemap_url   TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	last_fetched  DATETIME NOT NULL,
	url_count     INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'pending',
	error_message TEXT
);

CREATE TABLE IF NOT EXISTS sitemap_urls (
	url              TEXT PRIMARY KEY,
	domain           TEXT NOT NULL REFERENCES sitemaps(domain) ON DELETE CASCADE,
	last_modified    TEXT,
	priority         REAL,
	change_frequency TEXT,
	scraped          INTEGER NOT NULL DEFAULT 0,
	scraped_at       DATETIME
);

CREATE INDEX IF NOT EXISTS idx_search_cache_expires_at ON search_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_sitemap_urls_domain ON sitemap_urls(domain);
CREATE INDEX IF NOT EXISTS idx_sitemap_urls_scraped ON sitemap_urls(scraped, domain);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetCachedSearch returns the cached payload for key, or nil when the key is
// absent or expired.
func (s *SQLiteStore) GetCachedSearch(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM search_cache WHERE key = ? AND expires_at > datetime('now')`,
		key,
	)

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached search")
	}
	return []byte(payload), nil
}

func (s *SQLiteStore) SetCachedSearch(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO search_cache (key, payload, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		key, string(payload), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached search")
}

func (s *SQLiteStore) DeleteExpiredSearches(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM search_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired searches")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) UpsertSitemap(ctx context.Context, info model.SitemapInfo) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sitemaps
		 (domain, sitemap_url, content_hash, last_fetched, url_count, status, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		info.Domain, info.SitemapURL, info.ContentHash, info.LastFetched.UTC(),
		info.URLCount, string(info.Status), nullString(info.ErrorMessage),
	)
	return eris.Wrapf(err, "sqlite: upsert sitemap %s", info.Domain)
}

func (s *SQLiteStore) GetSitemap(ctx context.Context, domain string) (*model.SitemapInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT domain, sitemap_url, content_hash, last_fetched, url_count, status, error_message
		 FROM sitemaps WHERE domain = ?`,
		domain,
	)

	var info model.SitemapInfo
	var status string
	var errMsg sql.NullString
	err := row.Scan(&info.Domain, &info.SitemapURL, &info.ContentHash,
		&info.LastFetched, &info.URLCount, &status, &errMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get sitemap %s", domain)
	}
	info.Status = model.SitemapStatus(status)
	info.ErrorMessage = errMsg.String
	return &info, nil
}

func (s *SQLiteStore) ListSitemapDomains(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain FROM sitemaps ORDER BY domain`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sitemap domains")
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan domain")
		}
		domains = append(domains, d)
	}
	return domains, eris.Wrap(rows.Err(), "sqlite: list sitemap domains iterate")
}

// InsertSitemapURLs adds URLs, silently skipping ones already present so a
// refresh never clears scraped markers.
func (s *SQLiteStore) InsertSitemapURLs(ctx context.Context, urls []model.SitemapURL) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO sitemap_urls (url, domain, last_modified, priority, change_frequency)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert url")
	}
	defer stmt.Close()

	for _, u := range urls {
		var priority any
		if u.Priority != nil {
			priority = *u.Priority
		}
		if _, err := stmt.ExecContext(ctx, u.URL, u.Domain,
			nullString(u.LastModified), priority, nullString(u.ChangeFrequency)); err != nil {
			return eris.Wrapf(err, "sqlite: insert url %s", u.URL)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit urls")
}

func (s *SQLiteStore) ListSitemapURLs(ctx context.Context, domain string, filter URLFilter) ([]string, error) {
	query := `SELECT url FROM sitemap_urls WHERE domain = ?`
	args := []any{domain}

	if filter.UnscrapedOnly {
		query += ` AND scraped = 0`
	}
	query += ` ORDER BY priority DESC, url ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list urls for %s", domain)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan url")
		}
		urls = append(urls, u)
	}
	return urls, eris.Wrap(rows.Err(), "sqlite: list urls iterate")
}

func (s *SQLiteStore) MarkScraped(ctx context.Context, url string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sitemap_urls SET scraped = 1, scraped_at = ? WHERE url = ?`,
		time.Now().UTC(), url,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark scraped %s", url)
	}
	return checkRowsAffected(res, "url", url)
}

func (s *SQLiteStore) RegistryStats(ctx context.Context) (*model.RegistryStats, error) {
	var stats model.RegistryStats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sitemaps WHERE status = 'success'),
			(SELECT COUNT(*) FROM sitemap_urls),
			(SELECT COUNT(*) FROM sitemap_urls WHERE scraped = 1)`,
	)
	if err := row.Scan(&stats.TotalSitemaps, &stats.TotalURLs, &stats.ScrapedURLs); err != nil {
		return nil, eris.Wrap(err, "sqlite: registry stats")
	}
	stats.UnscrapedURLs = stats.TotalURLs - stats.ScrapedURLs
	return &stats, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
