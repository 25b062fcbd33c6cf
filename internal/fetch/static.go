package fetch

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"github.com/justscrape/justscrape/internal/config"
	"github.com/justscrape/justscrape/internal/model"
)

// Static fetches HTML via net/http without executing scripts.
type Static struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	limiter      *rate.Limiter
}

// NewStatic creates a Static fetcher from config.
func NewStatic(cfg config.FetchConfig) *Static {
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	return &Static{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		limiter:      rate.NewLimiter(limit, 1),
	}
}

func (s *Static) Method() model.Method { return model.MethodStatic }

// Fetch retrieves a URL. HTTP error statuses are not fetch errors: the
// body and status code are returned for classification. Only network-level
// faults (DNS, refused connection, timeout) produce an error.
func (s *Static) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: get %s", targetURL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read body")
	}

	html, encodingOK := decodeBody(body, resp.Header.Get("Content-Type"))

	return &Page{
		URL:        targetURL,
		HTML:       html,
		StatusCode: resp.StatusCode,
		Method:     model.MethodStatic,
		EncodingOK: encodingOK,
	}, nil
}

// decodeBody converts a raw body to UTF-8 text using the charset declared
// in headers or meta tags. Reports false when bytes could not be
// represented: a decode error or replacement runes in the output.
func decodeBody(body []byte, contentType string) (string, bool) {
	enc, _, _ := charset.DetermineEncoding(body, contentType)

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(body), enc.NewDecoder()))
	if err != nil {
		return string(body), false
	}
	text := string(decoded)
	if !utf8.ValidString(text) || strings.ContainsRune(text, utf8.RuneError) {
		return text, false
	}
	return text, true
}
