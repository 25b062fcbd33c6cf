// Package retrieve decides which fetch strategy to use for a URL, escalates
// once from static to rendered when the static result looks insufficient,
// and classifies whatever was finally obtained.
package retrieve

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/justscrape/justscrape/internal/classify"
	"github.com/justscrape/justscrape/internal/config"
	"github.com/justscrape/justscrape/internal/extract"
	"github.com/justscrape/justscrape/internal/fetch"
	"github.com/justscrape/justscrape/internal/model"
)

// Orchestrator owns one retrieval attempt end to end: fetch, extract,
// optional single fallback, classify. It never retries beyond the one
// permitted escalation and never converts a bad-looking page into an error.
type Orchestrator struct {
	static     fetch.Fetcher
	rendered   fetch.Fetcher // nil disables rendering entirely
	classifier *classify.Classifier

	renderFirst []string
	noFallback  []string
}

// New creates an Orchestrator. rendered may be nil for static-only setups.
func New(static, rendered fetch.Fetcher, classifier *classify.Classifier, cfg config.RetrieveConfig) *Orchestrator {
	return &Orchestrator{
		static:      static,
		rendered:    rendered,
		classifier:  classifier,
		renderFirst: normalizeDomains(cfg.RenderFirstDomains),
		noFallback:  normalizeDomains(cfg.NoFallbackDomains),
	}
}

// Retrieve fetches and classifies one URL. An error is returned only for
// transport-level faults (invalid URL, DNS, connection); every reachable
// page yields a RetrievalResult whose classification states what arrived.
//
// Repeated calls with the same url and allowRender against an unchanged
// page produce the same classification: strategy choice is a pure function
// of the domain lists and the extracted length, with no jitter or sampling.
func (o *Orchestrator) Retrieve(ctx context.Context, rawURL string, allowRender bool) (*model.RetrievalResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, eris.Errorf("retrieve: invalid url %q", rawURL)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")

	fetcher := o.static
	if allowRender && o.rendered != nil && matchesDomain(host, o.renderFirst) {
		fetcher = o.rendered
	}

	page, err := fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "retrieve: %s fetch", fetcher.Method())
	}
	ex, err := extract.FromHTML(rawURL, page.HTML)
	if err != nil {
		return nil, err
	}

	// Single permitted escalation: a thin static result is refetched with
	// rendering, replacing the static attempt wholesale. Domains on the
	// no-fallback list are known not to improve under rendering.
	if page.Method == model.MethodStatic &&
		allowRender && o.rendered != nil &&
		ex.ContentLength < classify.ThinThreshold &&
		!matchesDomain(host, o.noFallback) {

		rendered, rerr := o.rendered.Fetch(ctx, rawURL)
		if rerr != nil {
			// The static result is still honest data; report it rather
			// than fail the whole retrieval on a renderer fault.
			zap.L().Warn("retrieve: render fallback failed, keeping static result",
				zap.String("url", rawURL),
				zap.Error(rerr),
			)
		} else if rex, xerr := extract.FromHTML(rawURL, rendered.HTML); xerr == nil {
			page, ex = rendered, rex
		}
	}

	signals := model.Signals{
		ContentLength:  ex.ContentLength,
		LineBreakCount: ex.LineBreakCount,
		Method:         page.Method,
		StatusCode:     page.StatusCode,
		EncodingOK:     page.EncodingOK,
	}
	classification := o.classifier.Classify(signals, ex.Title, ex.Text)

	result := &model.RetrievalResult{
		URL:            rawURL,
		Title:          ex.Title,
		Signals:        signals,
		Classification: classification,
	}
	if classification.Status.HasContent() {
		text := ex.Text
		result.Content = &text
	}
	return result, nil
}

// ExtractLinks fetches a page statically and returns its outbound links.
// Rendering is never used here; link discovery tolerates thin pages.
func (o *Orchestrator) ExtractLinks(ctx context.Context, rawURL string, filterExternal bool) (*model.LinkResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, eris.Errorf("retrieve: invalid url %q", rawURL)
	}
	page, err := o.static.Fetch(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "retrieve: static fetch")
	}
	return extract.Links(rawURL, page.HTML, filterExternal)
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

// matchesDomain reports whether host is the domain itself or a subdomain.
func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
