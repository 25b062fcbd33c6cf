package retrieve

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justscrape/justscrape/internal/classify"
	"github.com/justscrape/justscrape/internal/config"
	"github.com/justscrape/justscrape/internal/fetch"
	"github.com/justscrape/justscrape/internal/model"
)

// stubFetcher returns a canned page and counts calls.
type stubFetcher struct {
	method model.Method
	html   string
	err    error
	calls  int
}

func (s *stubFetcher) Method() model.Method { return s.method }

func (s *stubFetcher) Fetch(_ context.Context, url string) (*fetch.Page, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &fetch.Page{
		URL:        url,
		HTML:       s.html,
		StatusCode: 200,
		Method:     s.method,
		EncodingOK: true,
	}, nil
}

func pageHTML(body string) string {
	return "<html><head><title>Test Page</title></head><body><p>" + body + "</p></body></html>"
}

func longBody() string {
	return strings.Repeat("A sentence of real article content for the page. ", 50)
}

func newOrchestrator(static, rendered fetch.Fetcher, noFallback ...string) *Orchestrator {
	return New(static, rendered, classify.New(nil), config.RetrieveConfig{
		RenderFirstDomains: []string{"reddit.com", "medium.com"},
		NoFallbackDomains:  noFallback,
	})
}

func TestRetrieve_StaticUsable(t *testing.T) {
	static := &stubFetcher{method: model.MethodStatic, html: pageHTML(longBody())}
	rendered := &stubFetcher{method: model.MethodRendered, html: pageHTML(longBody())}
	o := newOrchestrator(static, rendered)

	res, err := o.Retrieve(context.Background(), "https://example.com/article", true)
	require.NoError(t, err)

	assert.Equal(t, model.StatusUsable, res.Classification.Status)
	assert.Equal(t, model.MethodStatic, res.Signals.Method)
	assert.Equal(t, 1, static.calls)
	assert.Equal(t, 0, rendered.calls, "no fallback for sufficient static content")
	require.NotNil(t, res.Content)
	assert.NoError(t, res.Validate())
}

func TestRetrieve_FallbackOnThinStatic(t *testing.T) {
	static := &stubFetcher{method: model.MethodStatic, html: pageHTML(strings.Repeat("x", 200))}
	rendered := &stubFetcher{method: model.MethodRendered, html: pageHTML(longBody())}
	o := newOrchestrator(static, rendered)

	res, err := o.Retrieve(context.Background(), "https://example.com/spa", true)
	require.NoError(t, err)

	assert.Equal(t, 1, static.calls)
	assert.Equal(t, 1, rendered.calls, "exactly one render retry")
	assert.Equal(t, model.MethodRendered, res.Signals.Method)
	assert.Equal(t, model.StatusUsable, res.Classification.Status)
}

func TestRetrieve_NoFallbackWhenRenderDisallowed(t *testing.T) {
	static := &stubFetcher{method: model.MethodStatic, html: pageHTML(strings.Repeat("x", 200))}
	rendered := &stubFetcher{method: model.MethodRendered, html: pageHTML(longBody())}
	o := newOrchestrator(static, rendered)

	res, err := o.Retrieve(context.Background(), "https://example.com/spa", false)
	require.NoError(t, err)

	assert.Equal(t, 0, rendered.calls, "rendering is strictly opt-in")
	assert.Equal(t, model.StatusThin, res.Classification.Status)
	assert.Equal(t, model.MethodStatic, res.Signals.Method)
	require.NotNil(t, res.Content)
}

func TestRetrieve_NoFallbackForListedDomain(t *testing.T) {
	static := &stubFetcher{method: model.MethodStatic, html: pageHTML(strings.Repeat("x", 200))}
	rendered := &stubFetcher{method: model.MethodRendered, html: pageHTML(longBody())}
	o := newOrchestrator(static, rendered, "unscrapable.example")

	res, err := o.Retrieve(context.Background(), "https://www.unscrapable.example/page", true)
	require.NoError(t, err)

	assert.Equal(t, 0, rendered.calls)
	assert.Equal(t, model.StatusThin, res.Classification.Status)
}

func TestRetrieve_RenderFirstDomain(t *testing.T) {
	static := &stubFetcher{method: model.MethodStatic, html: pageHTML(longBody())}
	rendered := &stubFetcher{method: model.MethodRendered, html: pageHTML(longBody())}
	o := newOrchestrator(static, rendered)

	res, err := o.Retrieve(context.Background(), "https://old.reddit.com/r/golang", true)
	require.NoError(t, err)

	assert.Equal(t, 0, static.calls)
	assert.Equal(t, 1, rendered.calls)
	assert.Equal(t, model.MethodRendered, res.Signals.Method)
}

func TestRetrieve_RenderFirstDomainStaysStaticWhenDisallowed(t *testing.T) {
	static := &stubFetcher{method: model.MethodStatic, html: pageHTML(longBody())}
	rendered := &stubFetcher{method: model.MethodRendered, html: pageHTML(longBody())}
	o := newOrchestrator(static, rendered)

	_, err := o.Retrieve(context.Background(), "https://medium.com/story", false)
	require.NoError(t, err)

	assert.Equal(t, 1, static.calls)
	assert.Equal(t, 0, rendered.calls)
}

func TestRetrieve_FetchErrorPropagates(t *testing.T) {
	static := &stubFetcher{method: model.MethodStatic, err: fmt.Errorf("dial tcp: no such host")}
	o := newOrchestrator(static, nil)

	_, err := o.Retrieve(context.Background(), "https://nxdomain.example", true)
	assert.Error(t, err)
}

func TestRetrieve_RenderFallbackErrorKeepsStaticResult(t *testing.T) {
	static := &stubFetcher{method: model.MethodStatic, html: pageHTML(strings.Repeat("x", 200))}
	rendered := &stubFetcher{method: model.MethodRendered, err: fmt.Errorf("browser crashed")}
	o := newOrchestrator(static, rendered)

	res, err := o.Retrieve(context.Background(), "https://example.com/spa", true)
	require.NoError(t, err)
	assert.Equal(t, model.StatusThin, res.Classification.Status)
	assert.Equal(t, model.MethodStatic, res.Signals.Method)
}

func TestRetrieve_InvalidURL(t *testing.T) {
	o := newOrchestrator(&stubFetcher{method: model.MethodStatic}, nil)
	_, err := o.Retrieve(context.Background(), "not a url", true)
	assert.Error(t, err)
}

func TestRetrieve_BlockedPageHasNilContent(t *testing.T) {
	wall := "<html><head><title>Just a moment...</title></head><body>Checking your browser before accessing. Cloudflare Ray ID: 12ab</body></html>"
	static := &stubFetcher{method: model.MethodStatic, html: wall}
	o := newOrchestrator(static, nil)

	res, err := o.Retrieve(context.Background(), "https://example.com", false)
	require.NoError(t, err)

	assert.Equal(t, model.StatusBlocked, res.Classification.Status)
	assert.Nil(t, res.Content)
	assert.NotEmpty(t, res.Classification.DetectedPatterns)
	assert.NoError(t, res.Validate())
}

func TestRetrieve_Deterministic(t *testing.T) {
	static := &stubFetcher{method: model.MethodStatic, html: pageHTML(longBody())}
	o := newOrchestrator(static, nil)

	first, err := o.Retrieve(context.Background(), "https://example.com", false)
	require.NoError(t, err)
	for range 5 {
		again, err := o.Retrieve(context.Background(), "https://example.com", false)
		require.NoError(t, err)
		assert.Equal(t, first.Classification, again.Classification)
	}
}
