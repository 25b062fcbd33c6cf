package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justscrape/justscrape/internal/model"
	"github.com/justscrape/justscrape/internal/research"
)

type fakeSearcher struct {
	lastQuery string
	lastNum   int
	err       error
}

func (f *fakeSearcher) Search(_ context.Context, query string, numResults int) (*model.SearchResponse, error) {
	f.lastQuery, f.lastNum = query, numResults
	if f.err != nil {
		return nil, f.err
	}
	return &model.SearchResponse{Query: query, Results: []model.SearchResult{
		{Position: 1, Title: "Hit", URL: "https://a.example", Snippet: "s"},
	}}, nil
}

type fakeRetriever struct {
	lastURL    string
	lastRender bool
	lastFilter bool
}

func (f *fakeRetriever) Retrieve(_ context.Context, url string, allowRender bool) (*model.RetrievalResult, error) {
	f.lastURL, f.lastRender = url, allowRender
	content := "page text"
	return &model.RetrievalResult{
		URL:     url,
		Title:   "Page",
		Content: &content,
		Signals: model.Signals{ContentLength: len(content), Method: model.MethodStatic, EncodingOK: true},
		Classification: model.Classification{
			Status:     model.StatusThin,
			Confidence: model.ConfidenceMedium,
		},
	}, nil
}

func (f *fakeRetriever) ExtractLinks(_ context.Context, url string, filterExternal bool) (*model.LinkResult, error) {
	f.lastURL, f.lastFilter = url, filterExternal
	return &model.LinkResult{SourceURL: url, URLs: []string{"https://b.example"}, Count: 1}, nil
}

type fakeResearcher struct {
	lastParams research.Params
}

func (f *fakeResearcher) Research(_ context.Context, params research.Params) (*model.ResearchResult, error) {
	f.lastParams = params
	return &model.ResearchResult{Query: params.Query}, nil
}

// serve feeds request lines through a Server and returns the readiness line
// plus one response per request.
func serve(t *testing.T, s *Server, lines ...string) (Readiness, []Response) {
	t.Helper()

	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), in, &out))

	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	require.True(t, scanner.Scan(), "missing readiness line")
	var ready Readiness
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &ready))

	var responses []Response
	for scanner.Scan() {
		var resp Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	require.Len(t, responses, len(lines))
	return ready, responses
}

func newTestServer() (*Server, *fakeSearcher, *fakeRetriever, *fakeResearcher) {
	searcher := &fakeSearcher{}
	retriever := &fakeRetriever{}
	researcher := &fakeResearcher{}
	return NewServer(searcher, retriever, researcher), searcher, retriever, researcher
}

func TestServe_ReadinessLine(t *testing.T) {
	s, _, _, _ := newTestServer()
	ready, _ := serve(t, s)

	assert.True(t, ready.OK)
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, Version, ready.Version)
	assert.Equal(t, Tools, ready.Tools)
}

func TestServe_SearchSources(t *testing.T) {
	s, searcher, _, _ := newTestServer()
	_, resps := serve(t, s, `{"tool":"search_sources","args":{"query":"golang"}}`)

	require.True(t, resps[0].OK)
	assert.Equal(t, "golang", searcher.lastQuery)
	assert.Equal(t, defaultNumResults, searcher.lastNum)

	var result model.SearchResponse
	require.NoError(t, json.Unmarshal(resps[0].Result, &result))
	assert.Len(t, result.Results, 1)
}

func TestServe_NumResultsClamped(t *testing.T) {
	s, searcher, _, _ := newTestServer()
	_, resps := serve(t, s, `{"tool":"search_sources","args":{"query":"q","num_results":100}}`)

	require.True(t, resps[0].OK)
	assert.Equal(t, maxNumResults, searcher.lastNum)
}

func TestServe_RetrieveSourceDefaults(t *testing.T) {
	s, _, retriever, _ := newTestServer()
	_, resps := serve(t, s, `{"tool":"retrieve_source","args":{"url":"https://a.example"}}`)

	require.True(t, resps[0].OK)
	assert.Equal(t, "https://a.example", retriever.lastURL)
	assert.True(t, retriever.lastRender, "allow_javascript defaults to true")
}

func TestServe_RetrieveSourceRenderOptOut(t *testing.T) {
	s, _, retriever, _ := newTestServer()
	_, resps := serve(t, s, `{"tool":"retrieve_source","args":{"url":"https://a.example","allow_javascript":false}}`)

	require.True(t, resps[0].OK)
	assert.False(t, retriever.lastRender)
}

func TestServe_ResearchDefaults(t *testing.T) {
	s, _, _, researcher := newTestServer()
	_, resps := serve(t, s, `{"tool":"research_with_sources","args":{"query":"topic"}}`)

	require.True(t, resps[0].OK)
	assert.Equal(t, "topic", researcher.lastParams.Query)
	assert.Equal(t, defaultLimit, researcher.lastParams.Limit)
	assert.Equal(t, defaultMaxContent, researcher.lastParams.MaxContentLength)
	assert.True(t, researcher.lastParams.AllowRender)
}

func TestServe_ResearchLimitClamped(t *testing.T) {
	s, _, _, researcher := newTestServer()
	_, resps := serve(t, s, `{"tool":"research_with_sources","args":{"query":"topic","limit":50}}`)

	require.True(t, resps[0].OK)
	assert.Equal(t, maxLimit, researcher.lastParams.Limit)
}

func TestServe_ExtractURLs(t *testing.T) {
	s, _, retriever, _ := newTestServer()
	_, resps := serve(t, s, `{"tool":"extract_urls","args":{"url":"https://a.example","filter_external":true}}`)

	require.True(t, resps[0].OK)
	assert.True(t, retriever.lastFilter)

	var result model.LinkResult
	require.NoError(t, json.Unmarshal(resps[0].Result, &result))
	assert.Equal(t, 1, result.Count)
}

func TestServe_LegacyAliases(t *testing.T) {
	s, searcher, retriever, researcher := newTestServer()
	_, resps := serve(t, s,
		`{"tool":"web_search","args":{"query":"q"}}`,
		`{"tool":"scrape_url","args":{"url":"https://a.example"}}`,
		`{"tool":"search_and_scrape","args":{"query":"topic"}}`,
	)

	for i, resp := range resps {
		assert.True(t, resp.OK, "response %d", i)
	}
	assert.Equal(t, "q", searcher.lastQuery)
	assert.Equal(t, "https://a.example", retriever.lastURL)
	assert.Equal(t, "topic", researcher.lastParams.Query)
}

func TestServe_MalformedLineDoesNotStopServing(t *testing.T) {
	s, _, _, _ := newTestServer()
	_, resps := serve(t, s,
		`this is not json`,
		`{"tool":"search_sources","args":{"query":"after"}}`,
	)

	assert.False(t, resps[0].OK)
	assert.Contains(t, resps[0].Error, "invalid request")
	assert.True(t, resps[1].OK, "serving continues after a bad line")
}

func TestServe_UnknownTool(t *testing.T) {
	s, _, _, _ := newTestServer()
	_, resps := serve(t, s, `{"tool":"launch_missiles","args":{}}`)

	assert.False(t, resps[0].OK)
	assert.Contains(t, resps[0].Error, "unknown tool")
}

func TestServe_MissingRequiredArg(t *testing.T) {
	s, _, _, _ := newTestServer()
	_, resps := serve(t, s,
		`{"tool":"search_sources","args":{}}`,
		`{"tool":"retrieve_source","args":{}}`,
	)

	assert.False(t, resps[0].OK)
	assert.Contains(t, resps[0].Error, "query is required")
	assert.False(t, resps[1].OK)
	assert.Contains(t, resps[1].Error, "url is required")
}

func TestServe_ToolErrorBecomesErrorResponse(t *testing.T) {
	s, searcher, _, _ := newTestServer()
	searcher.err = fmt.Errorf("upstream 429")

	_, resps := serve(t, s, `{"tool":"search_sources","args":{"query":"q"}}`)
	assert.False(t, resps[0].OK)
	assert.Contains(t, resps[0].Error, "upstream 429")
}
