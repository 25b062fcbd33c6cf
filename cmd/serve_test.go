package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justscrape/justscrape/internal/model"
	"github.com/justscrape/justscrape/internal/research"
)

type stubSearcher struct{}

func (stubSearcher) Search(_ context.Context, query string, _ int) (*model.SearchResponse, error) {
	return &model.SearchResponse{Query: query, Results: []model.SearchResult{
		{Position: 1, Title: "Hit", URL: "https://a.example", Snippet: "s"},
	}}, nil
}

type stubRetriever struct{}

func (stubRetriever) Retrieve(_ context.Context, url string, _ bool) (*model.RetrievalResult, error) {
	content := "text"
	return &model.RetrievalResult{
		URL:     url,
		Content: &content,
		Signals: model.Signals{ContentLength: 4, Method: model.MethodStatic, EncodingOK: true},
		Classification: model.Classification{
			Status:     model.StatusThin,
			Confidence: model.ConfidenceMedium,
		},
	}, nil
}

func (stubRetriever) ExtractLinks(_ context.Context, url string, _ bool) (*model.LinkResult, error) {
	return &model.LinkResult{SourceURL: url, URLs: []string{"https://b.example"}, Count: 1}, nil
}

type stubResearcher struct{}

func (stubResearcher) Research(_ context.Context, params research.Params) (*model.ResearchResult, error) {
	return &model.ResearchResult{Query: params.Query}, nil
}

func newTestRouter() http.Handler {
	return newRouter(stubSearcher{}, stubRetriever{}, stubResearcher{})
}

func doPost(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServe_Health(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServe_SearchEndpoint(t *testing.T) {
	rec := doPost(t, newTestRouter(), "/v1/search", `{"query":"golang"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://a.example")
}

func TestServe_SearchRequiresQuery(t *testing.T) {
	rec := doPost(t, newTestRouter(), "/v1/search", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "query is required")
}

func TestServe_RetrieveEndpoint(t *testing.T) {
	rec := doPost(t, newTestRouter(), "/v1/retrieve", `{"url":"https://a.example"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"thin"`)
}

func TestServe_ResearchEndpoint(t *testing.T) {
	rec := doPost(t, newTestRouter(), "/v1/research", `{"query":"topic"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"topic"`)
}

func TestServe_ExtractEndpoint(t *testing.T) {
	rec := doPost(t, newTestRouter(), "/v1/extract", `{"url":"https://a.example"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestServe_InvalidBody(t *testing.T) {
	rec := doPost(t, newTestRouter(), "/v1/retrieve", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
