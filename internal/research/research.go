// Package research runs the search-then-retrieve pipeline: rank sources for
// a query, fetch each concurrently, and partition the outcomes into usable
// sources and explained failures.
package research

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justscrape/justscrape/internal/classify"
	"github.com/justscrape/justscrape/internal/model"
)

// DefaultConcurrency caps parallel retrievals per research call.
const DefaultConcurrency = 4

// Params controls one research call.
type Params struct {
	Query            string
	Limit            int  // number of search hits to retrieve
	AllowRender      bool // permit rendered fetching and escalation
	MaxContentLength int  // truncate usable content beyond this, 0 = unlimited
}

// Searcher ranks sources for a query.
type Searcher interface {
	Search(ctx context.Context, query string, numResults int) (*model.SearchResponse, error)
}

// Retriever fetches and classifies one URL.
type Retriever interface {
	Retrieve(ctx context.Context, url string, allowRender bool) (*model.RetrievalResult, error)
}

// Coordinator wires the search service to the retrieval orchestrator.
type Coordinator struct {
	searcher    Searcher
	retriever   Retriever
	concurrency int
}

// New creates a Coordinator.
func New(searcher Searcher, retriever Retriever, concurrency int) *Coordinator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Coordinator{
		searcher:    searcher,
		retriever:   retriever,
		concurrency: concurrency,
	}
}

// outcome holds one retrieval slot, keyed by search rank so the final
// partition preserves ranking order regardless of completion order.
type outcome struct {
	hit    model.SearchResult
	result *model.RetrievalResult
	err    error
}

// Research searches for params.Query, retrieves the top params.Limit hits
// concurrently, and reports every outcome. The call fails only when the
// search itself fails; individual retrieval faults become failure entries.
func (c *Coordinator) Research(ctx context.Context, params Params) (*model.ResearchResult, error) {
	if params.Query == "" {
		return nil, eris.New("research: query is required")
	}
	batchID := uuid.NewString()

	resp, err := c.searcher.Search(ctx, params.Query, params.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "research: search")
	}

	hits := resp.Results
	if len(hits) > params.Limit {
		hits = hits[:params.Limit]
	}

	outcomes := make([]outcome, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, hit := range hits {
		g.Go(func() error {
			res, err := c.retriever.Retrieve(gctx, hit.URL, params.AllowRender)
			if err != nil {
				zap.L().Debug("research: retrieval failed",
					zap.String("batch_id", batchID),
					zap.String("url", hit.URL),
					zap.Error(err),
				)
			}
			outcomes[i] = outcome{hit: hit, result: res, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "research: retrieve batch")
	}

	result := &model.ResearchResult{BatchID: batchID, Query: params.Query}
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			result.Failures = append(result.Failures, model.FailureEntry{
				URL:    o.hit.URL,
				Title:  o.hit.Title,
				Status: model.StatusError,
				Reason: []string{o.err.Error()},
			})
		case o.result.Classification.Status == model.StatusUsable:
			content := ""
			if o.result.Content != nil {
				content = truncate(*o.result.Content, params.MaxContentLength)
			}
			title := o.result.Title
			if title == "" {
				title = o.hit.Title
			}
			result.Sources = append(result.Sources, model.SourceEntry{
				URL:           o.hit.URL,
				Title:         title,
				Snippet:       o.hit.Snippet,
				Status:        o.result.Classification.Status,
				Method:        o.result.Signals.Method,
				ContentLength: o.result.Signals.ContentLength,
				Content:       content,
			})
		default:
			result.Failures = append(result.Failures, model.FailureEntry{
				URL:    o.hit.URL,
				Title:  o.hit.Title,
				Status: o.result.Classification.Status,
				Reason: failureReason(o.result),
			})
		}
	}

	result.Metrics = model.ComputeMetrics(result.Sources, result.Failures)

	zap.L().Info("research batch complete",
		zap.String("batch_id", batchID),
		zap.String("query", params.Query),
		zap.Int("sources", len(result.Sources)),
		zap.Int("failures", len(result.Failures)),
		zap.Float64("usable_rate", result.Metrics.UsableRate),
	)
	return result, nil
}

// truncate shortens content to max characters and appends a marker stating
// the original length. The cut counts runes, not bytes, so multibyte text
// never ends mid-sequence. Truncation happens after classification, so
// signals always describe the full page.
func truncate(content string, max int) string {
	if max <= 0 || utf8.RuneCountInString(content) <= max {
		return content
	}
	runes := []rune(content)
	return string(runes[:max]) + fmt.Sprintf("\n\n[Truncated - %d total chars]", len(runes))
}

func failureReason(res *model.RetrievalResult) []string {
	switch res.Classification.Status {
	case model.StatusBlocked:
		if len(res.Classification.DetectedPatterns) > 0 {
			return res.Classification.DetectedPatterns
		}
		return []string{"blocked"}
	case model.StatusThin:
		return []string{fmt.Sprintf("below %d chars (%d)", classify.ThinThreshold, res.Signals.ContentLength)}
	case model.StatusEmpty:
		return []string{"no text content"}
	case model.StatusEncodingFailure:
		return []string{"response could not be decoded"}
	default:
		return []string{string(res.Classification.Status)}
	}
}
