// Package search answers ranked web queries, caching recent responses so
// repeated queries inside the TTL window skip the network entirely.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/justscrape/justscrape/internal/config"
	"github.com/justscrape/justscrape/internal/model"
	"github.com/justscrape/justscrape/internal/store"
	"github.com/justscrape/justscrape/pkg/duckduckgo"
)

// Service performs rate-limited searches with a persistent response cache.
type Service struct {
	client  duckduckgo.Client
	cache   store.Store // nil disables caching
	ttl     int         // seconds
	limiter *rate.Limiter
}

// New creates a Service. st may be nil to run without a cache.
func New(client duckduckgo.Client, st store.Store, cfg config.SearchConfig) *Service {
	limit := rate.Limit(cfg.RatePerSec)
	if cfg.RatePerSec <= 0 {
		limit = rate.Inf
	}
	return &Service{
		client:  client,
		cache:   st,
		ttl:     cfg.CacheTTLSecs,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Search returns up to numResults ranked hits for query. A cache hit is
// returned verbatim with Cached set; only successful responses are cached,
// so a transient failure never poisons the window.
func (s *Service) Search(ctx context.Context, query string, numResults int) (*model.SearchResponse, error) {
	key := cacheKey(query, numResults)

	if s.cache != nil {
		payload, err := s.cache.GetCachedSearch(ctx, key)
		if err != nil {
			zap.L().Warn("search: cache read failed", zap.Error(err))
		} else if payload != nil {
			var resp model.SearchResponse
			if err := json.Unmarshal(payload, &resp); err == nil {
				resp.Cached = true
				return &resp, nil
			}
			zap.L().Warn("search: discarding undecodable cache entry", zap.String("key", key))
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "search: rate limit wait")
	}

	hits, err := s.client.Search(ctx, query, numResults)
	if err != nil {
		return nil, eris.Wrapf(err, "search: query %q", query)
	}

	resp := &model.SearchResponse{
		Query:   query,
		Results: make([]model.SearchResult, 0, len(hits)),
	}
	for _, h := range hits {
		resp.Results = append(resp.Results, model.SearchResult{
			Position: h.Position,
			Title:    h.Title,
			URL:      h.URL,
			Snippet:  h.Snippet,
		})
	}

	if s.cache != nil && s.ttl > 0 {
		payload, err := json.Marshal(resp)
		if err == nil {
			if err := s.cache.SetCachedSearch(ctx, key, payload, time.Duration(s.ttl)*time.Second); err != nil {
				zap.L().Warn("search: cache write failed", zap.Error(err))
			}
		}
	}
	return resp, nil
}

func cacheKey(query string, numResults int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", query, numResults)))
	return hex.EncodeToString(sum[:])
}
