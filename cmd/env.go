package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/justscrape/justscrape/internal/classify"
	"github.com/justscrape/justscrape/internal/fetch"
	"github.com/justscrape/justscrape/internal/registry"
	"github.com/justscrape/justscrape/internal/research"
	"github.com/justscrape/justscrape/internal/retrieve"
	"github.com/justscrape/justscrape/internal/search"
	"github.com/justscrape/justscrape/internal/store"
	"github.com/justscrape/justscrape/pkg/duckduckgo"
)

// appEnv holds the initialized store and services shared by the commands.
type appEnv struct {
	Store      store.Store
	Registry   *registry.Registry
	Searcher   *search.Service
	Retriever  *retrieve.Orchestrator
	Researcher *research.Coordinator
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv opens the store and wires the search, retrieval, and research
// services from config. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	static := fetch.NewStatic(cfg.Fetch)
	rendered := fetch.NewRendered(cfg.Render)
	classifier := classify.New(nil)
	retriever := retrieve.New(static, rendered, classifier, cfg.Retrieve)

	ddg := duckduckgo.New(
		duckduckgo.WithBaseURL(cfg.Search.BaseURL),
		duckduckgo.WithRegion(cfg.Search.Region),
		duckduckgo.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Search.TimeoutSecs) * time.Second,
		}),
	)
	searcher := search.New(ddg, st, cfg.Search)

	return &appEnv{
		Store:      st,
		Registry:   registry.New(st, cfg.Registry.StalenessDays),
		Searcher:   searcher,
		Retriever:  retriever,
		Researcher: research.New(searcher, retriever, research.DefaultConcurrency),
	}, nil
}
