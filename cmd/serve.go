package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justscrape/justscrape/internal/research"
	"github.com/justscrape/justscrape/internal/worker"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the tools over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.Searcher, env.Retriever, env.Researcher),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(searcher worker.Searcher, retriever worker.Retriever, researcher worker.Researcher) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": worker.Version})
	})

	r.Post("/v1/search", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Query      string `json:"query"`
			NumResults int    `json:"num_results"`
		}
		if !decodeBody(w, req, &body) {
			return
		}
		if body.Query == "" {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}
		if body.NumResults <= 0 {
			body.NumResults = 10
		}

		resp, err := searcher.Search(req.Context(), body.Query, body.NumResults)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/v1/retrieve", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			URL             string `json:"url"`
			AllowJavascript *bool  `json:"allow_javascript"`
		}
		if !decodeBody(w, req, &body) {
			return
		}
		if body.URL == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		allowRender := body.AllowJavascript == nil || *body.AllowJavascript

		result, err := retriever.Retrieve(req.Context(), body.URL, allowRender)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Post("/v1/research", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Query            string `json:"query"`
			Limit            int    `json:"limit"`
			AllowJavascript  *bool  `json:"allow_javascript"`
			MaxContentLength int    `json:"max_content_length"`
		}
		if !decodeBody(w, req, &body) {
			return
		}
		if body.Query == "" {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}
		if body.Limit <= 0 {
			body.Limit = 5
		}
		if body.MaxContentLength <= 0 {
			body.MaxContentLength = 5000
		}

		result, err := researcher.Research(req.Context(), research.Params{
			Query:            body.Query,
			Limit:            body.Limit,
			AllowRender:      body.AllowJavascript == nil || *body.AllowJavascript,
			MaxContentLength: body.MaxContentLength,
		})
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Post("/v1/extract", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			URL            string `json:"url"`
			FilterExternal bool   `json:"filter_external"`
		}
		if !decodeBody(w, req, &body) {
			return
		}
		if body.URL == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}

		result, err := retriever.ExtractLinks(req.Context(), body.URL, body.FilterExternal)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	return r
}

func decodeBody(w http.ResponseWriter, req *http.Request, dst any) bool {
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
