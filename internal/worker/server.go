package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/justscrape/justscrape/internal/model"
	"github.com/justscrape/justscrape/internal/research"
)

// Argument bounds and defaults.
const (
	defaultNumResults = 10
	maxNumResults     = 25
	defaultLimit      = 5
	maxLimit          = 10
	defaultMaxContent = 5000

	// Generous line cap; research responses carry page content.
	maxLineBytes = 16 << 20
)

// Searcher ranks sources for a query.
type Searcher interface {
	Search(ctx context.Context, query string, numResults int) (*model.SearchResponse, error)
}

// Retriever fetches and classifies one URL.
type Retriever interface {
	Retrieve(ctx context.Context, url string, allowRender bool) (*model.RetrievalResult, error)
	ExtractLinks(ctx context.Context, url string, filterExternal bool) (*model.LinkResult, error)
}

// Researcher runs the combined search-then-retrieve pipeline.
type Researcher interface {
	Research(ctx context.Context, params research.Params) (*model.ResearchResult, error)
}

// Server answers tool requests read from in, one JSON object per line.
// Requests are handled sequentially so response order always matches
// request order; a malformed line produces an error response, never a
// crash or a skipped line.
type Server struct {
	searcher   Searcher
	retriever  Retriever
	researcher Researcher
}

// NewServer creates a Server over the given capabilities.
func NewServer(searcher Searcher, retriever Retriever, researcher Researcher) *Server {
	return &Server{
		searcher:   searcher,
		retriever:  retriever,
		researcher: researcher,
	}
}

// Serve writes the readiness line, then answers requests until in is
// exhausted or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)

	ready := Readiness{OK: true, Status: "ready", Version: Version, Tools: Tools}
	if err := enc.Encode(ready); err != nil {
		return eris.Wrap(err, "worker: write readiness")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp := s.handleLine(ctx, line)
		if err := enc.Encode(resp); err != nil {
			return eris.Wrap(err, "worker: write response")
		}
	}
	return eris.Wrap(scanner.Err(), "worker: read requests")
}

func (s *Server) handleLine(ctx context.Context, line string) *Response {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return errResponse("invalid request: not a JSON object")
	}
	if req.Tool == "" {
		return errResponse("invalid request: missing tool")
	}

	resp, err := s.dispatch(ctx, canonicalTool(req.Tool), req.Args)
	if err != nil {
		zap.L().Debug("worker: tool failed",
			zap.String("tool", req.Tool),
			zap.Error(err),
		)
		return errResponse(err.Error())
	}
	return resp
}

func (s *Server) dispatch(ctx context.Context, tool string, args json.RawMessage) (*Response, error) {
	switch tool {
	case ToolSearchSources:
		return s.searchSources(ctx, args)
	case ToolRetrieveSource:
		return s.retrieveSource(ctx, args)
	case ToolResearchWithSources:
		return s.researchWithSources(ctx, args)
	case ToolExtractURLs:
		return s.extractURLs(ctx, args)
	default:
		return nil, eris.Errorf("unknown tool: %s", tool)
	}
}

type searchArgs struct {
	Query      string `json:"query"`
	NumResults *int   `json:"num_results"`
}

func (s *Server) searchSources(ctx context.Context, args json.RawMessage) (*Response, error) {
	var a searchArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Query == "" {
		return nil, eris.New("search_sources: query is required")
	}
	num := clampArg(a.NumResults, defaultNumResults, maxNumResults)

	resp, err := s.searcher.Search(ctx, a.Query, num)
	if err != nil {
		return nil, err
	}
	return okResponse(resp)
}

type retrieveArgs struct {
	URL             string `json:"url"`
	AllowJavascript *bool  `json:"allow_javascript"`
}

func (s *Server) retrieveSource(ctx context.Context, args json.RawMessage) (*Response, error) {
	var a retrieveArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.URL == "" {
		return nil, eris.New("retrieve_source: url is required")
	}

	res, err := s.retriever.Retrieve(ctx, a.URL, boolArg(a.AllowJavascript, true))
	if err != nil {
		return nil, err
	}
	return okResponse(res)
}

type researchArgs struct {
	Query            string `json:"query"`
	Limit            *int   `json:"limit"`
	AllowJavascript  *bool  `json:"allow_javascript"`
	MaxContentLength *int   `json:"max_content_length"`
}

func (s *Server) researchWithSources(ctx context.Context, args json.RawMessage) (*Response, error) {
	var a researchArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Query == "" {
		return nil, eris.New("research_with_sources: query is required")
	}

	res, err := s.researcher.Research(ctx, research.Params{
		Query:            a.Query,
		Limit:            clampArg(a.Limit, defaultLimit, maxLimit),
		AllowRender:      boolArg(a.AllowJavascript, true),
		MaxContentLength: clampArg(a.MaxContentLength, defaultMaxContent, 0),
	})
	if err != nil {
		return nil, err
	}
	return okResponse(res)
}

type extractArgs struct {
	URL            string `json:"url"`
	FilterExternal bool   `json:"filter_external"`
}

func (s *Server) extractURLs(ctx context.Context, args json.RawMessage) (*Response, error) {
	var a extractArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.URL == "" {
		return nil, eris.New("extract_urls: url is required")
	}

	res, err := s.retriever.ExtractLinks(ctx, a.URL, a.FilterExternal)
	if err != nil {
		return nil, err
	}
	return okResponse(res)
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return eris.New("invalid request: missing args")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return eris.Wrap(err, "invalid args")
	}
	return nil
}

// clampArg applies a default for absent or non-positive values and an
// upper bound when max is positive.
func clampArg(v *int, def, max int) int {
	if v == nil || *v <= 0 {
		return def
	}
	if max > 0 && *v > max {
		return max
	}
	return *v
}

func boolArg(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
