// Package worker implements the line-delimited JSON tool protocol spoken
// over a child process's stdin and stdout. The parent writes one request
// per line and reads one response per line; responses arrive in request
// order, so correlation is strictly FIFO.
package worker

import "encoding/json"

// Version is reported in the readiness line.
const Version = "1.0.0"

// Tool names. The web_* and scrape_* forms are legacy aliases kept for
// older callers.
const (
	ToolSearchSources       = "search_sources"
	ToolRetrieveSource      = "retrieve_source"
	ToolResearchWithSources = "research_with_sources"
	ToolExtractURLs         = "extract_urls"

	aliasWebSearch       = "web_search"
	aliasScrapeURL       = "scrape_url"
	aliasSearchAndScrape = "search_and_scrape"
)

// Tools lists the canonical tool names advertised in the readiness line.
var Tools = []string{
	ToolSearchSources,
	ToolRetrieveSource,
	ToolResearchWithSources,
	ToolExtractURLs,
}

// Readiness is the first line a worker writes after starting.
type Readiness struct {
	OK      bool     `json:"ok"`
	Status  string   `json:"status"`
	Version string   `json:"version"`
	Tools   []string `json:"tools"`
}

// Request is one tool invocation line.
type Request struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// Response is one result line. Exactly one of Result and Error is set,
// matching OK.
type Response struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func okResponse(result any) (*Response, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{OK: true, Result: payload}, nil
}

func errResponse(msg string) *Response {
	return &Response{OK: false, Error: msg}
}

// canonicalTool resolves legacy aliases to their canonical names. Unknown
// tools pass through unchanged for the server to reject.
func canonicalTool(name string) string {
	switch name {
	case aliasWebSearch:
		return ToolSearchSources
	case aliasScrapeURL:
		return ToolRetrieveSource
	case aliasSearchAndScrape:
		return ToolResearchWithSources
	default:
		return name
	}
}
