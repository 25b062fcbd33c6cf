package model

import "github.com/rotisserie/eris"

// SearchResult is one ranked hit from the search capability.
type SearchResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
}

// SearchResponse is the full result of a search_sources call.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Cached  bool           `json:"cached"`
}

// SourceEntry is a usable source inside a ResearchResult.
type SourceEntry struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet,omitempty"`
	Status        Status `json:"status"`
	Method        Method `json:"method"`
	ContentLength int    `json:"content_length"`
	Content       string `json:"content"`
}

// FailureEntry records one non-usable outcome inside a ResearchResult.
// Reason explains why: detected patterns for blocked, a length note for
// thin, the error text for transport faults. Failures are never hidden.
type FailureEntry struct {
	URL    string   `json:"url"`
	Title  string   `json:"title"`
	Status Status   `json:"status"`
	Reason []string `json:"reason"`
}

// Metrics aggregates one research batch.
type Metrics struct {
	Total        int     `json:"total"`
	UsableCount  int     `json:"usable_count"`
	UsableRate   float64 `json:"usable_rate"`
	BlockedCount int     `json:"blocked_count"`
	ThinCount    int     `json:"thin_count"`
}

// ResearchResult is the outcome of one research_with_sources call.
// Sources and Failures preserve search ranking order. BatchID ties the
// result to its log lines.
type ResearchResult struct {
	BatchID  string         `json:"batch_id"`
	Query    string         `json:"query"`
	Sources  []SourceEntry  `json:"sources"`
	Failures []FailureEntry `json:"failures"`
	Metrics  Metrics        `json:"metrics"`
}

// ComputeMetrics derives Metrics from the partitioned entries. UsableRate
// is 0 when the batch is empty, never a division fault.
func ComputeMetrics(sources []SourceEntry, failures []FailureEntry) Metrics {
	m := Metrics{
		Total:       len(sources) + len(failures),
		UsableCount: len(sources),
	}
	for _, f := range failures {
		switch f.Status {
		case StatusBlocked:
			m.BlockedCount++
		case StatusThin:
			m.ThinCount++
		}
	}
	if m.Total > 0 {
		m.UsableRate = float64(m.UsableCount) / float64(m.Total)
	}
	return m
}

// LinkResult is the outcome of an extract_urls call.
type LinkResult struct {
	SourceURL string   `json:"source_url"`
	URLs      []string `json:"urls"`
	Count     int      `json:"count"`
}

func errContentStatus(s Status, hasContent bool) error {
	if hasContent {
		return eris.Errorf("model: status %q must not carry content", s)
	}
	return eris.Errorf("model: status %q requires content", s)
}
