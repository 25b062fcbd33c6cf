// Package model holds the shared data types for retrieval, classification,
// search, and research results.
package model

// Method identifies which fetch strategy produced a page.
type Method string

const (
	MethodStatic   Method = "static"
	MethodRendered Method = "rendered"
)

// Status is the five-way outcome classification of a retrieval. Outcomes
// are data, not errors: callers branch on Status, never on success/failure.
type Status string

const (
	StatusUsable          Status = "usable"
	StatusThin            Status = "thin"
	StatusBlocked         Status = "blocked"
	StatusEncodingFailure Status = "encoding-failure"
	StatusEmpty           Status = "empty"

	// StatusError marks a research failure entry whose retrieval failed at
	// the transport level (DNS, connection refused). It is never produced
	// by the classifier.
	StatusError Status = "error"
)

// AllStatuses returns the classifier-producible statuses.
func AllStatuses() []Status {
	return []Status{
		StatusUsable,
		StatusThin,
		StatusBlocked,
		StatusEncodingFailure,
		StatusEmpty,
	}
}

// HasContent reports whether a retrieval with this status carries content.
// Content is non-nil for usable and thin, nil for everything else.
func (s Status) HasContent() bool {
	return s == StatusUsable || s == StatusThin
}

// Confidence is the qualitative certainty attached to a Status.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Signals are the measurable facts about one retrieval attempt. They are
// produced once by the orchestrator and never mutated.
type Signals struct {
	ContentLength  int    `json:"content_length"` // characters, not bytes
	LineBreakCount int    `json:"line_break_count"`
	Method         Method `json:"method"`
	StatusCode     int    `json:"status_code,omitempty"`
	EncodingOK     bool   `json:"encoding_ok"`
}

// Classification is the pure derivation of Signals + text. Exactly one
// status per retrieval; DetectedPatterns is empty unless status is blocked.
type Classification struct {
	Status           Status     `json:"status"`
	Confidence       Confidence `json:"confidence"`
	DetectedPatterns []string   `json:"detected_patterns"`
}

// RetrievalResult is the full outcome of one retrieve_source call.
// Content is nil iff the status carries no content.
type RetrievalResult struct {
	URL            string         `json:"url"`
	Title          string         `json:"title"`
	Content        *string        `json:"content"`
	Signals        Signals        `json:"signals"`
	Classification Classification `json:"classification"`
}

// Validate checks the content/status invariant.
func (r *RetrievalResult) Validate() error {
	if r.Classification.Status.HasContent() != (r.Content != nil) {
		return errContentStatus(r.Classification.Status, r.Content != nil)
	}
	return nil
}
