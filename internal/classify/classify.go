// Package classify turns retrieval signals and text into an explicit
// outcome classification. It is pure rule evaluation: no I/O, no model,
// deterministic for identical inputs.
package classify

import (
	"github.com/justscrape/justscrape/internal/model"
)

// Thresholds below which content is suspect. These are part of the wire
// contract: changing them requires a version bump.
const (
	// ThinThreshold is the length below which content is thin and below
	// which a static fetch is eligible for render fallback.
	ThinThreshold = 500

	// BlockedMaxLength bounds the blocked check. Bot walls are short;
	// a long article that merely mentions "captcha" is not a wall.
	BlockedMaxLength = 1500

	// HighConfidenceLength is the length at or above which usable content
	// gets high confidence.
	HighConfidenceLength = 5000
)

// Classifier evaluates the fixed decision order against a pattern table.
type Classifier struct {
	table *PatternTable
}

// New creates a Classifier with the given pattern table; nil uses the
// embedded default.
func New(table *PatternTable) *Classifier {
	if table == nil {
		table = DefaultPatternTable()
	}
	return &Classifier{table: table}
}

// Classify derives a Classification from signals, title, and cleaned text.
// First matching rule wins; the order matters because several conditions
// can hold at once (a short page can be both blocked and thin).
func (c *Classifier) Classify(signals model.Signals, title, text string) model.Classification {
	// Rule 1: encoding failure dominates everything. The bytes arrived but
	// cannot be safely represented as text.
	if !signals.EncodingOK {
		return model.Classification{
			Status:     model.StatusEncodingFailure,
			Confidence: model.ConfidenceHigh,
		}
	}

	// Rule 2: nothing to classify.
	if signals.ContentLength == 0 {
		return model.Classification{
			Status:     model.StatusEmpty,
			Confidence: model.ConfidenceHigh,
		}
	}

	// Rule 3: bot-wall fingerprints, only credible on short pages. The
	// title participates so pages like "Just a moment..." with an empty
	// body still register.
	if signals.ContentLength < BlockedMaxLength {
		if matched, conf := c.table.match(title + " " + text); len(matched) > 0 {
			return model.Classification{
				Status:           model.StatusBlocked,
				Confidence:       conf,
				DetectedPatterns: matched,
			}
		}
	}

	// Rule 4: too short to be a real page.
	if signals.ContentLength < ThinThreshold {
		return model.Classification{
			Status:     model.StatusThin,
			Confidence: model.ConfidenceMedium,
		}
	}

	// Rule 5: usable. Length is the only confidence signal; there is
	// deliberately no topic model, so a long cookie-notice page is usable.
	conf := model.ConfidenceMedium
	if signals.ContentLength >= HighConfidenceLength {
		conf = model.ConfidenceHigh
	}
	return model.Classification{
		Status:     model.StatusUsable,
		Confidence: conf,
	}
}
