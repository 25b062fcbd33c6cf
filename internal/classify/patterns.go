package classify

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/justscrape/justscrape/internal/model"
)

//go:embed patterns.yaml
var patternsYAML []byte

// Pattern is one entry of the blocked-page detection table.
type Pattern struct {
	Phrase     string           `yaml:"phrase"`
	Confidence model.Confidence `yaml:"confidence"`
}

// PatternTable is the ordered, versioned bot-wall phrase table.
type PatternTable struct {
	Version  int       `yaml:"version"`
	Patterns []Pattern `yaml:"patterns"`
}

// LoadPatternTable parses a pattern table from YAML, preserving order.
func LoadPatternTable(data []byte) (*PatternTable, error) {
	var t PatternTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "classify: parse pattern table")
	}
	if len(t.Patterns) == 0 {
		return nil, eris.New("classify: pattern table is empty")
	}
	for _, p := range t.Patterns {
		if p.Phrase == "" {
			return nil, eris.New("classify: pattern with empty phrase")
		}
		switch p.Confidence {
		case model.ConfidenceHigh, model.ConfidenceMedium, model.ConfidenceLow:
		default:
			return nil, eris.Errorf("classify: pattern %q has invalid confidence %q", p.Phrase, p.Confidence)
		}
	}
	return &t, nil
}

// DefaultPatternTable returns the embedded table. The embed is validated by
// tests, so a parse failure here is a build defect.
func DefaultPatternTable() *PatternTable {
	t, err := LoadPatternTable(patternsYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// match scans title+text for every table phrase, in table order.
// Returns the matched phrases and the strongest confidence among them.
func (t *PatternTable) match(text string) ([]string, model.Confidence) {
	lower := strings.ToLower(text)

	var matched []string
	best := model.ConfidenceLow
	for _, p := range t.Patterns {
		if !strings.Contains(lower, p.Phrase) {
			continue
		}
		matched = append(matched, p.Phrase)
		if stronger(p.Confidence, best) {
			best = p.Confidence
		}
	}
	return matched, best
}

func stronger(a, b model.Confidence) bool {
	return rank(a) > rank(b)
}

func rank(c model.Confidence) int {
	switch c {
	case model.ConfidenceHigh:
		return 3
	case model.ConfidenceMedium:
		return 2
	default:
		return 1
	}
}
