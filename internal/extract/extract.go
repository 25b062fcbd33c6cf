// Package extract turns raw markup into cleaned text plus structural
// signals, and extracts links. Readability does the boilerplate stripping;
// goquery provides the fallback path and link traversal.
package extract

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"
)

// Extraction is the cleaned view of one page.
type Extraction struct {
	Title          string
	Text           string
	ContentLength  int
	LineBreakCount int
}

// FromHTML extracts the main content of a page. When readability cannot
// identify an article it falls back to whole-body text with chrome
// (scripts, nav, footers) removed, so thin or odd pages still classify on
// their real text rather than erroring.
func FromHTML(pageURL, html string) (*Extraction, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse url %s", pageURL)
	}

	title, text := readableText(html, parsed)
	if text == "" {
		title2, fallback, err := bodyText(html)
		if err != nil {
			return nil, err
		}
		if title == "" {
			title = title2
		}
		text = fallback
	}

	text = normalize(text)
	return &Extraction{
		Title: strings.TrimSpace(title),
		Text:  text,
		// Characters, not bytes: the classification thresholds describe
		// text length, and CJK pages would otherwise triple-count.
		ContentLength:  utf8.RuneCountInString(text),
		LineBreakCount: strings.Count(text, "\n"),
	}, nil
}

// readableText runs go-readability and returns its title and text content.
// A parse failure is not an error here; the caller falls back.
func readableText(html string, u *url.URL) (title, text string) {
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(html), u)
	if err != nil {
		return "", ""
	}
	return article.Title, article.TextContent
}

// bodyText strips non-content elements and returns the remaining body text.
func bodyText(html string) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", eris.Wrap(err, "extract: parse html")
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, nav, header, footer, aside, form, iframe, noscript").Remove()

	var b strings.Builder
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		b.WriteString(s.Text())
	})
	if b.Len() == 0 {
		// No body element; take whatever text remains.
		b.WriteString(doc.Text())
	}
	return title, b.String(), nil
}

// normalize trims lines, drops blank and consecutive-duplicate lines, and
// joins paragraphs with single newlines.
func normalize(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	prev := ""
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || line == prev {
			continue
		}
		out = append(out, line)
		prev = line
	}
	return strings.Join(out, "\n")
}
