package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/justscrape/justscrape/internal/model"
)

// junkFragments mark ad, tracker, and social-widget URLs that carry no
// content worth retrieving.
var junkFragments = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"googleadservices.com",
	"facebook.com/plugins",
	"facebook.com/sharer",
	"twitter.com/widgets",
	"twitter.com/intent",
	"linkedin.com/share",
	"pinterest.com/pin",
	"/ads/",
	"/ad/",
	"/banner/",
	"/tracker/",
	"/track/",
	"analytics",
	"pixel",
	"/feed/",
	"/rss/",
	"mailto:",
	"javascript:",
	"tel:",
}

// Links extracts all hyperlinks from a page, absolute-ized against the
// source URL, junk filtered, deduplicated in first-seen order. With
// filterExternal set, only links leaving the source domain are kept.
func Links(pageURL, html string, filterExternal bool) (*model.LinkResult, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse url %s", pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}

	sourceDomain := normalizeHost(base.Host)

	seen := make(map[string]struct{})
	var urls []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || isJunk(href) {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if isJunk(abs.String()) {
			return
		}
		if filterExternal && normalizeHost(abs.Host) == sourceDomain {
			return
		}

		link := abs.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		urls = append(urls, link)
	})

	return &model.LinkResult{
		SourceURL: pageURL,
		URLs:      urls,
		Count:     len(urls),
	}, nil
}

func isJunk(link string) bool {
	lower := strings.ToLower(link)
	for _, frag := range junkFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
