package registry

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/justscrape/justscrape/internal/model"
)

// Sitemap XML shapes per https://www.sitemaps.org/protocol.html. The same
// document is decoded into both: a <urlset> fills URLs, a <sitemapindex>
// fills Sitemaps.
type sitemapDoc struct {
	XMLName  xml.Name       `xml:""`
	URLs     []sitemapEntry `xml:"url"`
	Sitemaps []sitemapRef   `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	Priority   string `xml:"priority"`
	ChangeFreq string `xml:"changefreq"`
}

type sitemapRef struct {
	Loc string `xml:"loc"`
}

// parseSitemap decodes sitemap XML. For a regular sitemap it returns page
// URLs; for a sitemap index it returns child sitemap locations instead.
func parseSitemap(content []byte, domain string) ([]model.SitemapURL, []string, error) {
	var doc sitemapDoc
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, nil, eris.Wrap(err, "registry: decode xml")
	}

	if len(doc.Sitemaps) > 0 {
		children := make([]string, 0, len(doc.Sitemaps))
		for _, ref := range doc.Sitemaps {
			if loc := strings.TrimSpace(ref.Loc); loc != "" {
				children = append(children, loc)
			}
		}
		return nil, children, nil
	}

	urls := make([]model.SitemapURL, 0, len(doc.URLs))
	for _, entry := range doc.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		u := model.SitemapURL{
			URL:             loc,
			Domain:          domain,
			LastModified:    strings.TrimSpace(entry.LastMod),
			ChangeFrequency: strings.TrimSpace(entry.ChangeFreq),
		}
		if p := strings.TrimSpace(entry.Priority); p != "" {
			if f, err := strconv.ParseFloat(p, 64); err == nil {
				u.Priority = &f
			}
		}
		urls = append(urls, u)
	}
	return urls, nil, nil
}
