package favicon

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// iconSelector pairs an attribute selector with the attribute carrying the
// icon reference. Order is the discovery priority: the first selector that
// matches any element wins.
type iconSelector struct {
	query string
	attr  string
}

var iconSelectors = []iconSelector{
	{`link[rel="icon"]`, "href"},
	{`link[rel="shortcut icon"]`, "href"},
	{`link[rel~="icon"]`, "href"},
	{`link[rel="apple-touch-icon"]`, "href"},
	{`link[rel="apple-touch-icon-precomposed"]`, "href"},
	{`meta[property="og:image"]`, "content"},
}

// DiscoverIcon parses page markup and evaluates the icon selectors in
// priority order. scheme is the scheme the page was fetched over; the page's
// FinalURL is the base for resolving relative references. Inline data URIs
// and unparseable references are non-matches: the scan continues with the
// next element or selector.
func DiscoverIcon(page Page, scheme string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return "", fmt.Errorf("parse page markup: %w", err)
	}
	base, baseErr := url.Parse(page.FinalURL)
	if baseErr != nil {
		base = nil
	}

	for _, sel := range iconSelectors {
		found := ""
		doc.Find(sel.query).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			raw, exists := s.Attr(sel.attr)
			if !exists || strings.TrimSpace(raw) == "" {
				return true
			}
			normalized, normErr := NormalizeIconHref(raw, scheme, base)
			if normErr != nil {
				return true
			}
			found = normalized
			return false
		})
		if found != "" {
			return found, nil
		}
	}
	return "", nil
}
