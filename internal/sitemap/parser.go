package sitemap

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// locEntry is a <loc>-bearing child of either a sitemap index or a
// urlset document.
type locEntry struct {
	Loc string `xml:"loc"`
}

// document covers both sitemap flavors: an index document carries
// <sitemap> children pointing at further sitemaps, a leaf document
// carries <url> children naming pages. A single struct handles both
// since element names never collide.
type document struct {
	XMLName  xml.Name
	Sitemaps []locEntry `xml:"sitemap"`
	URLs     []locEntry `xml:"url"`
}

// parse decodes a sitemap document and splits it into child sitemap
// URLs (the new traversal frontier) and page URLs (the leaves).
func parse(body []byte) (children, pages []string, err error) {
	var doc document
	if unmarshalErr := xml.Unmarshal(body, &doc); unmarshalErr != nil {
		return nil, nil, fmt.Errorf("parse sitemap xml: %w", unmarshalErr)
	}

	for _, entry := range doc.Sitemaps {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			children = append(children, loc)
		}
	}

	for _, entry := range doc.URLs {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			pages = append(pages, loc)
		}
	}

	return children, pages, nil
}
