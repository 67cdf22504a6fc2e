// Package content extracts the structured content layers from raw page
// HTML: title, meta description, heading texts, embedded JSON-LD
// blocks, and the visible text with its word count.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rankforge/crawlpipe/internal/domain"
)

// nonContentSelectors lists elements stripped before computing visible
// text.
const nonContentSelectors = "script, style, nav, header, footer, aside"

// jsonLDSelector matches embedded structured-data script blocks.
const jsonLDSelector = "script[type='application/ld+json']"

// Extractor parses fetched HTML into content layers. It is a pure
// transformation with no I/O; one instance is safe for concurrent use.
type Extractor struct{}

// NewExtractor creates a new content extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses HTML and returns the content layers plus the
// whitespace-delimited word count of the stripped text. Malformed
// JSON-LD blocks are skipped, never fatal.
func (e *Extractor) Extract(html []byte) (*domain.ContentLayers, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, 0, fmt.Errorf("parse html: %w", err)
	}

	layers := &domain.ContentLayers{
		Title:           strings.TrimSpace(doc.Find("title").First().Text()),
		MetaDescription: extractMetaDescription(doc),
		H1:              extractHeadings(doc, "h1"),
		H2:              extractHeadings(doc, "h2"),
		JSONLD:          extractJSONLD(doc),
		Text:            extractVisibleText(doc),
	}

	return layers, len(strings.Fields(layers.Text)), nil
}

// extractMetaDescription extracts the description from meta tags,
// preferring the standard tag over og:description.
func extractMetaDescription(doc *goquery.Document) string {
	if desc, exists := doc.Find("meta[name='description']").Attr("content"); exists {
		return strings.TrimSpace(desc)
	}

	if ogDesc, exists := doc.Find("meta[property='og:description']").Attr("content"); exists {
		return strings.TrimSpace(ogDesc)
	}

	return ""
}

// extractHeadings collects the trimmed text of every heading at the
// given level, skipping empty ones.
func extractHeadings(doc *goquery.Document, level string) []string {
	headings := []string{}
	doc.Find(level).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			headings = append(headings, text)
		}
	})

	return headings
}

// extractJSONLD parses every embedded structured-data block. Blocks
// that fail to parse are dropped; an array-valued block contributes its
// elements individually.
func extractJSONLD(doc *goquery.Document) []any {
	blocks := []any{}
	doc.Find(jsonLDSelector).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return
		}

		switch v := parsed.(type) {
		case []any:
			blocks = append(blocks, v...)
		default:
			blocks = append(blocks, v)
		}
	})

	return blocks
}

// extractVisibleText strips non-content elements from the body and
// returns the remaining text with normalized whitespace.
func extractVisibleText(doc *goquery.Document) string {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return ""
	}

	body.Find(nonContentSelectors).Remove()

	return strings.Join(strings.Fields(body.Text()), " ")
}
