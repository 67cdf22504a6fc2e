package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// CrawlStatus is the per-page crawl state within the sitemap inventory.
type CrawlStatus string

// Page crawl states.
const (
	CrawlStatusQueued  CrawlStatus = "queued"
	CrawlStatusCrawled CrawlStatus = "crawled"
	CrawlStatusError   CrawlStatus = "error"
)

// Page is one discovered URL within a project. Rows are created by
// sitemap discovery via an idempotent upsert keyed on (project, URL) and
// mutated only by the results aggregator. Rows are never deleted
// automatically; URLs absent from a later discovery run are left in
// place so historical crawl data survives.
type Page struct {
	ID            int64          `db:"id"              json:"id"`
	ProjectID     string         `db:"project_id"      json:"project_id"`
	URL           string         `db:"url"             json:"url"`
	Status        CrawlStatus    `db:"status"          json:"status"`
	ContentLayers *ContentLayers `db:"content_layers"  json:"content_layers"`
	WordCount     int            `db:"word_count"      json:"word_count"`
	LastCrawledAt *time.Time     `db:"last_crawled_at" json:"last_crawled_at"`
	CreatedAt     time.Time      `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"      json:"updated_at"`
}

// ContentLayers is the structured extraction produced per page: title,
// meta description, heading texts, embedded JSON-LD blocks, and the
// visible text after non-content elements are stripped.
type ContentLayers struct {
	Title           string   `json:"title"`
	MetaDescription string   `json:"metaDescription"`
	H1              []string `json:"h1"`
	H2              []string `json:"h2"`
	JSONLD          []any    `json:"jsonLd"`
	Text            string   `json:"text"`
}

// Scan implements sql.Scanner so content_layers JSONB columns load
// directly into the typed struct.
func (c *ContentLayers) Scan(value any) error {
	if value == nil {
		*c = ContentLayers{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for ContentLayers")
	}

	if len(data) == 0 {
		*c = ContentLayers{}
		return nil
	}

	return json.Unmarshal(data, c)
}

// Value implements driver.Valuer for JSONB storage.
func (c *ContentLayers) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}

	return json.Marshal(c)
}
