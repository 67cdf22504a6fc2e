// Package search provides optional Elasticsearch indexing of extracted
// page content. Indexing is best effort: the pipeline never fails a
// stage because the search cluster is down, and the feature is disabled
// entirely when no addresses are configured.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/rankforge/crawlpipe/internal/config"
	"github.com/rankforge/crawlpipe/internal/logger"
)

// defaultIndex is used when no index name is configured.
const defaultIndex = "crawlpipe_pages"

// PageDocument is the searchable projection of one crawled page.
type PageDocument struct {
	ProjectID       string    `json:"project_id"`
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	MetaDescription string    `json:"meta_description,omitempty"`
	Text            string    `json:"text"`
	WordCount       int       `json:"word_count"`
	CrawledAt       time.Time `json:"crawled_at"`
}

// Indexer pushes page documents into a search index.
type Indexer interface {
	IndexPages(ctx context.Context, docs []PageDocument) error
	Enabled() bool
}

// NewIndexer creates an Elasticsearch-backed indexer, or a disabled
// no-op one when no addresses are configured.
func NewIndexer(cfg config.SearchConfig, log logger.Interface) (Indexer, error) {
	if len(cfg.Addresses) == 0 {
		return &noopIndexer{}, nil
	}

	client, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	index := cfg.Index
	if index == "" {
		index = defaultIndex
	}

	return &ESIndexer{
		client: client,
		index:  index,
		log:    log.WithComponent("search"),
	}, nil
}

// ESIndexer is the Elasticsearch implementation of Indexer.
type ESIndexer struct {
	client *es.Client
	index  string
	log    logger.Interface
}

// NewESIndexer wraps an existing client, for tests.
func NewESIndexer(client *es.Client, index string, log logger.Interface) *ESIndexer {
	return &ESIndexer{
		client: client,
		index:  index,
		log:    log.WithComponent("search"),
	}
}

// Enabled reports that indexing is active.
func (i *ESIndexer) Enabled() bool {
	return true
}

// IndexPages indexes each document individually, keyed by project and
// URL so re-processing overwrites instead of duplicating. Per-document
// failures are logged and skipped.
func (i *ESIndexer) IndexPages(ctx context.Context, docs []PageDocument) error {
	var failed int

	for idx := range docs {
		if err := i.indexOne(ctx, &docs[idx]); err != nil {
			i.log.Warn("failed to index page",
				"url", docs[idx].URL, "project_id", docs[idx].ProjectID, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to index %d of %d pages", failed, len(docs))
	}

	return nil
}

func (i *ESIndexer) indexOne(ctx context.Context, doc *PageDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal page document: %w", err)
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(doc.ProjectID+":"+doc.URL),
	)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}

	return nil
}

// noopIndexer is the disabled implementation.
type noopIndexer struct{}

func (n *noopIndexer) IndexPages(context.Context, []PageDocument) error { return nil }

func (n *noopIndexer) Enabled() bool { return false }
