package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rankforge/crawlpipe/internal/domain"
)

// pageColumns lists the columns selected for page reads.
const pageColumns = `id, project_id, url, status, content_layers, word_count,
	last_crawled_at, created_at, updated_at`

// PageRepository handles database operations for the sitemap inventory.
type PageRepository struct {
	db *sqlx.DB
}

// NewPageRepository creates a new page repository.
func NewPageRepository(db *sqlx.DB) *PageRepository {
	return &PageRepository{db: db}
}

// SyncDiscovered upserts the discovered URL set for a project. Existing
// rows keep their crawl status and extracted layers; only genuinely new
// URLs are inserted, so re-running discovery on an unchanged sitemap is
// a no-op. Returns the number of newly inserted rows.
func (r *PageRepository) SyncDiscovered(
	ctx context.Context,
	projectID string,
	urls []string,
) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin discovery sync: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO pages (project_id, url)
		VALUES ($1, $2)
		ON CONFLICT (project_id, url) DO NOTHING
	`

	inserted := 0
	for _, pageURL := range urls {
		result, execErr := tx.ExecContext(ctx, query, projectID, pageURL)
		if execErr != nil {
			return 0, fmt.Errorf("failed to upsert page %s: %w", pageURL, execErr)
		}

		rows, raErr := result.RowsAffected()
		if raErr != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", raErr)
		}
		inserted += int(rows)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return 0, fmt.Errorf("failed to commit discovery sync: %w", commitErr)
	}

	return inserted, nil
}

// CountByStatus returns the number of pages in the given crawl status.
func (r *PageRepository) CountByStatus(
	ctx context.Context,
	projectID string,
	status domain.CrawlStatus,
) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM pages WHERE project_id = $1 AND status = $2`

	if err := r.db.GetContext(ctx, &count, query, projectID, status); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}

	return count, nil
}

// ListQueuedURLs returns the URLs awaiting a crawl for the project.
func (r *PageRepository) ListQueuedURLs(ctx context.Context, projectID string) ([]string, error) {
	var urls []string
	query := `SELECT url FROM pages WHERE project_id = $1 AND status = $2 ORDER BY url`

	err := r.db.SelectContext(ctx, &urls, query, projectID, domain.CrawlStatusQueued)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued URLs: %w", err)
	}

	return urls, nil
}

// ListByProject returns all pages in the project's inventory.
func (r *PageRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Page, error) {
	var pages []*domain.Page
	query := `SELECT ` + pageColumns + ` FROM pages WHERE project_id = $1 ORDER BY url`

	if err := r.db.SelectContext(ctx, &pages, query, projectID); err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	if pages == nil {
		pages = []*domain.Page{}
	}

	return pages, nil
}

// PageResult is one extraction outcome applied during the bulk update.
type PageResult struct {
	URL           string
	Status        domain.CrawlStatus
	ContentLayers *domain.ContentLayers
	WordCount     int
}

// BulkUpdateResults applies extraction results to the inventory in a
// single transaction. URLs that no longer exist in the inventory are
// skipped silently, which keeps a duplicate aggregation run harmless.
func (r *PageRepository) BulkUpdateResults(
	ctx context.Context,
	projectID string,
	results []PageResult,
	crawledAt time.Time,
) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bulk update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	query := `
		UPDATE pages
		SET status = $1, content_layers = $2, word_count = $3,
		    last_crawled_at = $4, updated_at = NOW()
		WHERE project_id = $5 AND url = $6
	`

	for _, res := range results {
		_, execErr := tx.ExecContext(ctx, query,
			res.Status, res.ContentLayers, res.WordCount, crawledAt, projectID, res.URL)
		if execErr != nil {
			return fmt.Errorf("failed to update page %s: %w", res.URL, execErr)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit bulk update: %w", commitErr)
	}

	return nil
}

// ListCrawledTexts returns the extracted text of every crawled page,
// feeding the semantic mapping stage.
func (r *PageRepository) ListCrawledTexts(ctx context.Context, projectID string) ([]string, error) {
	pages, err := r.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		if page.Status != domain.CrawlStatusCrawled || page.ContentLayers == nil {
			continue
		}
		texts = append(texts, page.ContentLayers.Text)
	}

	return texts, nil
}
