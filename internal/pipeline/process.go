package pipeline

import (
	"context"
	"time"

	"github.com/rankforge/crawlpipe/internal/database"
	"github.com/rankforge/crawlpipe/internal/domain"
	"github.com/rankforge/crawlpipe/internal/search"
)

// ProcessResults downloads the crawl dataset, extracts content layers
// per page, and applies the results to the inventory in one
// transaction. Individual page failures mark only that page; the stage
// continues. An empty dataset ID means the crawl was skipped and there
// is nothing to aggregate.
func (o *Orchestrator) ProcessResults(ctx context.Context, projectID, datasetID string) error {
	project, err := o.loadProject(ctx, projectID)
	if err != nil || project == nil {
		return err
	}

	entered, err := o.enterStage(ctx, project,
		[]domain.Status{domain.StatusCrawling},
		domain.StatusProcessingCrawlResults, "processing crawl results")
	if err != nil || !entered {
		return err
	}

	if datasetID != "" {
		if err := o.aggregate(ctx, project, datasetID); err != nil {
			return err
		}
	}

	return o.advance(ctx, projectID,
		domain.StatusProcessingCrawlResults, domain.StatusSemanticMapping,
		"mapping site semantics",
		domain.StageTask{Stage: domain.StageSemanticMapping})
}

// aggregate fetches and applies one dataset.
func (o *Orchestrator) aggregate(ctx context.Context, project *domain.Project, datasetID string) error {
	token, err := o.crawlerToken(ctx, project.UserID)
	if err != nil {
		return o.failStage(ctx, project.ID, "crawler credential unavailable", err)
	}

	items, err := o.crawler.FetchDataset(ctx, datasetID, token)
	if err != nil {
		return o.failStage(ctx, project.ID, "failed to fetch crawl dataset", err)
	}

	crawledAt := time.Now().UTC()
	results := make([]database.PageResult, 0, len(items))
	docs := make([]search.PageDocument, 0, len(items))

	for _, item := range items {
		result, doc := o.extractOne(project.ID, item.URL, item.HTML, crawledAt)
		results = append(results, result)
		if doc != nil {
			docs = append(docs, *doc)
		}
	}

	if err := o.pages.BulkUpdateResults(ctx, project.ID, results, crawledAt); err != nil {
		return o.failStage(ctx, project.ID, "failed to apply crawl results", err)
	}

	o.log.Info("crawl results processed",
		"project_id", project.ID, "dataset_id", datasetID,
		"pages", len(results), "indexed", len(docs))

	if o.indexer.Enabled() && len(docs) > 0 {
		// Best effort: a down search cluster never fails the pipeline.
		if indexErr := o.indexer.IndexPages(ctx, docs); indexErr != nil {
			o.log.Warn("search indexing incomplete",
				"project_id", project.ID, "error", indexErr)
		}
	}

	return nil
}

// extractOne turns one dataset item into a page result, plus a search
// document when extraction succeeds.
func (o *Orchestrator) extractOne(
	projectID, pageURL, html string,
	crawledAt time.Time,
) (database.PageResult, *search.PageDocument) {
	if html == "" {
		o.metrics.RecordExtraction(false)
		return database.PageResult{
			URL:    pageURL,
			Status: domain.CrawlStatusError,
		}, nil
	}

	layers, wordCount, err := o.extractor.Extract([]byte(html))
	if err != nil {
		o.metrics.RecordExtraction(false)
		o.log.Warn("content extraction failed",
			"project_id", projectID, "url", pageURL, "error", err)
		return database.PageResult{
			URL:    pageURL,
			Status: domain.CrawlStatusError,
		}, nil
	}

	o.metrics.RecordExtraction(true)

	return database.PageResult{
			URL:           pageURL,
			Status:        domain.CrawlStatusCrawled,
			ContentLayers: layers,
			WordCount:     wordCount,
		}, &search.PageDocument{
			ProjectID:       projectID,
			URL:             pageURL,
			Title:           layers.Title,
			MetaDescription: layers.MetaDescription,
			Text:            layers.Text,
			WordCount:       wordCount,
			CrawledAt:       crawledAt,
		}
}
