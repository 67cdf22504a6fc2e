package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rankforge/crawlpipe/internal/domain"
	"github.com/rankforge/crawlpipe/internal/sitemap"
	"github.com/rankforge/crawlpipe/internal/urlnorm"
)

// DiscoverSitemap resolves the project's domain to its sitemap URL
// inventory and syncs it into the pages table. A site with no
// discoverable sitemap terminates the pipeline. When the synced
// inventory leaves nothing queued to crawl, the external crawl is
// skipped and the pipeline jumps straight to results processing.
func (o *Orchestrator) DiscoverSitemap(ctx context.Context, projectID string) error {
	project, err := o.loadProject(ctx, projectID)
	if err != nil || project == nil {
		return err
	}

	entered, err := o.enterStage(ctx, project,
		[]domain.Status{domain.StatusQueued},
		domain.StatusDiscoveringSitemap, "discovering sitemap")
	if err != nil || !entered {
		return err
	}

	discovered, err := o.discoverer.Discover(ctx, project.Domain)
	if err != nil {
		if errors.Is(err, sitemap.ErrNoSitemap) {
			return o.failStage(ctx, projectID,
				"no sitemap found for "+project.Domain, err)
		}
		return o.failStage(ctx, projectID, "sitemap discovery failed", err)
	}

	// Sitemaps repeat pages under alternate spellings and sometimes list
	// off-site URLs; only canonical same-site entries enter the inventory.
	urls := urlnorm.Canonicalize(discovered, project.Domain)

	inserted, err := o.pages.SyncDiscovered(ctx, projectID, urls)
	if err != nil {
		return o.failStage(ctx, projectID, "failed to record discovered pages", err)
	}

	o.log.Info("sitemap discovered",
		"project_id", projectID, "urls", len(urls), "new", inserted)

	queued, err := o.pages.ListQueuedURLs(ctx, projectID)
	if err != nil {
		return o.failStage(ctx, projectID, "failed to inspect page inventory", err)
	}

	if err := o.projects.UpdateStatus(ctx, projectID,
		domain.StatusDiscoveringSitemap, domain.StatusCrawlingPages,
		fmt.Sprintf("%d pages discovered", len(urls))); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil
		}
		return err
	}

	if len(queued) == 0 {
		// Nothing new to fetch: skip the external crawl entirely.
		return o.advance(ctx, projectID,
			domain.StatusCrawlingPages, domain.StatusProcessingCrawlResults,
			"no pages queued, skipping crawl",
			domain.StageTask{Stage: domain.StageProcessResults})
	}

	if _, err := o.queue.Enqueue(ctx, domain.StageTask{
		ProjectID: projectID,
		Stage:     domain.StageDelegateCrawl,
	}); err != nil {
		o.log.Error("failed to enqueue crawl delegation",
			"project_id", projectID, "error", err)
	}

	return nil
}
