package pipeline

import (
	"context"
	"errors"

	"github.com/rankforge/crawlpipe/internal/crawlrun"
	"github.com/rankforge/crawlpipe/internal/database"
	"github.com/rankforge/crawlpipe/internal/domain"
)

// DelegateCrawl submits the project's queued URLs to the external
// crawling service and records the run in a crawl session. The pipeline
// then parks in the crawling status until the service's webhook reports
// the outcome.
func (o *Orchestrator) DelegateCrawl(ctx context.Context, projectID string) error {
	project, err := o.loadProject(ctx, projectID)
	if err != nil || project == nil {
		return err
	}

	if project.Status != domain.StatusCrawlingPages {
		o.log.Info("skipping stale crawl delegation",
			"project_id", projectID, "status", string(project.Status))
		return nil
	}

	urls, err := o.pages.ListQueuedURLs(ctx, projectID)
	if err != nil {
		return o.failStage(ctx, projectID, "failed to list queued pages", err)
	}

	if len(urls) == 0 {
		return o.advance(ctx, projectID,
			domain.StatusCrawlingPages, domain.StatusProcessingCrawlResults,
			"no pages queued, skipping crawl",
			domain.StageTask{Stage: domain.StageProcessResults})
	}

	token, err := o.crawlerToken(ctx, project.UserID)
	if err != nil {
		return o.failStage(ctx, projectID, "crawler credential unavailable", err)
	}

	runID, err := o.crawler.Submit(ctx, crawlrun.SubmitRequest{
		StartURLs:   urls,
		CallbackURL: o.cfg.CallbackURL,
		Token:       token,
	})
	if err != nil {
		return o.failStage(ctx, projectID, "crawl submission failed", err)
	}

	if err := o.sessions.Create(ctx, &domain.CrawlSession{
		RunID:     runID,
		ProjectID: projectID,
		Domain:    project.Domain,
		Status:    "running",
	}); err != nil {
		return o.failStage(ctx, projectID, "failed to record crawl session", err)
	}

	o.log.Info("crawl delegated",
		"project_id", projectID, "run_id", runID, "urls", len(urls))

	if err := o.projects.UpdateStatus(ctx, projectID,
		domain.StatusCrawlingPages, domain.StatusCrawling,
		"crawl run "+runID+" in progress"); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil
		}
		return err
	}

	return nil
}

// crawlerToken resolves and opens the user's crawler credential. An
// undecryptable envelope is treated as absent.
func (o *Orchestrator) crawlerToken(ctx context.Context, userID string) (string, error) {
	encrypted, err := o.credentials.GetCrawlerToken(ctx, userID)
	if err != nil {
		return "", err
	}

	token, ok := o.envelope.Decrypt(encrypted)
	if !ok {
		return "", database.ErrCredentialNotFound
	}

	return token, nil
}
