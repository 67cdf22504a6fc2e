// Package pipeline implements the analysis pipeline: sitemap discovery,
// crawl delegation, results aggregation, semantic mapping, and gap
// analysis. Each stage is one idempotent unit of work triggered by a
// queue task or, for the crawl outcome, by the external service's
// webhook. The project status column is the single source of truth;
// every stage validates its transition before writing, so a stale or
// duplicate trigger degrades to a logged no-op.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rankforge/crawlpipe/internal/crawlrun"
	"github.com/rankforge/crawlpipe/internal/database"
	"github.com/rankforge/crawlpipe/internal/domain"
	"github.com/rankforge/crawlpipe/internal/logger"
	"github.com/rankforge/crawlpipe/internal/metrics"
	"github.com/rankforge/crawlpipe/internal/search"
)

// ProjectStore is the project persistence surface the stages need.
type ProjectStore interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.Status, message string) error
	SetError(ctx context.Context, id, message string) error
	SetAnalysisResult(ctx context.Context, id string, result *domain.AnalysisResult) error
}

// PageStore is the sitemap inventory persistence surface.
type PageStore interface {
	SyncDiscovered(ctx context.Context, projectID string, urls []string) (int, error)
	ListQueuedURLs(ctx context.Context, projectID string) ([]string, error)
	BulkUpdateResults(ctx context.Context, projectID string, results []database.PageResult, crawledAt time.Time) error
	ListCrawledTexts(ctx context.Context, projectID string) ([]string, error)
}

// SessionStore is the crawl session persistence surface.
type SessionStore interface {
	Create(ctx context.Context, session *domain.CrawlSession) error
	GetByRunID(ctx context.Context, runID string) (*domain.CrawlSession, error)
	UpdateOutcome(ctx context.Context, runID, status, message string, finishedAt *time.Time) error
}

// CredentialStore resolves a user's encrypted crawler token.
type CredentialStore interface {
	GetCrawlerToken(ctx context.Context, userID string) (string, error)
}

// WebhookEventStore deduplicates webhook deliveries.
type WebhookEventStore interface {
	RecordDelivery(ctx context.Context, runID, eventType string) (bool, error)
}

// Discoverer resolves a domain to its sitemap URL inventory.
type Discoverer interface {
	Discover(ctx context.Context, domain string) ([]string, error)
}

// Decrypter opens credential envelopes.
type Decrypter interface {
	Decrypt(encoded string) (string, bool)
}

// Extractor parses fetched HTML into content layers.
type Extractor interface {
	Extract(html []byte) (*domain.ContentLayers, int, error)
}

// Enqueuer appends a stage task to the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task domain.StageTask) (string, error)
}

// Config holds orchestrator settings.
type Config struct {
	// CallbackURL is the publicly reachable webhook endpoint handed to
	// the external crawl service with every submitted run.
	CallbackURL string
}

// Orchestrator wires the stages to their dependencies and dispatches
// queue tasks to them.
type Orchestrator struct {
	cfg         Config
	projects    ProjectStore
	pages       PageStore
	sessions    SessionStore
	credentials CredentialStore
	events      WebhookEventStore
	discoverer  Discoverer
	crawler     crawlrun.Service
	envelope    Decrypter
	extractor   Extractor
	indexer     search.Indexer
	queue       Enqueuer
	metrics     *metrics.Metrics
	log         logger.Interface
}

// Deps collects the orchestrator's collaborators.
type Deps struct {
	Projects    ProjectStore
	Pages       PageStore
	Sessions    SessionStore
	Credentials CredentialStore
	Events      WebhookEventStore
	Discoverer  Discoverer
	Crawler     crawlrun.Service
	Envelope    Decrypter
	Extractor   Extractor
	Indexer     search.Indexer
	Queue       Enqueuer
	Metrics     *metrics.Metrics
	Logger      logger.Interface
}

// New creates a new pipeline orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		projects:    deps.Projects,
		pages:       deps.Pages,
		sessions:    deps.Sessions,
		credentials: deps.Credentials,
		events:      deps.Events,
		discoverer:  deps.Discoverer,
		crawler:     deps.Crawler,
		envelope:    deps.Envelope,
		extractor:   deps.Extractor,
		indexer:     deps.Indexer,
		queue:       deps.Queue,
		metrics:     deps.Metrics,
		log:         deps.Logger.WithComponent("pipeline"),
	}
}

// Handle executes the stage named by the task. Implements tasks.Handler.
func (o *Orchestrator) Handle(ctx context.Context, task domain.StageTask) error {
	start := time.Now()

	var err error
	switch task.Stage {
	case domain.StageDiscoverSitemap:
		err = o.DiscoverSitemap(ctx, task.ProjectID)
	case domain.StageDelegateCrawl:
		err = o.DelegateCrawl(ctx, task.ProjectID)
	case domain.StageProcessResults:
		err = o.ProcessResults(ctx, task.ProjectID, task.DatasetID)
	case domain.StageSemanticMapping:
		err = o.SemanticMapping(ctx, task.ProjectID)
	case domain.StageGapAnalysis:
		err = o.GapAnalysis(ctx, task.ProjectID)
	default:
		err = fmt.Errorf("unknown stage %q", task.Stage)
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	o.metrics.RecordStageRun(string(task.Stage), outcome, time.Since(start).Seconds())

	return err
}

// enterStage moves the project into the stage's working status. A
// project already in the working status is a re-entry (redelivered or
// re-enqueued task) and proceeds; any other status not in from is a
// stale trigger and the stage is skipped.
func (o *Orchestrator) enterStage(
	ctx context.Context,
	project *domain.Project,
	from []domain.Status,
	working domain.Status,
	message string,
) (bool, error) {
	if project.Status == working {
		return true, nil
	}

	for _, candidate := range from {
		if project.Status != candidate {
			continue
		}

		err := o.projects.UpdateStatus(ctx, project.ID, candidate, working, message)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				// Lost the race to a concurrent trigger.
				return false, nil
			}
			return false, err
		}

		project.Status = working
		return true, nil
	}

	o.log.Info("skipping stale stage trigger",
		"project_id", project.ID, "status", string(project.Status), "stage_status", string(working))

	return false, nil
}

// advance transitions the project out of a completed stage and enqueues
// the follow-up task.
func (o *Orchestrator) advance(
	ctx context.Context,
	projectID string,
	from, to domain.Status,
	message string,
	next domain.StageTask,
) error {
	if err := o.projects.UpdateStatus(ctx, projectID, from, to, message); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			o.log.Info("skipping stale stage completion",
				"project_id", projectID, "from", string(from), "to", string(to))
			return nil
		}
		return err
	}

	if next.Stage == "" {
		return nil
	}

	next.ProjectID = projectID
	if _, err := o.queue.Enqueue(ctx, next); err != nil {
		// The sweeper re-derives the lost task from the status.
		o.log.Error("failed to enqueue next stage",
			"project_id", projectID, "stage", string(next.Stage), "error", err)
	}

	return nil
}

// failStage terminates the pipeline with a diagnostic status message.
func (o *Orchestrator) failStage(
	ctx context.Context,
	projectID, message string,
	cause error,
) error {
	if err := o.projects.SetError(ctx, projectID, message); err != nil {
		return fmt.Errorf("failed to record pipeline error %q: %w", message, err)
	}

	o.metrics.RecordPipelineFinished("error")
	o.log.Warn("pipeline failed", "project_id", projectID, "message", message, "error", cause)

	if cause != nil {
		return fmt.Errorf("%s: %w", message, cause)
	}

	return errors.New(message)
}

// loadProject fetches the project and filters out triggers for finished
// pipelines. A missing project is also a no-op: the task may outlive a
// deleted row.
func (o *Orchestrator) loadProject(ctx context.Context, projectID string) (*domain.Project, error) {
	project, err := o.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, database.ErrProjectNotFound) {
			o.log.Warn("stage trigger for unknown project", "project_id", projectID)
			return nil, nil
		}
		return nil, err
	}

	if project.Status.Terminal() {
		o.log.Info("skipping trigger for finished pipeline",
			"project_id", projectID, "status", string(project.Status))
		return nil, nil
	}

	return project, nil
}
