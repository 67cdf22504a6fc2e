package tasks

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rankforge/crawlpipe/internal/domain"
	"github.com/rankforge/crawlpipe/internal/logger"
)

// sweepTimeout bounds one sweep pass.
const sweepTimeout = 30 * time.Second

// StalledLister finds projects whose pipeline has gone quiet.
type StalledLister interface {
	ListStalled(ctx context.Context, statuses []domain.Status, updatedBefore time.Time) ([]*domain.Project, error)
	SetError(ctx context.Context, id, message string) error
}

// Enqueuer appends a stage task to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task domain.StageTask) (string, error)
}

// Sweeper periodically re-enqueues projects stuck in an intermediate
// status past the stall window. Stalls whose stage can be re-derived
// from the status get a fresh task; stalls waiting on external input
// that never came are marked as errors.
type Sweeper struct {
	projects    StalledLister
	producer    Enqueuer
	stallWindow time.Duration
	schedule    string
	cron        *cron.Cron
	log         logger.Interface
}

// NewSweeper creates a new stalled pipeline sweeper.
func NewSweeper(
	projects StalledLister,
	producer Enqueuer,
	stallWindow time.Duration,
	schedule string,
	log logger.Interface,
) *Sweeper {
	return &Sweeper{
		projects:    projects,
		producer:    producer,
		stallWindow: stallWindow,
		schedule:    schedule,
		log:         log.WithComponent("sweeper"),
	}
}

// Start schedules the sweep on its cron expression.
func (s *Sweeper) Start() error {
	s.cron = cron.New()

	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("sweeper started", "schedule", s.schedule, "stall_window", s.stallWindow.String())

	return nil
}

// Stop halts the cron scheduler and waits for a running sweep.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// sweepStatuses are the intermediate statuses the sweeper watches.
var sweepStatuses = []domain.Status{
	domain.StatusQueued,
	domain.StatusDiscoveringSitemap,
	domain.StatusCrawlingPages,
	domain.StatusCrawling,
	domain.StatusProcessingCrawlResults,
	domain.StatusSemanticMapping,
	domain.StatusGapAnalysis,
}

// Sweep runs one pass over stalled projects.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.stallWindow)

	stalled, err := s.projects.ListStalled(ctx, sweepStatuses, cutoff)
	if err != nil {
		s.log.Error("failed to list stalled projects", "error", err)
		return
	}

	for _, project := range stalled {
		s.recover(ctx, project)
	}
}

// recover re-enqueues or errors out one stalled project.
func (s *Sweeper) recover(ctx context.Context, project *domain.Project) {
	log := s.log.With("project_id", project.ID, "status", string(project.Status))

	stage, ok := RecoveryStage(project.Status)
	if !ok {
		// Crawling and results processing carry state (run ID, dataset
		// ID) a fresh task cannot re-derive; a stall there means the
		// callback or the redelivery never arrived.
		if err := s.projects.SetError(ctx, project.ID,
			"pipeline stalled in "+string(project.Status)); err != nil {
			log.Error("failed to mark stalled project", "error", err)
			return
		}

		log.Warn("stalled project marked as error")
		return
	}

	if _, err := s.producer.Enqueue(ctx, domain.StageTask{
		ProjectID: project.ID,
		Stage:     stage,
	}); err != nil {
		log.Error("failed to re-enqueue stalled project", "error", err)
		return
	}

	log.Info("re-enqueued stalled project", "stage", string(stage))
}

// RecoveryStage maps a stalled status to the stage that resumes it.
// Statuses waiting on external input report ok=false.
func RecoveryStage(status domain.Status) (domain.Stage, bool) {
	switch status {
	case domain.StatusQueued, domain.StatusDiscoveringSitemap:
		return domain.StageDiscoverSitemap, true
	case domain.StatusCrawlingPages:
		return domain.StageDelegateCrawl, true
	case domain.StatusSemanticMapping:
		return domain.StageSemanticMapping, true
	case domain.StatusGapAnalysis:
		return domain.StageGapAnalysis, true
	default:
		return "", false
	}
}
