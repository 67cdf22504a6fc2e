package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rankforge/crawlpipe/internal/database"
	"github.com/rankforge/crawlpipe/internal/domain"
)

// Webhook ignore reasons, reported in the acknowledgement message and
// metrics.
const (
	ignoreUnknownRun = "unknown_run"
	ignoreDuplicate  = "duplicate"
)

// HandleCrawlEvent processes one crawl outcome webhook. The returned
// message is informational only; the transport layer acknowledges every
// delivery with HTTP 200 regardless, since the external service retries
// on anything else and every retry is already covered by the dedup
// record. Unknown runs are acknowledged without effect.
func (o *Orchestrator) HandleCrawlEvent(ctx context.Context, event *domain.CrawlRunEvent) (string, error) {
	runID := event.Resource.ID
	o.metrics.RecordWebhookReceived(event.EventType)

	log := o.log.With("run_id", runID, "event_type", event.EventType)

	session, err := o.sessions.GetByRunID(ctx, runID)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			o.metrics.RecordWebhookIgnored(ignoreUnknownRun)
			log.Warn("webhook for unknown crawl run")
			return "unknown run", nil
		}
		return "", fmt.Errorf("failed to resolve crawl run: %w", err)
	}

	first, err := o.events.RecordDelivery(ctx, runID, event.EventType)
	if err != nil {
		return "", fmt.Errorf("failed to record webhook delivery: %w", err)
	}

	if !first {
		o.metrics.RecordWebhookIgnored(ignoreDuplicate)
		log.Info("duplicate webhook delivery acknowledged")
		return "already processed", nil
	}

	if err := o.sessions.UpdateOutcome(ctx, runID,
		event.Resource.Status, event.EventType, parseFinishedAt(event.Resource.FinishedAt)); err != nil {
		return "", err
	}

	if !event.Succeeded() {
		log.Warn("crawl run did not succeed", "status", event.Resource.Status)
		if err := o.terminate(ctx, session.ProjectID,
			"crawl run "+runID+" ended with "+event.EventType); err != nil {
			return "", err
		}
		return "crawl failure recorded", nil
	}

	datasetID := event.Resource.DefaultDatasetID
	if datasetID == "" {
		if err := o.terminate(ctx, session.ProjectID,
			"crawl run "+runID+" succeeded without a dataset"); err != nil {
			return "", err
		}
		return "missing dataset recorded", nil
	}

	// Move the read model forward at receipt; the aggregator task then
	// re-enters the processing status it finds itself in.
	if err := o.advance(ctx, session.ProjectID,
		domain.StatusCrawling, domain.StatusProcessingCrawlResults,
		"crawl run "+runID+" finished, processing results",
		domain.StageTask{
			Stage:     domain.StageProcessResults,
			DatasetID: datasetID,
		}); err != nil {
		return "", err
	}

	log.Info("crawl outcome accepted",
		"project_id", session.ProjectID, "dataset_id", datasetID)

	return "", nil
}

// terminate errors out the project's pipeline from webhook context,
// where the failure is the expected handling outcome rather than a
// handler error.
func (o *Orchestrator) terminate(ctx context.Context, projectID, message string) error {
	if err := o.projects.SetError(ctx, projectID, message); err != nil {
		return fmt.Errorf("failed to record pipeline error %q: %w", message, err)
	}

	o.metrics.RecordPipelineFinished("error")
	o.log.Warn("pipeline failed", "project_id", projectID, "message", message)

	return nil
}

// parseFinishedAt parses the service's completion timestamp, tolerating
// absence and format drift.
func parseFinishedAt(raw string) *time.Time {
	if raw == "" {
		return nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}

	return nil
}
