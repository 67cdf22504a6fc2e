package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rankforge/crawlpipe/internal/domain"
)

// SemanticMapping builds the site-wide topic map from the extracted
// page texts and persists it as the first half of the analysis report.
func (o *Orchestrator) SemanticMapping(ctx context.Context, projectID string) error {
	project, err := o.loadProject(ctx, projectID)
	if err != nil || project == nil {
		return err
	}

	if project.Status != domain.StatusSemanticMapping {
		o.log.Info("skipping stale semantic mapping trigger",
			"project_id", projectID, "status", string(project.Status))
		return nil
	}

	texts, err := o.pages.ListCrawledTexts(ctx, projectID)
	if err != nil {
		return o.failStage(ctx, projectID, "failed to load extracted texts", err)
	}

	topicMap := BuildTopicMap(texts)

	result := project.AnalysisResult
	if result == nil {
		result = &domain.AnalysisResult{}
	}
	result.TopicMap = topicMap

	if err := o.projects.SetAnalysisResult(ctx, projectID, result); err != nil {
		return o.failStage(ctx, projectID, "failed to persist topic map", err)
	}

	o.log.Info("semantic map built",
		"project_id", projectID, "terms", len(topicMap.Terms), "pages", topicMap.PageCount)

	return o.advance(ctx, projectID,
		domain.StatusSemanticMapping, domain.StatusGapAnalysis,
		"analyzing keyword coverage",
		domain.StageTask{Stage: domain.StageGapAnalysis})
}

// GapAnalysis compares the project's target keywords against the site's
// extracted content and completes the pipeline with the final report.
func (o *Orchestrator) GapAnalysis(ctx context.Context, projectID string) error {
	project, err := o.loadProject(ctx, projectID)
	if err != nil || project == nil {
		return err
	}

	if project.Status != domain.StatusGapAnalysis {
		o.log.Info("skipping stale gap analysis trigger",
			"project_id", projectID, "status", string(project.Status))
		return nil
	}

	texts, err := o.pages.ListCrawledTexts(ctx, projectID)
	if err != nil {
		return o.failStage(ctx, projectID, "failed to load extracted texts", err)
	}

	coverage := BuildKeywordCoverage(project.Keywords, texts)

	result := project.AnalysisResult
	if result == nil {
		result = &domain.AnalysisResult{}
	}
	result.Coverage = coverage

	if err := o.projects.SetAnalysisResult(ctx, projectID, result); err != nil {
		return o.failStage(ctx, projectID, "failed to persist coverage report", err)
	}

	message := fmt.Sprintf("analysis complete: %d of %d keywords covered",
		len(coverage.Covered), len(coverage.Covered)+len(coverage.Missing))

	if err := o.projects.UpdateStatus(ctx, projectID,
		domain.StatusGapAnalysis, domain.StatusComplete, message); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil
		}
		return err
	}

	o.metrics.RecordPipelineFinished("complete")
	o.log.Info("pipeline complete",
		"project_id", projectID,
		"covered", len(coverage.Covered), "missing", len(coverage.Missing))

	return nil
}
