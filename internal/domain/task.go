package domain

import "time"

// Stage identifies one independently invocable unit of pipeline work.
type Stage string

// Pipeline stages dispatched through the task queue.
const (
	StageDiscoverSitemap Stage = "discover_sitemap"
	StageDelegateCrawl   Stage = "delegate_crawl"
	StageProcessResults  Stage = "process_results"
	StageSemanticMapping Stage = "semantic_mapping"
	StageGapAnalysis     Stage = "gap_analysis"
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageDiscoverSitemap, StageDelegateCrawl, StageProcessResults,
		StageSemanticMapping, StageGapAnalysis:
		return true
	default:
		return false
	}
}

// StageTask is one durable trigger for a pipeline stage. Tasks cross the
// Redis Streams queue with at-least-once delivery; consumers rely on the
// stages' own idempotence rather than exactly-once semantics.
type StageTask struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Stage      Stage     `json:"stage"`
	DatasetID  string    `json:"dataset_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
