package domain

// Crawl run event classifications delivered by the external crawling
// service. Anything other than the succeeded classification terminates
// the pipeline for the run's project.
const (
	RunEventSucceeded = "ACTOR.RUN.SUCCEEDED"
	RunEventFailed    = "ACTOR.RUN.FAILED"
	RunEventTimedOut  = "ACTOR.RUN.TIMED_OUT"
	RunEventAborted   = "ACTOR.RUN.ABORTED"
)

// CrawlRunEvent is the inbound webhook payload reporting the outcome of
// an external crawl run.
type CrawlRunEvent struct {
	EventType string           `json:"eventType"`
	Resource  CrawlRunResource `json:"resource"`
}

// CrawlRunResource describes the run the event refers to. The run ID is
// the correlation key back to a CrawlSession; DefaultDatasetID is only
// present on success.
type CrawlRunResource struct {
	ID               string          `json:"id"`
	Status           string          `json:"status"`
	FinishedAt       string          `json:"finishedAt"`
	DefaultDatasetID string          `json:"defaultDatasetId,omitempty"`
	Output           *CrawlRunOutput `json:"output,omitempty"`
}

// CrawlRunOutput carries run summary counters.
type CrawlRunOutput struct {
	ItemsCount int `json:"itemsCount"`
}

// Succeeded reports whether the event carries a success classification.
func (e *CrawlRunEvent) Succeeded() bool {
	return e.EventType == RunEventSucceeded
}
