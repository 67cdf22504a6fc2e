package domain

import "fmt"

// Status is the pipeline state of a project. The status column on the
// projects table is the single source of truth for pipeline progress;
// every stage validates its transition against the table below before
// writing.
type Status string

// Pipeline states, in execution order.
const (
	StatusQueued                 Status = "queued"
	StatusDiscoveringSitemap     Status = "discovering_sitemap"
	StatusCrawlingPages          Status = "crawling_pages"
	StatusCrawling               Status = "crawling"
	StatusProcessingCrawlResults Status = "processing_crawl_results"
	StatusSemanticMapping        Status = "semantic_mapping"
	StatusGapAnalysis            Status = "gap_analysis"
	StatusComplete               Status = "complete"
	StatusError                  Status = "error"
)

// transitions is the allowed state transition table. crawling_pages is
// transient: when discovery yields zero queued pages the pipeline skips
// the external crawl and jumps straight to processing_crawl_results.
var transitions = map[Status][]Status{
	StatusQueued:                 {StatusDiscoveringSitemap},
	StatusDiscoveringSitemap:     {StatusCrawlingPages},
	StatusCrawlingPages:          {StatusCrawling, StatusProcessingCrawlResults},
	StatusCrawling:               {StatusProcessingCrawlResults},
	StatusProcessingCrawlResults: {StatusSemanticMapping},
	StatusSemanticMapping:        {StatusGapAnalysis},
	StatusGapAnalysis:            {StatusComplete},
	StatusComplete:               {},
	StatusError:                  {},
}

// ErrInvalidTransition is returned when a stage attempts a state change
// the transition table does not allow.
var ErrInvalidTransition = fmt.Errorf("invalid pipeline transition")

// Valid reports whether s is a known pipeline status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether the pipeline has finished for this project.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// CanTransition reports whether moving from s to next is allowed.
// error is reachable from every non-terminal state.
func (s Status) CanTransition(next Status) bool {
	if next == StatusError {
		return !s.Terminal()
	}

	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// Transition validates the move from s to next and returns next, or
// ErrInvalidTransition with both states named.
func (s Status) Transition(next Status) (Status, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}

	return next, nil
}
