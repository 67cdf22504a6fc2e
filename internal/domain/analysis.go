package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// TermWeight is one term in the site-wide topic map with its aggregate
// occurrence count across extracted page texts.
type TermWeight struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// TopicMap is the output of the semantic mapping stage.
type TopicMap struct {
	Terms      []TermWeight `json:"terms"`
	PageCount  int          `json:"page_count"`
	TotalWords int          `json:"total_words"`
}

// KeywordCoverage is the output of the gap analysis stage: which of the
// project's target keywords the site's content already covers.
type KeywordCoverage struct {
	Covered       []string `json:"covered"`
	Missing       []string `json:"missing"`
	CoverageRatio float64  `json:"coverage_ratio"`
}

// AnalysisResult is the final report persisted on the project. Semantic
// mapping fills TopicMap; gap analysis fills Coverage and marks the
// project complete.
type AnalysisResult struct {
	TopicMap *TopicMap        `json:"topic_map,omitempty"`
	Coverage *KeywordCoverage `json:"coverage,omitempty"`
}

// Scan implements sql.Scanner for the analysis_result JSONB column.
func (a *AnalysisResult) Scan(value any) error {
	if value == nil {
		*a = AnalysisResult{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for AnalysisResult")
	}

	if len(data) == 0 {
		*a = AnalysisResult{}
		return nil
	}

	return json.Unmarshal(data, a)
}

// Value implements driver.Valuer for JSONB storage.
func (a *AnalysisResult) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}

	return json.Marshal(a)
}
