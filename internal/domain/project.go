// Package domain provides domain models used across the application.
package domain

import (
	"time"

	"github.com/lib/pq"
)

// Project is one site under analysis. It is owned by a user and mutated
// exclusively by pipeline stages and the user-facing cancel action.
type Project struct {
	ID             string          `db:"id"              json:"id"`
	UserID         string          `db:"user_id"         json:"user_id"`
	Domain         string          `db:"domain"          json:"domain"`
	Keywords       pq.StringArray  `db:"keywords"        json:"keywords"`
	Status         Status          `db:"status"          json:"status"`
	StatusMessage  string          `db:"status_message"  json:"status_message"`
	AnalysisResult *AnalysisResult `db:"analysis_result" json:"analysis_result"`
	CreatedAt      time.Time       `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"      json:"updated_at"`
}

// StatusView is the read model consumed by the dashboard.
type StatusView struct {
	Status         Status          `json:"status"`
	StatusMessage  string          `json:"status_message"`
	AnalysisResult *AnalysisResult `json:"analysis_result"`
}

// View returns the user-facing status projection of the project.
func (p *Project) View() StatusView {
	return StatusView{
		Status:         p.Status,
		StatusMessage:  p.StatusMessage,
		AnalysisResult: p.AnalysisResult,
	}
}
