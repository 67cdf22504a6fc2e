package domain

import "time"

// CrawlSession correlates one external crawling run to a project. The
// primary key is the run identifier the external service echoes back in
// its completion webhook; it is the only correlation key available when
// the callback arrives. Only the webhook handler updates a session after
// creation.
type CrawlSession struct {
	RunID         string     `db:"run_id"         json:"run_id"`
	ProjectID     string     `db:"project_id"     json:"project_id"`
	Domain        string     `db:"domain"         json:"domain"`
	Status        string     `db:"status"         json:"status"`
	StatusMessage string     `db:"status_message" json:"status_message"`
	FinishedAt    *time.Time `db:"finished_at"    json:"finished_at"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
}
