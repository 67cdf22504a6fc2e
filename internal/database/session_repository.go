package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rankforge/crawlpipe/internal/domain"
)

// ErrSessionNotFound is returned when no crawl session matches the run
// ID. The webhook handler treats this as a recoverable no-op.
var ErrSessionNotFound = errors.New("crawl session not found")

// SessionRepository handles database operations for crawl sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new crawl session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a new crawl session keyed by the external run ID.
func (r *SessionRepository) Create(ctx context.Context, session *domain.CrawlSession) error {
	query := `
		INSERT INTO crawl_sessions (run_id, project_id, domain, status, status_message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		session.RunID, session.ProjectID, session.Domain,
		session.Status, session.StatusMessage,
	).Scan(&session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create crawl session: %w", err)
	}

	return nil
}

// GetByRunID resolves an external run identifier to its session.
func (r *SessionRepository) GetByRunID(ctx context.Context, runID string) (*domain.CrawlSession, error) {
	var session domain.CrawlSession
	query := `
		SELECT run_id, project_id, domain, status, status_message, finished_at, created_at
		FROM crawl_sessions
		WHERE run_id = $1
	`

	err := r.db.GetContext(ctx, &session, query, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get crawl session: %w", err)
	}

	return &session, nil
}

// UpdateOutcome records the run outcome reported by the webhook.
func (r *SessionRepository) UpdateOutcome(
	ctx context.Context,
	runID, status, message string,
	finishedAt *time.Time,
) error {
	query := `
		UPDATE crawl_sessions
		SET status = $1, status_message = $2, finished_at = $3
		WHERE run_id = $4
	`

	_, err := r.db.ExecContext(ctx, query, status, message, finishedAt, runID)
	if err != nil {
		return fmt.Errorf("failed to update crawl session: %w", err)
	}

	return nil
}
