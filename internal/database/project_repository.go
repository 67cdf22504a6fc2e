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

// ErrProjectNotFound is returned when no project matches the given ID.
var ErrProjectNotFound = errors.New("project not found")

// projectColumns lists the columns selected for project reads.
const projectColumns = `id, user_id, domain, keywords, status, status_message,
	analysis_result, created_at, updated_at`

// ProjectRepository handles database operations for projects.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project.
func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	query := `
		INSERT INTO projects (id, user_id, domain, keywords, status, status_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		project.ID, project.UserID, project.Domain, project.Keywords,
		project.Status, project.StatusMessage,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetByID retrieves a project by its ID.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var project domain.Project
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	err := r.db.GetContext(ctx, &project, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// UpdateStatus transitions the project's pipeline status and message.
// The WHERE clause pins the expected current status so a stale stage
// invocation cannot clobber a state written by a newer one; callers must
// validate the transition against the domain table first.
func (r *ProjectRepository) UpdateStatus(
	ctx context.Context,
	id string,
	from, to domain.Status,
	message string,
) error {
	query := `
		UPDATE projects
		SET status = $1, status_message = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query, to, message, id, from)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s -> %s for project %s",
			domain.ErrInvalidTransition, from, to, id)
	}

	return nil
}

// ErrAnalysisInProgress is returned when an analysis is requested for a
// project whose pipeline is already running.
var ErrAnalysisInProgress = errors.New("analysis already in progress")

// ResetForAnalysis queues the project for a fresh pipeline run. Only
// idle projects qualify; a running pipeline is never clobbered.
func (r *ProjectRepository) ResetForAnalysis(ctx context.Context, id string) error {
	query := `
		UPDATE projects
		SET status = $1, status_message = 'queued for analysis', updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4, $5)
	`

	result, err := r.db.ExecContext(ctx, query,
		domain.StatusQueued, id,
		domain.StatusQueued, domain.StatusComplete, domain.StatusError)
	if err != nil {
		return fmt.Errorf("failed to queue project for analysis: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: project %s", ErrAnalysisInProgress, id)
	}

	return nil
}

// SetError moves the project to the error state with a diagnostic
// message. It succeeds from any non-terminal state.
func (r *ProjectRepository) SetError(ctx context.Context, id, message string) error {
	query := `
		UPDATE projects
		SET status = $1, status_message = $2, updated_at = NOW()
		WHERE id = $3 AND status NOT IN ($4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		domain.StatusError, message, id, domain.StatusComplete, domain.StatusError)
	if err != nil {
		return fmt.Errorf("failed to set project error: %w", err)
	}

	return nil
}

// SetAnalysisResult persists the (partial or final) analysis report.
func (r *ProjectRepository) SetAnalysisResult(
	ctx context.Context,
	id string,
	result *domain.AnalysisResult,
) error {
	query := `UPDATE projects SET analysis_result = $1, updated_at = NOW() WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, result, id)
	if err != nil {
		return fmt.Errorf("failed to set analysis result: %w", err)
	}

	return nil
}

// ListStalled returns projects stuck in one of the given statuses whose
// last update is older than the cutoff. Used by the sweeper to re-enqueue
// silently stalled pipelines.
func (r *ProjectRepository) ListStalled(
	ctx context.Context,
	statuses []domain.Status,
	updatedBefore time.Time,
) ([]*domain.Project, error) {
	query, args, err := sqlx.In(`
		SELECT `+projectColumns+`
		FROM projects
		WHERE status IN (?) AND updated_at < ?
		ORDER BY updated_at ASC
	`, statuses, updatedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to build stalled query: %w", err)
	}

	var projects []*domain.Project
	if selectErr := r.db.SelectContext(ctx, &projects, r.db.Rebind(query), args...); selectErr != nil {
		return nil, fmt.Errorf("failed to list stalled projects: %w", selectErr)
	}

	return projects, nil
}
