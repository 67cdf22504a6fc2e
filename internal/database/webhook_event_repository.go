package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// WebhookEventRepository records processed webhook deliveries for
// idempotency under the external service's at-least-once retry policy.
type WebhookEventRepository struct {
	db *sqlx.DB
}

// NewWebhookEventRepository creates a new webhook event repository.
func NewWebhookEventRepository(db *sqlx.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// RecordDelivery marks a (run, event type) delivery as processed.
// Returns true on first delivery; false when the same delivery was seen
// before, in which case the caller must not act on it again.
func (r *WebhookEventRepository) RecordDelivery(
	ctx context.Context,
	runID, eventType string,
) (bool, error) {
	query := `
		INSERT INTO crawl_webhook_events (run_id, event_type, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (run_id, event_type) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, runID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook delivery: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}
