package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrCredentialNotFound is returned when a user has no stored crawler
// credential.
var ErrCredentialNotFound = errors.New("crawler credential not found")

// CredentialRepository handles storage of per-user encrypted crawler
// tokens. Values are opaque envelopes; encryption happens above this
// layer.
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository creates a new credential repository.
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Upsert stores or replaces the user's encrypted crawler token.
func (r *CredentialRepository) Upsert(ctx context.Context, userID, encryptedToken string) error {
	query := `
		INSERT INTO user_credentials (user_id, crawler_token, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			crawler_token = EXCLUDED.crawler_token,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, userID, encryptedToken)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	return nil
}

// GetCrawlerToken returns the user's encrypted crawler token.
func (r *CredentialRepository) GetCrawlerToken(ctx context.Context, userID string) (string, error) {
	var token string
	query := `SELECT crawler_token FROM user_credentials WHERE user_id = $1`

	err := r.db.GetContext(ctx, &token, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: user %s", ErrCredentialNotFound, userID)
		}
		return "", fmt.Errorf("failed to get credential: %w", err)
	}

	if token == "" {
		return "", fmt.Errorf("%w: user %s", ErrCredentialNotFound, userID)
	}

	return token, nil
}
