package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/rankforge/crawlpipe/internal/domain"
)

func TestUpdateStatus_GuardsExpectedCurrentStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db)

	mock.ExpectExec("UPDATE projects").
		WithArgs(
			string(domain.StatusDiscoveringSitemap),
			"Discovering sitemap",
			testProjectID,
			string(domain.StatusQueued),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(
		context.Background(), testProjectID,
		domain.StatusQueued, domain.StatusDiscoveringSitemap,
		"Discovering sitemap",
	)
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_StaleInvocationRejected(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db)

	// Another invocation already advanced the project; the guarded
	// UPDATE matches no rows.
	mock.ExpectExec("UPDATE projects").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(
		context.Background(), testProjectID,
		domain.StatusQueued, domain.StatusDiscoveringSitemap,
		"Discovering sitemap",
	)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	require.NoError(t, mock.ExpectationsWereMet())
}
