package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
)

func TestPostgresAuditRepo_Append(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresAuditRepo(db)

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)INSERT INTO audit_logs \(user_id, category, message, metadata, created_at\)`).
		WithArgs(sql.NullString{String: "u-1", Valid: true}, "auth", "User logged in: a@x.com", []byte(`{"role":"donor"}`), ts).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Append(context.Background(), domain.AuditEntry{
		Category:  domain.AuditAuth,
		Message:   "User logged in: a@x.com",
		ActorID:   "u-1",
		Metadata:  map[string]any{"role": "donor"},
		Timestamp: ts,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAuditRepo_AppendAnonymous(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresAuditRepo(db)

	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(sql.NullString{}, "system", "seed", []byte("{}"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Append(context.Background(), domain.AuditEntry{Category: domain.AuditSystem, Message: "seed"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAuditRepo_AppendError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresAuditRepo(db)

	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnError(errors.New("disk full"))

	err = repo.Append(context.Background(), domain.AuditEntry{Category: domain.AuditAuth, Message: "x"})
	assert.ErrorContains(t, err, "disk full")
}

func TestMemoryAuditRepo(t *testing.T) {
	repo := NewMemoryAuditRepo()
	meta := map[string]any{"role": "donor"}

	require.NoError(t, repo.Append(context.Background(), domain.AuditEntry{Category: domain.AuditAuth, Message: "one", Metadata: meta}))
	meta["role"] = "admin"

	entries := repo.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "donor", entries[0].Metadata["role"], "stored entries are immutable")
	assert.False(t, entries[0].Timestamp.IsZero())
}
