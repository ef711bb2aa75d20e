package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
)

// PostgresAuditRepo implements domain.AuditLog on the audit_logs table.
type PostgresAuditRepo struct {
	db *sql.DB
}

// NewPostgresAuditRepo creates a new repository instance.
func NewPostgresAuditRepo(db *sql.DB) *PostgresAuditRepo {
	return &PostgresAuditRepo{db: db}
}

// Append inserts an immutable record into the audit_logs table.
func (r *PostgresAuditRepo) Append(ctx context.Context, entry domain.AuditEntry) error {
	metaJSON := []byte("{}")
	if len(entry.Metadata) > 0 {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
		metaJSON = b
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_logs (user_id, category, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	// The schema allows user_id to be NULL (e.g. system events).
	_, err := r.db.ExecContext(ctx, query, nullString(entry.ActorID), string(entry.Category), entry.Message, metaJSON, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}
