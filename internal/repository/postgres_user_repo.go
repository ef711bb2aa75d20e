package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
)

// uniqueViolation is the SQLSTATE Postgres reports for a UNIQUE conflict.
const uniqueViolation = "23505"

// PostgresUserRepo implements domain.UserRepository using PostgreSQL.
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo creates a new repository instance.
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// We join with 'roles' to get the role name directly, avoiding N+1 queries.
const selectUser = `
		SELECT u.id, u.email, u.password_hash, u.name, r.name,
		       COALESCE(u.phone_number, ''), COALESCE(u.address, ''), COALESCE(u.blood_type, ''),
		       u.last_donation, u.mfa_enabled, COALESCE(u.mfa_secret, ''), u.created_at, u.updated_at
		FROM users u
		JOIN roles r ON u.role_id = r.id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var lastDonation sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.PhoneNumber,
		&user.Address,
		&user.BloodType,
		&lastDonation,
		&user.MFAEnabled,
		&user.MFASecret,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastDonation.Valid {
		t := lastDonation.Time
		user.LastDonation = &t
	}
	return user, nil
}

// GetByEmail retrieves a user by their email address.
func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, selectUser+"WHERE u.email = $1", email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by their UUID.
func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, selectUser+"WHERE u.id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return user, nil
}

// List returns one page of users ordered by creation time, plus the number of matches.
func (r *PostgresUserRepo) List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, int, error) {
	filter = filter.Normalize()

	var (
		conds []string
		args  []any
	)
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		conds = append(conds, fmt.Sprintf("r.name = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		conds = append(conds, fmt.Sprintf("(u.email ILIKE $%d OR u.name ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ") + "\n"
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM users u JOIN roles r ON u.role_id = r.id\n" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("database error: %w", err)
	}
	if total == 0 {
		return []*domain.User{}, 0, nil
	}

	args = append(args, filter.PageSize, filter.Offset())
	query := selectUser + where + fmt.Sprintf("ORDER BY u.created_at, u.email LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0, filter.PageSize)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("database error: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database error: %w", err)
	}
	return users, total, nil
}

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Create inserts a new user. The UNIQUE constraint on email is the final
// arbiter of concurrent registrations and surfaces as domain.ErrEmailTaken.
func (r *PostgresUserRepo) Create(ctx context.Context, user *domain.User) error {
	// 1. Resolve Role Name to ID
	var roleID int
	err := r.db.QueryRowContext(ctx, "SELECT id FROM roles WHERE name = $1", string(user.Role)).Scan(&roleID)
	if err != nil {
		return fmt.Errorf("role '%s' not found: %w", user.Role, err)
	}

	// 2. Insert User
	query := `
		INSERT INTO users (id, email, password_hash, name, role_id, phone_number, address, blood_type,
		                   last_donation, mfa_enabled, mfa_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		roleID,
		nullString(user.PhoneNumber),
		nullString(user.Address),
		nullString(user.BloodType),
		nullTime(user.LastDonation),
		user.MFAEnabled,
		nullString(user.MFASecret),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// Update persists the mutable columns. Email and role are never written here.
func (r *PostgresUserRepo) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET password_hash = $1, name = $2, phone_number = $3, address = $4, blood_type = $5,
		    last_donation = $6, mfa_enabled = $7, mfa_secret = $8, updated_at = $9
		WHERE id = $10
	`

	user.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		user.PasswordHash,
		user.Name,
		nullString(user.PhoneNumber),
		nullString(user.Address),
		nullString(user.BloodType),
		nullTime(user.LastDonation),
		user.MFAEnabled,
		nullString(user.MFASecret),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// UpdateRole reassigns the role of an existing user.
func (r *PostgresUserRepo) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	query := `
		UPDATE users
		SET role_id = (SELECT id FROM roles WHERE name = $1), updated_at = $2
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, string(role), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
