package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
)

var userColumns = []string{
	"id", "email", "password_hash", "name", "role", "phone_number", "address", "blood_type",
	"last_donation", "mfa_enabled", "mfa_secret", "created_at", "updated_at",
}

func newUserRepoWithMock(t *testing.T) (*PostgresUserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresUserRepo(db), mock
}

func TestPostgresUserRepo_GetByEmail_Found(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now().UTC()
	donated := now.Add(-48 * time.Hour)

	mock.ExpectQuery(`(?s)SELECT .*FROM users u\s+JOIN roles r ON u.role_id = r.id\s+WHERE u.email = \$1`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u-1", "a@x.com", "$argon2id$hash", "Alice", "donor", "+123", "Main St", "O+", donated, false, "", now, now))

	user, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, domain.RoleDonor, user.Role)
	assert.Equal(t, "O+", user.BloodType)
	require.NotNil(t, user.LastDonation)
	assert.True(t, donated.Equal(*user.LastDonation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepo_GetByID_NotFound(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .*WHERE u.id = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresUserRepo_GetByID_DBError(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .*WHERE u.id = \$1`).
		WithArgs("u-1").
		WillReturnError(errors.New("db down"))

	_, err := repo.GetByID(context.Background(), "u-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "database error: db down")
}

func TestPostgresUserRepo_Create(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`SELECT id FROM roles WHERE name = \$1`).
		WithArgs("donor").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectExec(`(?s)INSERT INTO users`).
		WithArgs("u-1", "a@x.com", "hash", "Alice", 3,
			sql.NullString{}, sql.NullString{}, sql.NullString{String: "A+", Valid: true},
			sql.NullTime{}, false, sql.NullString{}, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &domain.User{ID: "u-1", Email: "a@x.com", PasswordHash: "hash", Name: "Alice", Role: domain.RoleDonor, BloodType: "A+"}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepo_Create_UniqueViolation(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`SELECT id FROM roles WHERE name = \$1`).
		WithArgs("donor").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectExec(`(?s)INSERT INTO users`).
		WillReturnError(&pq.Error{Code: uniqueViolation, Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), &domain.User{ID: "u-2", Email: "a@x.com", Role: domain.RoleDonor})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestPostgresUserRepo_Create_UnknownRole(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`SELECT id FROM roles WHERE name = \$1`).
		WithArgs("pilot").
		WillReturnError(sql.ErrNoRows)

	err := repo.Create(context.Background(), &domain.User{ID: "u-3", Email: "p@x.com", Role: "pilot"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role 'pilot' not found")
}

func TestPostgresUserRepo_Update(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`(?s)UPDATE users\s+SET password_hash = \$1, name = \$2`).
		WithArgs("hash", "Alice B", sql.NullString{String: "+1", Valid: true}, sql.NullString{}, sql.NullString{},
			sql.NullTime{}, false, sql.NullString{}, sqlmock.AnyArg(), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &domain.User{ID: "u-1", PasswordHash: "hash", Name: "Alice B", PhoneNumber: "+1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepo_Update_NotFound(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`(?s)UPDATE users`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &domain.User{ID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresUserRepo_List(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users u`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`(?s)SELECT .*ORDER BY u.created_at, u.email LIMIT \$1 OFFSET \$2`).
		WithArgs(domain.DefaultPageSize, 0).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u-1", "a@x.com", "h", "Alice", "admin", "", "", "", nil, false, "", now, now).
			AddRow("u-2", "b@x.com", "h", "Bob", "recipient", "", "", "B-", nil, true, "SECRET", now, now))

	users, total, err := repo.List(context.Background(), domain.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, users, 2)
	assert.Equal(t, domain.RoleAdmin, users[0].Role)
	assert.Nil(t, users[0].LastDonation)
	assert.True(t, users[1].MFAEnabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepo_ListFiltered(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) .*WHERE r.name = \$1 AND \(u.email ILIKE \$2 OR u.name ILIKE \$2\)`).
		WithArgs("donor", `%50\%\_off%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(`(?s)SELECT .*WHERE r.name = \$1 .*LIMIT \$3 OFFSET \$4`).
		WithArgs("donor", `%50\%\_off%`, 5, 10).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u-11", "k@x.com", "h", "50%_off", "donor", "", "", "", nil, false, "", now, now))

	users, total, err := repo.List(context.Background(), domain.UserFilter{
		Role:     domain.RoleDonor,
		Search:   " 50%_off ",
		Page:     3,
		PageSize: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, users, 1)
	assert.Equal(t, "u-11", users[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepo_ListEmptySkipsSelect(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users u`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	users, total, err := repo.List(context.Background(), domain.UserFilter{Role: domain.RoleStaff})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepo_UpdateRole(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`(?s)UPDATE users\s+SET role_id = \(SELECT id FROM roles WHERE name = \$1\)`).
		WithArgs("staff", sqlmock.AnyArg(), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateRole(context.Background(), "u-1", domain.RoleStaff))

	mock.ExpectExec(`UPDATE users`).
		WithArgs("staff", sqlmock.AnyArg(), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateRole(context.Background(), "ghost", domain.RoleStaff), domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
