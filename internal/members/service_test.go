package members

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/libris-app/libris-backend/pkg/config"
	"github.com/libris-app/libris-backend/pkg/db/models"
	"github.com/libris-app/libris-backend/pkg/enums"
	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
	"github.com/libris-app/libris-backend/pkg/pagination"
	"github.com/libris-app/libris-backend/pkg/security"
)

func setupMembersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:members_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'reader',
  phone TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(users).Error)
	return db
}

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     8,
		ArgonKeyLen:      16,
	}
}

func newTestService(t *testing.T) Service {
	t.Helper()
	db := setupMembersTestDB(t)
	svc, err := NewService(NewRepository(db), testPasswordConfig())
	require.NoError(t, err)
	return svc
}

func TestCreateUserWithPassword(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	result, err := svc.Create(ctx, CreateUserInput{
		Name:     "Anna Kowalska",
		Email:    "Anna@Example.COM",
		Password: "s3cret-password",
		Role:     enums.UserRoleReader,
	})
	require.NoError(t, err)
	assert.Empty(t, result.TempPassword)
	assert.Equal(t, "anna@example.com", result.User.Email)
	assert.True(t, result.User.IsActive)

	ok, err := security.VerifyPassword("s3cret-password", result.User.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateUserGeneratesTempPassword(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Create(context.Background(), CreateUserInput{
		Name:  "Jan Nowak",
		Email: "jan@example.com",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.TempPassword)
	assert.Equal(t, enums.UserRoleReader, result.User.Role)

	ok, err := security.VerifyPassword(result.TempPassword, result.User.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateUserInput{Name: "first", Email: "dup@example.com", Password: "pw-one-long"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateUserInput{Name: "second", Email: "dup@example.com", Password: "pw-two-long"})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Create(context.Background(), CreateUserInput{
		Name:  "x",
		Email: "x@example.com",
		Role:  enums.UserRole("librarian"),
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateAndDeactivateUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	result, err := svc.Create(ctx, CreateUserInput{Name: "Maria", Email: "maria@example.com", Password: "pw-long-enough"})
	require.NoError(t, err)
	id := result.User.ID

	admin := enums.UserRoleAdmin
	updated, err := svc.Update(ctx, id, UpdateUserInput{Role: &admin})
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleAdmin, updated.Role)

	require.NoError(t, svc.Deactivate(ctx, id))
	loaded, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, loaded.IsActive)
}

func TestGetByIDNotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetByID(context.Background(), uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestListRoster(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, in := range []CreateUserInput{
		{Name: "Reader One", Email: "r1@example.com", Password: "pw-long-enough"},
		{Name: "Reader Two", Email: "r2@example.com", Password: "pw-long-enough"},
		{Name: "Head Librarian", Email: "admin@example.com", Password: "pw-long-enough", Role: enums.UserRoleAdmin},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, ListUsersInput{Filters: ListUsersFilters{Role: "admin"}})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "Head Librarian", page.Users[0].Name)

	page, err = svc.List(ctx, ListUsersInput{Filters: ListUsersFilters{Query: "reader"}})
	require.NoError(t, err)
	assert.Len(t, page.Users, 2)

	page, err = svc.List(ctx, ListUsersInput{Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, page.Users, 2)
	assert.NotEmpty(t, page.NextCursor)
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestCreatePersistsInactiveUser(t *testing.T) {
	db := setupMembersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	user := &models.User{
		ID:           uuid.New(),
		Name:         "Dormant Reader",
		Email:        "dormant@example.com",
		PasswordHash: "hash",
		Role:         enums.UserRoleReader,
		IsActive:     false,
	}
	require.NoError(t, repo.Create(ctx, user))

	loaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, loaded.IsActive, "inactive flag must round-trip, not fall back to a column default")
}
