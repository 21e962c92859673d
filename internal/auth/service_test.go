package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgAuth "github.com/libris-app/libris-backend/pkg/auth"
	"github.com/libris-app/libris-backend/pkg/config"
	"github.com/libris-app/libris-backend/pkg/db/models"
	"github.com/libris-app/libris-backend/pkg/enums"
	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
	"github.com/libris-app/libris-backend/pkg/security"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "test-secret-test-secret-test-secret",
	Issuer:            "libris-test",
	ExpirationMinutes: 15,
	SessionTTLMinutes: 60,
}

var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

type fakeUserRepo struct {
	byEmail   map[string]*models.User
	byID      map[uuid.UUID]*models.User
	lastLogin map[uuid.UUID]time.Time
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail:   map[string]*models.User{},
		byID:      map[uuid.UUID]*models.User{},
		lastLogin: map[uuid.UUID]time.Time{},
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byEmail[user.Email]; exists {
		return errUniqueEmail{}
	}
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.lastLogin[id] = at
	return nil
}

type errUniqueEmail struct{}

func (errUniqueEmail) Error() string { return "UNIQUE constraint failed: users.email" }

type fakeSessions struct {
	created map[string]uuid.UUID
	revoked []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{created: map[string]uuid.UUID{}}
}

func (f *fakeSessions) Create(ctx context.Context, tokenID string, userID uuid.UUID) error {
	f.created[tokenID] = userID
	return nil
}

func (f *fakeSessions) Revoke(ctx context.Context, tokenID string) error {
	f.revoked = append(f.revoked, tokenID)
	return nil
}

func newTestService(t *testing.T) (Service, *fakeUserRepo, *fakeSessions) {
	t.Helper()
	repo := newFakeUserRepo()
	sessions := newFakeSessions()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWTConfig,
		PasswordConfig: testPasswordConfig,
	})
	require.NoError(t, err)
	return svc, repo, sessions
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestRegisterCreatesReaderAndSignsIn(t *testing.T) {
	svc, repo, sessions := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Name:     "Anna Kowalska",
		Email:    "Anna@Example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.Equal(t, enums.UserRoleReader, resp.User.Role)
	assert.Equal(t, "anna@example.com", resp.User.Email)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Len(t, sessions.created, 1)

	stored := repo.byEmail["anna@example.com"]
	require.NotNil(t, stored)
	ok, err := security.VerifyPassword("correct horse battery", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.UserID)
	assert.Equal(t, enums.UserRoleReader, claims.Role)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@b.com", Password: "long enough"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Register(ctx, RegisterRequest{Name: "A", Password: "long enough"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Register(ctx, RegisterRequest{Name: "A", Email: "a@b.com", Password: "short"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	req := RegisterRequest{Name: "A", Email: "dup@example.com", Password: "long enough"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestLoginVerifiesCredentials(t *testing.T) {
	svc, repo, sessions := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Name: "A", Email: "reader@example.com", Password: "long enough"})
	require.NoError(t, err)

	resp, err := svc.Login(ctx, LoginRequest{Email: "Reader@Example.com", Password: "long enough"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	require.NotNil(t, resp.User.LastLoginAt)
	assert.Len(t, sessions.created, 2)
	assert.Contains(t, repo.lastLogin, resp.User.ID)

	_, err = svc.Login(ctx, LoginRequest{Email: "reader@example.com", Password: "wrong password"})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = svc.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: "long enough"})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Name: "A", Email: "locked@example.com", Password: "long enough"})
	require.NoError(t, err)
	repo.byEmail["locked@example.com"].IsActive = false

	_, err = svc.Login(ctx, LoginRequest{Email: "locked@example.com", Password: "long enough"})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _, sessions := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Logout(ctx, "token-123"))
	assert.Equal(t, []string{"token-123"}, sessions.revoked)

	err := svc.Logout(ctx, "  ")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestMe(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{Name: "A", Email: "me@example.com", Password: "long enough"})
	require.NoError(t, err)

	me, err := svc.Me(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.byEmail["me@example.com"].ID, me.ID)

	_, err = svc.Me(ctx, uuid.Nil)
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = svc.Me(ctx, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}
