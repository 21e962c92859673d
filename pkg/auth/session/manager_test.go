package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = value.(string)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (f *fakeStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

type fakeKeyer struct{}

func (fakeKeyer) SessionKey(tokenID string) string {
	return "libris:session:" + tokenID
}

func newTestManager() (*Manager, *fakeStore) {
	store := newFakeStore()
	return &Manager{store: store, keyer: fakeKeyer{}, ttl: time.Hour}, store
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager()
	userID := uuid.New()

	tokenID := NewTokenID()
	require.NoError(t, mgr.Create(ctx, tokenID, userID))

	ok, err := mgr.HasSession(ctx, tokenID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mgr.Revoke(ctx, tokenID))

	ok, err = mgr.HasSession(ctx, tokenID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasSessionRejectsEmptyTokenID(t *testing.T) {
	mgr, _ := newTestManager()
	_, err := mgr.HasSession(context.Background(), " ")
	require.Error(t, err)
}

func TestCreateRejectsEmptyTokenID(t *testing.T) {
	mgr, _ := newTestManager()
	require.Error(t, mgr.Create(context.Background(), "", uuid.New()))
}
