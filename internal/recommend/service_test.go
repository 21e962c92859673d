package recommend

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/libris-app/libris-backend/internal/catalog"
	"github.com/libris-app/libris-backend/pkg/db/models"
	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
)

type fakeGenerator struct {
	reply    string
	err      error
	received []Message
}

func (f *fakeGenerator) Generate(ctx context.Context, messages []Message) (string, error) {
	f.received = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func setupBooksDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:recommend_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS books (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  author TEXT NOT NULL,
  isbn TEXT UNIQUE,
  genre TEXT,
  published_year INTEGER,
  description TEXT,
  cover_url TEXT,
  total_copies INTEGER NOT NULL DEFAULT 1,
  available_copies INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	return db
}

func seedBook(t *testing.T, db *gorm.DB, title string, available int) *models.Book {
	t.Helper()
	book := &models.Book{
		ID:              uuid.New(),
		Title:           title,
		Author:          "Test Author",
		TotalCopies:     3,
		AvailableCopies: available,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

func newTestService(t *testing.T, gen *fakeGenerator) (Service, *gorm.DB) {
	t.Helper()
	db := setupBooksDB(t)
	svc, err := NewService(gen, catalog.NewRepository(db))
	require.NoError(t, err)
	return svc, db
}

func TestChatGroundsPromptOnAvailableBooks(t *testing.T) {
	gen := &fakeGenerator{reply: "Polecam coś lekkiego."}
	svc, db := newTestService(t, gen)
	ctx := context.Background()

	onShelf := seedBook(t, db, "Lalka", 2)
	seedBook(t, db, "Potop", 0)

	result, err := svc.Chat(ctx, ChatInput{
		Message: "Szukam klasyki",
		History: []ChatMessage{{Role: "model", Content: "Cześć!"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Polecam coś lekkiego.", result.Response)
	assert.False(t, result.HasRecommendations)

	require.GreaterOrEqual(t, len(gen.received), 4)
	system := gen.received[0]
	assert.Equal(t, "user", system.Role)
	assert.Contains(t, system.Text, onShelf.ID.String())
	assert.Contains(t, system.Text, "Lalka")
	assert.NotContains(t, system.Text, "Potop", "books with no free copies stay out of the prompt")

	last := gen.received[len(gen.received)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "Szukam klasyki", last.Text)
	assert.Equal(t, "Cześć!", gen.received[2].Text)
}

func TestChatExtractsRecommendations(t *testing.T) {
	gen := &fakeGenerator{}
	svc, db := newTestService(t, gen)
	ctx := context.Background()

	first := seedBook(t, db, "Lalka", 1)
	second := seedBook(t, db, "Solaris", 1)

	gen.reply = fmt.Sprintf(
		"Polecam [BOOK_ID:%s] oraz [BOOK_ID:%s]. Jeszcze raz [BOOK_ID:%s] i nieznane [BOOK_ID:%s].",
		first.ID, second.ID, first.ID, uuid.New())

	result, err := svc.Chat(ctx, ChatInput{Message: "Co polecasz?"})
	require.NoError(t, err)
	assert.True(t, result.HasRecommendations)
	require.Len(t, result.Recommendations, 2, "mentions are deduplicated and unknown ids dropped")
	assert.Equal(t, first.ID, result.Recommendations[0].ID)
	assert.Equal(t, second.ID, result.Recommendations[1].ID)
}

func TestChatRequiresMessage(t *testing.T) {
	svc, _ := newTestService(t, &fakeGenerator{})

	_, err := svc.Chat(context.Background(), ChatInput{Message: "  "})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestWelcomeAndQuickReplies(t *testing.T) {
	svc, _ := newTestService(t, &fakeGenerator{})

	welcome := svc.Welcome()
	assert.NotEmpty(t, welcome.Response)
	assert.Empty(t, welcome.Recommendations)
	assert.False(t, welcome.HasRecommendations)

	assert.NotEmpty(t, svc.QuickReplies())
}
