package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/libris-app/libris-backend/internal/catalog"
	"github.com/libris-app/libris-backend/internal/members"
	"github.com/libris-app/libris-backend/internal/rentals"
	"github.com/libris-app/libris-backend/pkg/db/models"
)

func setupReservationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:reservations_" + uuid.NewString() + "?mode=memory&cache=shared"
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
	books := `
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
);`
	rentalsTable := `
CREATE TABLE IF NOT EXISTS rentals (
  id TEXT PRIMARY KEY,
  book_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  rental_date DATETIME NOT NULL,
  due_date DATETIME NOT NULL,
  return_date DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	reservationsTable := `
CREATE TABLE IF NOT EXISTS reservations (
  id TEXT PRIMARY KEY,
  book_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  reservation_date DATETIME NOT NULL,
  preferred_pickup_date DATETIME NOT NULL,
  processed_by TEXT,
  processed_date DATETIME,
  admin_notes TEXT,
  expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	uniqueOpenReservation := `
CREATE UNIQUE INDEX IF NOT EXISTS uq_reservations_open_book_user
  ON reservations (book_id, user_id)
  WHERE status IN ('pending', 'approved');`

	for _, stmt := range []string{users, books, rentalsTable, reservationsTable, uniqueOpenReservation} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestService(t *testing.T) (*service, *gorm.DB) {
	t.Helper()
	db := setupReservationsTestDB(t)
	svc, err := NewService(
		gormTxRunner{db: db},
		NewRepository(db),
		catalog.NewRepository(db),
		members.NewRepository(db),
		rentals.NewRepository(db),
	)
	require.NoError(t, err)
	return svc.(*service), db
}

func seedUser(t *testing.T, db *gorm.DB, active bool) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Name:         "Test Reader",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Role:         "reader",
		IsActive:     active,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	admin := &models.User{
		ID:           uuid.New(),
		Name:         "Head Librarian",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Role:         "admin",
		IsActive:     true,
	}
	require.NoError(t, db.Create(admin).Error)
	return admin
}

func seedBook(t *testing.T, db *gorm.DB, total, available int) *models.Book {
	t.Helper()
	book := &models.Book{
		ID:              uuid.New(),
		Title:           "Test Title",
		Author:          "Test Author",
		TotalCopies:     total,
		AvailableCopies: available,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

func bookAvailable(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var book models.Book
	require.NoError(t, db.First(&book, "id = ?", id).Error)
	return book.AvailableCopies
}

func futurePickup() time.Time {
	return time.Now().AddDate(0, 0, 3)
}
