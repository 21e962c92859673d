package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/libris-app/libris-backend/pkg/db/models"
	"github.com/libris-app/libris-backend/pkg/pagination"
)

// ListBooksFilters describe the supported filter knobs for the catalog browse endpoint.
type ListBooksFilters struct {
	Query         string  `json:"q,omitempty"`
	Author        *string `json:"author,omitempty"`
	Genre         *string `json:"genre,omitempty"`
	AvailableOnly bool    `json:"available_only,omitempty"`
}

// Repository manages persistence for catalog books.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, book *models.Book) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	FindByISBN(ctx context.Context, isbn string) (*models.Book, error)
	List(ctx context.Context, filters ListBooksFilters, limit int, cursor *pagination.Cursor) ([]models.Book, error)
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountOpenLoans(ctx context.Context, bookID uuid.UUID) (int64, error)
	DecrementAvailable(ctx context.Context, bookID uuid.UUID) (bool, error)
	IncrementAvailable(ctx context.Context, bookID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repository) FindByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "isbn = ?", isbn).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repository) List(ctx context.Context, filters ListBooksFilters, limit int, cursor *pagination.Cursor) ([]models.Book, error) {
	query := r.db.WithContext(ctx).Model(&models.Book{})

	if q := strings.TrimSpace(filters.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ?", like, like)
	}
	if filters.Author != nil {
		query = query.Where("author = ?", *filters.Author)
	}
	if filters.Genre != nil {
		query = query.Where("genre = ?", *filters.Genre)
	}
	if filters.AvailableOnly {
		query = query.Where("available_copies > 0")
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var books []models.Book
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *repository) Update(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Save(book).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Book{}, "id = ?", id).Error
}

func (r *repository) CountOpenLoans(ctx context.Context, bookID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("rentals").
		Where("book_id = ? AND status IN ?", bookID, []string{"active", "overdue"}).
		Count(&count).Error
	return count, err
}

// DecrementAvailable takes one copy off the shelf. The availability guard sits
// inside the UPDATE itself so a concurrent checkout of the last copy cannot
// drive available_copies negative.
func (r *repository) DecrementAvailable(ctx context.Context, bookID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND available_copies > 0", bookID).
		UpdateColumn("available_copies", gorm.Expr("available_copies - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementAvailable puts one copy back. The total_copies guard keeps a double
// return from pushing available_copies past the shelf size.
func (r *repository) IncrementAvailable(ctx context.Context, bookID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND available_copies < total_copies", bookID).
		UpdateColumn("available_copies", gorm.Expr("available_copies + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
