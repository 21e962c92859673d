package rentals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/libris-app/libris-backend/pkg/db/models"
	"github.com/libris-app/libris-backend/pkg/enums"
	"github.com/libris-app/libris-backend/pkg/pagination"
)

// ListRentalsFilters describe the supported filters for loan listings.
type ListRentalsFilters struct {
	UserID   *uuid.UUID
	BookID   *uuid.UUID
	Statuses []enums.RentalStatus
}

// BookRentalCount pairs a catalog book with its historical loan count.
type BookRentalCount struct {
	Book        models.Book
	RentalCount int64
}

// Repository manages persistence for loans.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rental *models.Rental) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Rental, error)
	FindOpenByBookAndUser(ctx context.Context, bookID, userID uuid.UUID) (*models.Rental, error)
	List(ctx context.Context, filters ListRentalsFilters, limit int, cursor *pagination.Cursor) ([]models.Rental, error)
	Update(ctx context.Context, rental *models.Rental) error
	ReclassifyOverdue(ctx context.Context, dueBefore time.Time) (int64, error)
	ListOverdue(ctx context.Context) ([]models.Rental, error)
	CountOpen(ctx context.Context) (int64, error)
	CountOpenDueBefore(ctx context.Context, dueBefore time.Time) (int64, error)
	CountByStatus(ctx context.Context, status enums.RentalStatus) (int64, error)
	CountAll(ctx context.Context) (int64, error)
	MostRentedBookIDs(ctx context.Context, limit int) ([]uuid.UUID, map[uuid.UUID]int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a rentals repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, rental *models.Rental) error {
	return r.db.WithContext(ctx).Create(rental).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Rental, error) {
	var rental models.Rental
	if err := r.db.WithContext(ctx).
		Preload("Book").
		First(&rental, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *repository) FindOpenByBookAndUser(ctx context.Context, bookID, userID uuid.UUID) (*models.Rental, error) {
	var rental models.Rental
	if err := r.db.WithContext(ctx).
		Where("book_id = ? AND user_id = ? AND status IN ?", bookID, userID, openStatuses()).
		First(&rental).Error; err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *repository) List(ctx context.Context, filters ListRentalsFilters, limit int, cursor *pagination.Cursor) ([]models.Rental, error) {
	query := r.db.WithContext(ctx).Model(&models.Rental{}).Preload("Book")

	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.BookID != nil {
		query = query.Where("book_id = ?", *filters.BookID)
	}
	if len(filters.Statuses) > 0 {
		query = query.Where("status IN ?", filters.Statuses)
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rentals []models.Rental
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rentals).Error; err != nil {
		return nil, err
	}
	return rentals, nil
}

func (r *repository) Update(ctx context.Context, rental *models.Rental) error {
	return r.db.WithContext(ctx).Save(rental).Error
}

// ReclassifyOverdue flips every active loan past its due date to overdue and
// returns how many rows changed.
func (r *repository) ReclassifyOverdue(ctx context.Context, dueBefore time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Rental{}).
		Where("status = ? AND due_date < ?", enums.RentalStatusActive, dueBefore).
		UpdateColumn("status", enums.RentalStatusOverdue)
	return result.RowsAffected, result.Error
}

func (r *repository) ListOverdue(ctx context.Context) ([]models.Rental, error) {
	var rentals []models.Rental
	if err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		Where("status = ?", enums.RentalStatusOverdue).
		Order("due_date ASC").
		Find(&rentals).Error; err != nil {
		return nil, err
	}
	return rentals, nil
}

func (r *repository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Rental{}).
		Where("status IN ?", openStatuses()).
		Count(&count).Error
	return count, err
}

func (r *repository) CountOpenDueBefore(ctx context.Context, dueBefore time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Rental{}).
		Where("status IN ? AND due_date < ?", openStatuses(), dueBefore).
		Count(&count).Error
	return count, err
}

func (r *repository) CountByStatus(ctx context.Context, status enums.RentalStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Rental{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (r *repository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Rental{}).Count(&count).Error
	return count, err
}

// MostRentedBookIDs ranks books by historical loan count, any status.
func (r *repository) MostRentedBookIDs(ctx context.Context, limit int) ([]uuid.UUID, map[uuid.UUID]int64, error) {
	type row struct {
		BookID      uuid.UUID `gorm:"column:book_id"`
		RentalCount int64     `gorm:"column:rental_count"`
	}

	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.Rental{}).
		Select("book_id, COUNT(*) AS rental_count").
		Group("book_id").
		Order("rental_count DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, nil, err
	}

	ids := make([]uuid.UUID, 0, len(rows))
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, item := range rows {
		ids = append(ids, item.BookID)
		counts[item.BookID] = item.RentalCount
	}
	return ids, counts, nil
}

func openStatuses() []enums.RentalStatus {
	return []enums.RentalStatus{enums.RentalStatusActive, enums.RentalStatusOverdue}
}
