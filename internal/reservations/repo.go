package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/libris-app/libris-backend/pkg/db/models"
	"github.com/libris-app/libris-backend/pkg/enums"
	"github.com/libris-app/libris-backend/pkg/pagination"
)

// ListReservationsFilters describe the supported filters for reservation listings.
type ListReservationsFilters struct {
	UserID   *uuid.UUID
	BookID   *uuid.UUID
	Statuses []enums.ReservationStatus
}

// Repository manages persistence for reservations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindOpenByBookAndUser(ctx context.Context, bookID, userID uuid.UUID) (*models.Reservation, error)
	List(ctx context.Context, filters ListReservationsFilters, limit int, cursor *pagination.Cursor) ([]models.Reservation, error)
	Update(ctx context.Context, reservation *models.Reservation) error
	ExpireApprovedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context, status enums.ReservationStatus) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reservations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).
		Preload("Book").
		First(&reservation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) FindOpenByBookAndUser(ctx context.Context, bookID, userID uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).
		Where("book_id = ? AND user_id = ? AND status IN ?", bookID, userID, openStatuses()).
		First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) List(ctx context.Context, filters ListReservationsFilters, limit int, cursor *pagination.Cursor) ([]models.Reservation, error) {
	query := r.db.WithContext(ctx).Model(&models.Reservation{}).Preload("Book")

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

	var reservations []models.Reservation
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) Update(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}

// ExpireApprovedBefore sweeps approved reservations whose pickup window has
// lapsed into cancelled and reports how many rows changed.
func (r *repository) ExpireApprovedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", enums.ReservationStatusApproved, cutoff).
		UpdateColumn("status", enums.ReservationStatusCancelled)
	return result.RowsAffected, result.Error
}

func (r *repository) CountByStatus(ctx context.Context, status enums.ReservationStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func openStatuses() []enums.ReservationStatus {
	return []enums.ReservationStatus{enums.ReservationStatusPending, enums.ReservationStatusApproved}
}
