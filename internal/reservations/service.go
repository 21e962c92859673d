package reservations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/libris-app/libris-backend/internal/catalog"
	"github.com/libris-app/libris-backend/internal/members"
	"github.com/libris-app/libris-backend/internal/rentals"
	"github.com/libris-app/libris-backend/pkg/db"
	"github.com/libris-app/libris-backend/pkg/db/models"
	"github.com/libris-app/libris-backend/pkg/enums"
	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
	"github.com/libris-app/libris-backend/pkg/pagination"
)

// ApprovalWindow is how long an approved reservation stays claimable before
// the expiry sweep cancels it.
const ApprovalWindow = 7 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the reservation lifecycle: intake, admin disposition, reader
// cancellation, and conversion into a loan.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Reservation, error)
	Approve(ctx context.Context, reservationID, adminID uuid.UUID, notes string) (*models.Reservation, error)
	Reject(ctx context.Context, reservationID, adminID uuid.UUID, notes string) (*models.Reservation, error)
	Cancel(ctx context.Context, reservationID, callerUserID uuid.UUID) (*models.Reservation, error)
	ConvertToRental(ctx context.Context, input ConvertInput) (*ConvertResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	List(ctx context.Context, input ListReservationsInput) (*ReservationPage, error)
	ExpireLapsed(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
}

// CreateInput captures a reader's reservation request.
type CreateInput struct {
	BookID              uuid.UUID
	UserID              uuid.UUID
	PreferredPickupDate time.Time
}

// ConvertInput captures the handover of an approved reservation into a loan.
type ConvertInput struct {
	ReservationID uuid.UUID
	RentalDate    time.Time
	DueDate       time.Time
}

// ConvertResult pairs the completed reservation with the loan it produced.
type ConvertResult struct {
	Reservation *models.Reservation
	Rental      *models.Rental
}

// ListReservationsInput pairs filters with cursor pagination.
type ListReservationsInput struct {
	Filters    ListReservationsFilters
	Pagination pagination.Params
}

// ReservationPage is one page of reservations plus the cursor for the next page.
type ReservationPage struct {
	Reservations []models.Reservation
	NextCursor   string
}

// Stats reports reservation counts per lifecycle state.
type Stats struct {
	Pending   int64 `json:"pending"`
	Approved  int64 `json:"approved"`
	Rejected  int64 `json:"rejected"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Total     int64 `json:"total"`
}

type service struct {
	tx      txRunner
	repo    Repository
	books   catalog.Repository
	users   members.Repository
	rentals rentals.Repository
	now     func() time.Time
}

// NewService wires the reservation service with its repositories.
func NewService(tx txRunner, repo Repository, books catalog.Repository, users members.Repository, rentalRepo rentals.Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if books == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("members repository required")
	}
	if rentalRepo == nil {
		return nil, fmt.Errorf("rentals repository required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		books:   books,
		users:   users,
		rentals: rentalRepo,
		now:     time.Now,
	}, nil
}

// Create files a pending reservation. A reader cannot queue for a book they
// already hold on loan or already have an open reservation for.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Reservation, error) {
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	now := s.now()
	if input.PreferredPickupDate.Before(startOfDay(now)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preferred pickup date cannot be in the past")
	}

	var created *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := s.books.WithTx(tx).FindByID(ctx, input.BookID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return err
		}
		user, err := s.users.WithTx(tx).FindByID(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return err
		}
		if !user.IsActive {
			return pkgerrors.New(pkgerrors.CodeConflict, "user account is inactive")
		}

		if _, err := repo.FindOpenByBookAndUser(ctx, input.BookID, input.UserID); err == nil {
			return pkgerrors.New(pkgerrors.CodeDuplicateReservation, "user already has an open reservation for this book")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if _, err := s.rentals.WithTx(tx).FindOpenByBookAndUser(ctx, input.BookID, input.UserID); err == nil {
			return pkgerrors.New(pkgerrors.CodeDuplicateReservation, "user already holds this book on loan")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		reservation := &models.Reservation{
			ID:                  uuid.New(),
			BookID:              input.BookID,
			UserID:              input.UserID,
			Status:              enums.ReservationStatusPending,
			ReservationDate:     now,
			PreferredPickupDate: input.PreferredPickupDate,
		}
		if err := repo.Create(ctx, reservation); err != nil {
			if db.IsUniqueViolation(err, "uq_reservations_open_book_user") {
				return pkgerrors.Wrap(pkgerrors.CodeDuplicateReservation, err, "user already has an open reservation for this book")
			}
			return err
		}
		created = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Approve moves a pending reservation to approved and starts the pickup
// window. The book must still have a free copy at approval time.
func (s *service) Approve(ctx context.Context, reservationID, adminID uuid.UUID, notes string) (*models.Reservation, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}

	var approved *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		reservation, err := s.findForUpdate(ctx, repo, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationStatusPending {
			return invalidTransition("approve", reservation.Status)
		}

		book, err := s.books.WithTx(tx).FindByID(ctx, reservation.BookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return err
		}
		if book.AvailableCopies <= 0 {
			return pkgerrors.New(pkgerrors.CodeBookUnavailable, "book has no available copies")
		}

		now := s.now()
		expires := now.Add(ApprovalWindow)
		reservation.Status = enums.ReservationStatusApproved
		reservation.ProcessedBy = &adminID
		reservation.ProcessedDate = &now
		reservation.ExpiresAt = &expires
		if trimmed := strings.TrimSpace(notes); trimmed != "" {
			reservation.AdminNotes = &trimmed
		}

		if err := repo.Update(ctx, reservation); err != nil {
			return err
		}
		approved = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// Reject closes a pending reservation with a mandatory explanation.
func (s *service) Reject(ctx context.Context, reservationID, adminID uuid.UUID, notes string) (*models.Reservation, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	trimmed := strings.TrimSpace(notes)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection notes are required")
	}

	var rejected *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		reservation, err := s.findForUpdate(ctx, repo, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationStatusPending {
			return invalidTransition("reject", reservation.Status)
		}

		now := s.now()
		reservation.Status = enums.ReservationStatusRejected
		reservation.ProcessedBy = &adminID
		reservation.ProcessedDate = &now
		reservation.AdminNotes = &trimmed

		if err := repo.Update(ctx, reservation); err != nil {
			return err
		}
		rejected = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// Cancel lets the owning reader withdraw a pending or approved reservation.
func (s *service) Cancel(ctx context.Context, reservationID, callerUserID uuid.UUID) (*models.Reservation, error) {
	if callerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "caller user id required")
	}

	var cancelled *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		reservation, err := s.findForUpdate(ctx, repo, reservationID)
		if err != nil {
			return err
		}
		if reservation.UserID != callerUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the reservation owner can cancel it")
		}
		if !reservation.Status.IsOpen() {
			return invalidTransition("cancel", reservation.Status)
		}

		reservation.Status = enums.ReservationStatusCancelled
		if err := repo.Update(ctx, reservation); err != nil {
			return err
		}
		cancelled = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// ConvertToRental completes an approved reservation by creating an active loan
// and taking the copy off the shelf. All three effects commit or roll back
// together.
func (s *service) ConvertToRental(ctx context.Context, input ConvertInput) (*ConvertResult, error) {
	rentalDate := input.RentalDate
	if rentalDate.IsZero() {
		rentalDate = s.now()
	}
	if !input.DueDate.After(rentalDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date must be after the rental date")
	}

	var result *ConvertResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		bookRepo := s.books.WithTx(tx)
		rentalRepo := s.rentals.WithTx(tx)

		reservation, err := s.findForUpdate(ctx, repo, input.ReservationID)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationStatusApproved {
			return invalidTransition("convert", reservation.Status)
		}

		ok, err := bookRepo.DecrementAvailable(ctx, reservation.BookID)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeBookUnavailable, "book has no available copies")
		}

		rental := &models.Rental{
			ID:         uuid.New(),
			BookID:     reservation.BookID,
			UserID:     reservation.UserID,
			Status:     enums.RentalStatusActive,
			RentalDate: rentalDate,
			DueDate:    input.DueDate,
		}
		if err := rentalRepo.Create(ctx, rental); err != nil {
			if db.IsUniqueViolation(err, "uq_rentals_open_book_user") {
				return pkgerrors.Wrap(pkgerrors.CodeDuplicateLoan, err, "user already holds an active loan for this book")
			}
			return err
		}

		reservation.Status = enums.ReservationStatusCompleted
		if err := repo.Update(ctx, reservation); err != nil {
			return err
		}

		result = &ConvertResult{Reservation: reservation, Rental: rental}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, err
	}
	return reservation, nil
}

func (s *service) List(ctx context.Context, input ListReservationsInput) (*ReservationPage, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	reservations, err := s.repo.List(ctx, input.Filters, pagination.LimitWithBuffer(input.Pagination.Limit), cursor)
	if err != nil {
		return nil, err
	}

	page := &ReservationPage{Reservations: reservations}
	if len(reservations) > limit {
		page.Reservations = reservations[:limit]
		last := page.Reservations[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// ExpireLapsed cancels approved reservations whose pickup window has passed.
func (s *service) ExpireLapsed(ctx context.Context) (int64, error) {
	return s.repo.ExpireApprovedBefore(ctx, s.now())
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	for _, item := range []struct {
		status enums.ReservationStatus
		target *int64
	}{
		{enums.ReservationStatusPending, &stats.Pending},
		{enums.ReservationStatusApproved, &stats.Approved},
		{enums.ReservationStatusRejected, &stats.Rejected},
		{enums.ReservationStatusCompleted, &stats.Completed},
		{enums.ReservationStatusCancelled, &stats.Cancelled},
	} {
		count, err := s.repo.CountByStatus(ctx, item.status)
		if err != nil {
			return nil, err
		}
		*item.target = count
		stats.Total += count
	}
	return stats, nil
}

func (s *service) findForUpdate(ctx context.Context, repo Repository, id uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	reservation, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, err
	}
	return reservation, nil
}

func invalidTransition(action string, current enums.ReservationStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot %s a reservation in status %s", action, current)).
		WithDetails(map[string]any{"current_status": current})
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
