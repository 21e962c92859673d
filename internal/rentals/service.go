package rentals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/libris-app/libris-backend/internal/catalog"
	"github.com/libris-app/libris-backend/internal/members"
	"github.com/libris-app/libris-backend/pkg/config"
	"github.com/libris-app/libris-backend/pkg/db"
	"github.com/libris-app/libris-backend/pkg/db/models"
	"github.com/libris-app/libris-backend/pkg/enums"
	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
	"github.com/libris-app/libris-backend/pkg/pagination"
)

// DefaultMostRentedLimit caps the popularity report when no limit is supplied.
const DefaultMostRentedLimit = 10

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service executes the loan lifecycle: checkout, return, extension, reporting.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*models.Rental, error)
	Return(ctx context.Context, rentalID uuid.UUID) (*models.Rental, error)
	Extend(ctx context.Context, rentalID uuid.UUID, newDueDate time.Time) (*models.Rental, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Rental, error)
	List(ctx context.Context, input ListRentalsInput) (*RentalPage, error)
	GetOverdue(ctx context.Context) ([]OverdueRental, error)
	Stats(ctx context.Context) (*Stats, error)
	MostRented(ctx context.Context, limit int) ([]BookRentalCount, error)
}

// CheckoutInput captures a loan request.
type CheckoutInput struct {
	BookID     uuid.UUID
	UserID     uuid.UUID
	RentalDate time.Time
	DueDate    time.Time
}

// ListRentalsInput pairs filters with cursor pagination.
type ListRentalsInput struct {
	Filters    ListRentalsFilters
	Pagination pagination.Params
}

// RentalPage is one page of loans plus the cursor for the next page.
type RentalPage struct {
	Rentals    []models.Rental
	NextCursor string
}

// OverdueRental annotates an overdue loan with how late it is and the accrued fee.
type OverdueRental struct {
	Rental      models.Rental
	DaysOverdue int
	LateFee     decimal.Decimal
	Currency    string
}

// Stats summarizes the ledger. Overdue is computed against today's date, not
// the stored status, so it stays accurate between reclassification sweeps.
type Stats struct {
	Active   int64 `json:"active"`
	Overdue  int64 `json:"overdue"`
	Returned int64 `json:"returned"`
	Total    int64 `json:"total"`
}

type service struct {
	tx        txRunner
	repo      Repository
	books     catalog.Repository
	users     members.Repository
	dailyFine decimal.Decimal
	currency  string
	now       func() time.Time
}

// NewService wires the loan service with its repositories and fine policy.
func NewService(tx txRunner, repo Repository, books catalog.Repository, users members.Repository, fines config.FinesConfig) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("rentals repository required")
	}
	if books == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("members repository required")
	}

	dailyFine, err := decimal.NewFromString(fines.DailyRate)
	if err != nil {
		return nil, fmt.Errorf("invalid daily fine rate %q: %w", fines.DailyRate, err)
	}
	if dailyFine.IsNegative() {
		return nil, fmt.Errorf("daily fine rate cannot be negative")
	}

	return &service{
		tx:        tx,
		repo:      repo,
		books:     books,
		users:     users,
		dailyFine: dailyFine,
		currency:  fines.Currency,
		now:       time.Now,
	}, nil
}

// Checkout creates an active loan and takes one copy off the shelf. The
// availability and duplicate checks run inside the same transaction as the
// insert and decrement, so concurrent checkouts of the last copy cannot both
// succeed.
func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*models.Rental, error) {
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rentalDate := input.RentalDate
	if rentalDate.IsZero() {
		rentalDate = s.now()
	}
	if !input.DueDate.After(rentalDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date must be after the rental date")
	}

	var created *models.Rental
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rentalRepo := s.repo.WithTx(tx)
		bookRepo := s.books.WithTx(tx)

		if _, err := bookRepo.FindByID(ctx, input.BookID); err != nil {
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

		if _, err := rentalRepo.FindOpenByBookAndUser(ctx, input.BookID, input.UserID); err == nil {
			return pkgerrors.New(pkgerrors.CodeDuplicateLoan, "user already holds an active loan for this book")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		ok, err := bookRepo.DecrementAvailable(ctx, input.BookID)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeBookUnavailable, "book has no available copies")
		}

		rental := &models.Rental{
			ID:         uuid.New(),
			BookID:     input.BookID,
			UserID:     input.UserID,
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
		created = rental
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Return closes a loan and puts the copy back on the shelf, both inside one
// transaction. Returning twice fails on the status check and the shelf count
// is incremented exactly once.
func (s *service) Return(ctx context.Context, rentalID uuid.UUID) (*models.Rental, error) {
	if rentalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id required")
	}

	var returned *models.Rental
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rentalRepo := s.repo.WithTx(tx)
		bookRepo := s.books.WithTx(tx)

		rental, err := rentalRepo.FindByID(ctx, rentalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "rental not found")
			}
			return err
		}
		if rental.Status == enums.RentalStatusReturned {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "rental already returned")
		}

		now := s.now()
		rental.Status = enums.RentalStatusReturned
		rental.ReturnDate = &now
		if err := rentalRepo.Update(ctx, rental); err != nil {
			return err
		}

		ok, err := bookRepo.IncrementAvailable(ctx, rental.BookID)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "return would exceed the book's total copies")
		}

		returned = rental
		return nil
	})
	if err != nil {
		return nil, err
	}
	return returned, nil
}

// Extend pushes an active loan's due date forward. Overdue and returned loans
// are not extendable, and the new date must be later than the current one.
func (s *service) Extend(ctx context.Context, rentalID uuid.UUID, newDueDate time.Time) (*models.Rental, error) {
	if rentalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id required")
	}
	if newDueDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "new due date required")
	}

	var extended *models.Rental
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rentalRepo := s.repo.WithTx(tx)

		rental, err := rentalRepo.FindByID(ctx, rentalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "rental not found")
			}
			return err
		}
		if rental.Status != enums.RentalStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("only active rentals can be extended, current status is %s", rental.Status))
		}
		if !newDueDate.After(rental.DueDate) {
			return pkgerrors.New(pkgerrors.CodeValidation, "new due date must be later than the current due date")
		}

		rental.DueDate = newDueDate
		if err := rentalRepo.Update(ctx, rental); err != nil {
			return err
		}
		extended = rental
		return nil
	})
	if err != nil {
		return nil, err
	}
	return extended, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Rental, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id required")
	}
	rental, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rental not found")
		}
		return nil, err
	}
	return rental, nil
}

func (s *service) List(ctx context.Context, input ListRentalsInput) (*RentalPage, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	rentals, err := s.repo.List(ctx, input.Filters, pagination.LimitWithBuffer(input.Pagination.Limit), cursor)
	if err != nil {
		return nil, err
	}

	page := &RentalPage{Rentals: rentals}
	if len(rentals) > limit {
		page.Rentals = rentals[:limit]
		last := page.Rentals[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// GetOverdue is a side-effecting read: it first reclassifies every active loan
// past its due date, then reports the overdue set ordered by due date with the
// accrued late fee. A loan due today is not overdue.
func (s *service) GetOverdue(ctx context.Context) ([]OverdueRental, error) {
	var rentals []models.Rental
	today := startOfDay(s.now())

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.ReclassifyOverdue(ctx, today); err != nil {
			return err
		}
		listed, err := repo.ListOverdue(ctx)
		if err != nil {
			return err
		}
		rentals = listed
		return nil
	})
	if err != nil {
		return nil, err
	}

	overdue := make([]OverdueRental, 0, len(rentals))
	for _, rental := range rentals {
		days := daysBetween(startOfDay(rental.DueDate), today)
		overdue = append(overdue, OverdueRental{
			Rental:      rental,
			DaysOverdue: days,
			LateFee:     s.dailyFine.Mul(decimal.NewFromInt(int64(days))),
			Currency:    s.currency,
		})
	}
	return overdue, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	today := startOfDay(s.now())

	open, err := s.repo.CountOpen(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := s.repo.CountOpenDueBefore(ctx, today)
	if err != nil {
		return nil, err
	}
	returned, err := s.repo.CountByStatus(ctx, enums.RentalStatusReturned)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Active:   open - overdue,
		Overdue:  overdue,
		Returned: returned,
		Total:    total,
	}, nil
}

func (s *service) MostRented(ctx context.Context, limit int) ([]BookRentalCount, error) {
	if limit <= 0 {
		limit = DefaultMostRentedLimit
	}

	ids, counts, err := s.repo.MostRentedBookIDs(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []BookRentalCount{}, nil
	}

	ranked := make([]BookRentalCount, 0, len(ids))
	for _, id := range ids {
		book, err := s.books.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		ranked = append(ranked, BookRentalCount{Book: *book, RentalCount: counts[id]})
	}
	return ranked, nil
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
