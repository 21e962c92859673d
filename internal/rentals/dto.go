package rentals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/libris-app/libris-backend/internal/catalog"
	"github.com/libris-app/libris-backend/pkg/db/models"
)

// RentalDTO represents the loan payload returned to clients.
type RentalDTO struct {
	ID         uuid.UUID        `json:"id"`
	BookID     uuid.UUID        `json:"book_id"`
	UserID     uuid.UUID        `json:"user_id"`
	Status     string           `json:"status"`
	RentalDate time.Time        `json:"rental_date"`
	DueDate    time.Time        `json:"due_date"`
	ReturnDate *time.Time       `json:"return_date,omitempty"`
	Book       *catalog.BookDTO `json:"book,omitempty"`
	User       *BorrowerDTO     `json:"user,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// BorrowerDTO surfaces limited member data for loan responses.
type BorrowerDTO struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// OverdueRentalDTO annotates a late loan with the accrued fee.
type OverdueRentalDTO struct {
	RentalDTO
	DaysOverdue int             `json:"days_overdue"`
	LateFee     decimal.Decimal `json:"late_fee"`
	Currency    string          `json:"currency"`
}

// BookRentalCountDTO pairs a book with its historical loan count.
type BookRentalCountDTO struct {
	Book        catalog.BookDTO `json:"book"`
	RentalCount int64           `json:"rental_count"`
}

// NewRentalDTO builds a DTO from the persisted model, including preloaded
// book and borrower summaries when present.
func NewRentalDTO(rental *models.Rental) *RentalDTO {
	if rental == nil {
		return nil
	}
	dto := &RentalDTO{
		ID:         rental.ID,
		BookID:     rental.BookID,
		UserID:     rental.UserID,
		Status:     string(rental.Status),
		RentalDate: rental.RentalDate,
		DueDate:    rental.DueDate,
		ReturnDate: rental.ReturnDate,
		Book:       catalog.NewBookDTO(rental.Book),
		CreatedAt:  rental.CreatedAt,
		UpdatedAt:  rental.UpdatedAt,
	}
	if rental.User != nil {
		dto.User = &BorrowerDTO{
			ID:    rental.User.ID,
			Name:  rental.User.Name,
			Email: rental.User.Email,
		}
	}
	return dto
}

// NewRentalDTOs maps a page of models.
func NewRentalDTOs(rentals []models.Rental) []RentalDTO {
	dtos := make([]RentalDTO, 0, len(rentals))
	for i := range rentals {
		dtos = append(dtos, *NewRentalDTO(&rentals[i]))
	}
	return dtos
}

// NewOverdueRentalDTOs maps late loans with their fee annotations.
func NewOverdueRentalDTOs(overdue []OverdueRental) []OverdueRentalDTO {
	dtos := make([]OverdueRentalDTO, 0, len(overdue))
	for i := range overdue {
		dtos = append(dtos, OverdueRentalDTO{
			RentalDTO:   *NewRentalDTO(&overdue[i].Rental),
			DaysOverdue: overdue[i].DaysOverdue,
			LateFee:     overdue[i].LateFee,
			Currency:    overdue[i].Currency,
		})
	}
	return dtos
}

// NewBookRentalCountDTOs maps popularity rows.
func NewBookRentalCountDTOs(counts []BookRentalCount) []BookRentalCountDTO {
	dtos := make([]BookRentalCountDTO, 0, len(counts))
	for i := range counts {
		dtos = append(dtos, BookRentalCountDTO{
			Book:        *catalog.NewBookDTO(&counts[i].Book),
			RentalCount: counts[i].RentalCount,
		})
	}
	return dtos
}
