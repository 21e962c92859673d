package reservations

import (
	"time"

	"github.com/google/uuid"

	"github.com/libris-app/libris-backend/internal/catalog"
	"github.com/libris-app/libris-backend/internal/rentals"
	"github.com/libris-app/libris-backend/pkg/db/models"
)

// ReservationDTO represents the reservation payload returned to clients.
type ReservationDTO struct {
	ID                  uuid.UUID        `json:"id"`
	BookID              uuid.UUID        `json:"book_id"`
	UserID              uuid.UUID        `json:"user_id"`
	Status              string           `json:"status"`
	ReservationDate     time.Time        `json:"reservation_date"`
	PreferredPickupDate time.Time        `json:"preferred_pickup_date"`
	ProcessedBy         *uuid.UUID       `json:"processed_by,omitempty"`
	ProcessedDate       *time.Time       `json:"processed_date,omitempty"`
	AdminNotes          *string          `json:"admin_notes,omitempty"`
	ExpiresAt           *time.Time       `json:"expires_at,omitempty"`
	Book                *catalog.BookDTO `json:"book,omitempty"`
	User                *RequesterDTO    `json:"user,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// RequesterDTO surfaces limited member data for reservation responses.
type RequesterDTO struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// ConvertResultDTO pairs the completed reservation with the loan it produced.
type ConvertResultDTO struct {
	Reservation *ReservationDTO    `json:"reservation"`
	Rental      *rentals.RentalDTO `json:"rental"`
}

// NewReservationDTO builds a DTO from the persisted model, including
// preloaded book and requester summaries when present.
func NewReservationDTO(reservation *models.Reservation) *ReservationDTO {
	if reservation == nil {
		return nil
	}
	dto := &ReservationDTO{
		ID:                  reservation.ID,
		BookID:              reservation.BookID,
		UserID:              reservation.UserID,
		Status:              string(reservation.Status),
		ReservationDate:     reservation.ReservationDate,
		PreferredPickupDate: reservation.PreferredPickupDate,
		ProcessedBy:         reservation.ProcessedBy,
		ProcessedDate:       reservation.ProcessedDate,
		AdminNotes:          reservation.AdminNotes,
		ExpiresAt:           reservation.ExpiresAt,
		Book:                catalog.NewBookDTO(reservation.Book),
		CreatedAt:           reservation.CreatedAt,
		UpdatedAt:           reservation.UpdatedAt,
	}
	if reservation.User != nil {
		dto.User = &RequesterDTO{
			ID:    reservation.User.ID,
			Name:  reservation.User.Name,
			Email: reservation.User.Email,
		}
	}
	return dto
}

// NewReservationDTOs maps a page of models.
func NewReservationDTOs(reservations []models.Reservation) []ReservationDTO {
	dtos := make([]ReservationDTO, 0, len(reservations))
	for i := range reservations {
		dtos = append(dtos, *NewReservationDTO(&reservations[i]))
	}
	return dtos
}

// NewConvertResultDTO maps a conversion outcome.
func NewConvertResultDTO(result *ConvertResult) *ConvertResultDTO {
	if result == nil {
		return nil
	}
	return &ConvertResultDTO{
		Reservation: NewReservationDTO(result.Reservation),
		Rental:      rentals.NewRentalDTO(result.Rental),
	}
}
