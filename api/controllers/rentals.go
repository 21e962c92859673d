package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/libris-app/libris-backend/api/responses"
	"github.com/libris-app/libris-backend/api/validators"
	rentalsvc "github.com/libris-app/libris-backend/internal/rentals"
	"github.com/libris-app/libris-backend/pkg/enums"
	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
	"github.com/libris-app/libris-backend/pkg/logger"
	"github.com/libris-app/libris-backend/pkg/pagination"
)

// CheckoutRental hands one available copy to a member.
func CheckoutRental(svc rentalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rental service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCheckoutInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rental, err := svc.Checkout(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, rentalsvc.NewRentalDTO(rental))
	}
}

// ReturnRental closes an open loan and restores the copy.
func ReturnRental(svc rentalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rental service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rental id"))
			return
		}

		rental, err := svc.Return(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rentalsvc.NewRentalDTO(rental))
	}
}

// ExtendRental moves an open loan's due date forward.
func ExtendRental(svc rentalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rental service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rental id"))
			return
		}

		var payload extendRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rental, err := svc.Extend(r.Context(), id, payload.NewDueDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rentalsvc.NewRentalDTO(rental))
	}
}

// GetRental returns a single loan.
func GetRental(svc rentalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rental service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rental id"))
			return
		}

		rental, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rentalsvc.NewRentalDTO(rental))
	}
}

// ListRentals returns one ledger page with optional filters.
func ListRentals(svc rentalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return rentalListHandler(svc, logg, nil)
}

// ListActiveRentals returns only open loans.
func ListActiveRentals(svc rentalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return rentalListHandler(svc, logg, []enums.RentalStatus{enums.RentalStatusActive, enums.RentalStatusOverdue})
}

// ListOverdueRentals returns loans past due with accrued fees.
func ListOverdueRentals(svc rentalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rental service unavailable"))
			return
		}

		overdue, err := svc.GetOverdue(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"rentals": rentalsvc.NewOverdueRentalDTOs(overdue)})
	}
}

// RentalStats summarizes the ledger.
func RentalStats(svc rentalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rental service unavailable"))
			return
		}

		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stats)
	}
}

// MostRentedBooks returns the most borrowed titles.
func MostRentedBooks(svc rentalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rental service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 10, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		counts, err := svc.MostRented(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"books": rentalsvc.NewBookRentalCountDTOs(counts)})
	}
}

func rentalListHandler(svc rentalsvc.Service, logg *logger.Logger, statuses []enums.RentalStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rental service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := rentalsvc.ListRentalsFilters{Statuses: statuses}
		if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
			uid, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
				return
			}
			filters.UserID = &uid
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("book_id")); raw != "" {
			bid, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid book id"))
				return
			}
			filters.BookID = &bid
		}
		if statuses == nil {
			if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
				status, err := enums.ParseRentalStatus(raw)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
					return
				}
				filters.Statuses = []enums.RentalStatus{status}
			}
		}

		page, err := svc.List(r.Context(), rentalsvc.ListRentalsInput{
			Filters: filters,
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rentalPageResponse{
			Rentals:    rentalsvc.NewRentalDTOs(page.Rentals),
			NextCursor: page.NextCursor,
		})
	}
}

type rentalPageResponse struct {
	Rentals    []rentalsvc.RentalDTO `json:"rentals"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

type checkoutRequest struct {
	BookID     string     `json:"book_id" validate:"required,uuid4"`
	UserID     string     `json:"user_id" validate:"required,uuid4"`
	RentalDate *time.Time `json:"rental_date,omitempty"`
	DueDate    time.Time  `json:"due_date" validate:"required"`
}

func (r checkoutRequest) toCheckoutInput() (rentalsvc.CheckoutInput, error) {
	bookID, err := uuid.Parse(r.BookID)
	if err != nil {
		return rentalsvc.CheckoutInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid book id")
	}
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return rentalsvc.CheckoutInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	input := rentalsvc.CheckoutInput{
		BookID:  bookID,
		UserID:  userID,
		DueDate: r.DueDate,
	}
	if r.RentalDate != nil {
		input.RentalDate = *r.RentalDate
	}
	return input, nil
}

type extendRequest struct {
	NewDueDate time.Time `json:"new_due_date" validate:"required"`
}
