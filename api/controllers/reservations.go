package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/libris-app/libris-backend/api/middleware"
	"github.com/libris-app/libris-backend/api/responses"
	"github.com/libris-app/libris-backend/api/validators"
	reservationsvc "github.com/libris-app/libris-backend/internal/reservations"
	"github.com/libris-app/libris-backend/pkg/db/models"
	"github.com/libris-app/libris-backend/pkg/enums"
	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
	"github.com/libris-app/libris-backend/pkg/logger"
	"github.com/libris-app/libris-backend/pkg/pagination"
)

// CreateReservation queues a pickup request for the authenticated member.
func CreateReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		callerID, err := callerUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createReservationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bookID, err := uuid.Parse(payload.BookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid book id"))
			return
		}

		reservation, err := svc.Create(r.Context(), reservationsvc.CreateInput{
			BookID:              bookID,
			UserID:              callerID,
			PreferredPickupDate: payload.PreferredPickupDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, reservationsvc.NewReservationDTO(reservation))
	}
}

// ListMyReservations returns the authenticated member's reservations.
func ListMyReservations(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		callerID, err := callerUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeReservationList(w, r, svc, logg, &callerID)
	}
}

// CancelReservation withdraws an open reservation; only the owner may cancel.
func CancelReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		callerID, err := callerUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservation id"))
			return
		}

		reservation, err := svc.Cancel(r.Context(), id, callerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservationsvc.NewReservationDTO(reservation))
	}
}

// ListReservations returns one queue page with optional filters.
func ListReservations(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		writeReservationList(w, r, svc, logg, nil)
	}
}

// ListPendingReservations returns only requests awaiting a decision.
func ListPendingReservations(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationStatusHandler(svc, logg, enums.ReservationStatusPending)
}

// ListApprovedReservations returns reservations inside their pickup window.
func ListApprovedReservations(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationStatusHandler(svc, logg, enums.ReservationStatusApproved)
}

// GetReservation returns a single reservation.
func GetReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservation id"))
			return
		}

		reservation, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservationsvc.NewReservationDTO(reservation))
	}
}

// ApproveReservation grants a pending request and starts the pickup window.
func ApproveReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationDecisionHandler(svc, logg, true)
}

// RejectReservation declines a pending request; notes are mandatory.
func RejectReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationDecisionHandler(svc, logg, false)
}

// ConvertReservation turns an approved reservation into a loan at handover.
func ConvertReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservation id"))
			return
		}

		var payload convertReservationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := reservationsvc.ConvertInput{
			ReservationID: id,
			DueDate:       payload.DueDate,
		}
		if payload.RentalDate != nil {
			input.RentalDate = *payload.RentalDate
		}

		result, err := svc.ConvertToRental(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, reservationsvc.NewConvertResultDTO(result))
	}
}

// ReservationStats reports queue counts per lifecycle state.
func ReservationStats(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
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

func reservationStatusHandler(svc reservationsvc.Service, logg *logger.Logger, status enums.ReservationStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), reservationsvc.ListReservationsInput{
			Filters: reservationsvc.ListReservationsFilters{
				Statuses: []enums.ReservationStatus{status},
			},
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservationPageResponse{
			Reservations: reservationsvc.NewReservationDTOs(page.Reservations),
			NextCursor:   page.NextCursor,
		})
	}
}

func reservationDecisionHandler(svc reservationsvc.Service, logg *logger.Logger, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		adminID, err := callerUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservation id"))
			return
		}

		var payload decisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var reservation *models.Reservation
		if approve {
			reservation, err = svc.Approve(r.Context(), id, adminID, payload.Notes)
		} else {
			reservation, err = svc.Reject(r.Context(), id, adminID, payload.Notes)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservationsvc.NewReservationDTO(reservation))
	}
}

func writeReservationList(w http.ResponseWriter, r *http.Request, svc reservationsvc.Service, logg *logger.Logger, userID *uuid.UUID) {
	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxListLimit)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	filters := reservationsvc.ListReservationsFilters{UserID: userID}
	if userID == nil {
		if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
			uid, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
				return
			}
			filters.UserID = &uid
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("book_id")); raw != "" {
		bid, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid book id"))
			return
		}
		filters.BookID = &bid
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseReservationStatus(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		filters.Statuses = []enums.ReservationStatus{status}
	}

	page, err := svc.List(r.Context(), reservationsvc.ListReservationsInput{
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

	responses.WriteSuccess(w, reservationPageResponse{
		Reservations: reservationsvc.NewReservationDTOs(page.Reservations),
		NextCursor:   page.NextCursor,
	})
}

func callerUUID(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return uid, nil
}

type reservationPageResponse struct {
	Reservations []reservationsvc.ReservationDTO `json:"reservations"`
	NextCursor   string                          `json:"next_cursor,omitempty"`
}

type createReservationRequest struct {
	BookID              string    `json:"book_id" validate:"required,uuid4"`
	PreferredPickupDate time.Time `json:"preferred_pickup_date" validate:"required"`
}

type decisionRequest struct {
	Notes string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type convertReservationRequest struct {
	RentalDate *time.Time `json:"rental_date,omitempty"`
	DueDate    time.Time  `json:"due_date" validate:"required"`
}
