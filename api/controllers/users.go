package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/libris-app/libris-backend/api/responses"
	"github.com/libris-app/libris-backend/api/validators"
	membersvc "github.com/libris-app/libris-backend/internal/members"
	"github.com/libris-app/libris-backend/pkg/enums"
	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
	"github.com/libris-app/libris-backend/pkg/logger"
	"github.com/libris-app/libris-backend/pkg/pagination"
)

// ListUsers returns one roster page with optional filters.
func ListUsers(svc membersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), membersvc.ListUsersInput{
			Filters: membersvc.ListUsersFilters{
				Query:      strings.TrimSpace(r.URL.Query().Get("q")),
				Role:       strings.TrimSpace(r.URL.Query().Get("role")),
				ActiveOnly: r.URL.Query().Get("active_only") == "true",
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

		responses.WriteSuccess(w, userPageResponse{
			Users:      membersvc.NewUserDTOs(page.Users),
			NextCursor: page.NextCursor,
		})
	}
}

// GetUser returns a single member.
func GetUser(svc membersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		user, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, membersvc.NewUserDTO(user))
	}
}

// CreateUser registers a member on behalf of an admin. When no password is
// supplied the generated temporary one is returned exactly once.
func CreateUser(svc membersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member service unavailable"))
			return
		}

		var payload createUserRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := createUserResponse{User: membersvc.NewUserDTO(result.User)}
		if result.TempPassword != "" {
			resp.TempPassword = &result.TempPassword
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// UpdateUser applies a partial edit to a member.
func UpdateUser(svc membersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		var payload updateUserRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toUpdateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, membersvc.NewUserDTO(user))
	}
}

// DeactivateUser soft-disables a member account.
func DeactivateUser(svc membersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

type userPageResponse struct {
	Users      []membersvc.UserDTO `json:"users"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

type createUserRequest struct {
	Name     string  `json:"name" validate:"required,max=200"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password,omitempty" validate:"omitempty,min=8"`
	Role     string  `json:"role" validate:"required,oneof=admin reader"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=30"`
}

func (r createUserRequest) toCreateInput() (membersvc.CreateUserInput, error) {
	role, err := enums.ParseUserRole(strings.TrimSpace(r.Role))
	if err != nil {
		return membersvc.CreateUserInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role")
	}
	return membersvc.CreateUserInput{
		Name:     strings.TrimSpace(r.Name),
		Email:    r.Email,
		Password: r.Password,
		Role:     role,
		Phone:    r.Phone,
	}, nil
}

type createUserResponse struct {
	User         *membersvc.UserDTO `json:"user"`
	TempPassword *string            `json:"temp_password,omitempty"`
}

type updateUserRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=admin reader"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (r updateUserRequest) toUpdateInput() (membersvc.UpdateUserInput, error) {
	input := membersvc.UpdateUserInput{
		Name:     r.Name,
		Phone:    r.Phone,
		IsActive: r.IsActive,
	}
	if r.Role != nil {
		role, err := enums.ParseUserRole(strings.TrimSpace(*r.Role))
		if err != nil {
			return membersvc.UpdateUserInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role")
		}
		input.Role = &role
	}
	return input, nil
}
