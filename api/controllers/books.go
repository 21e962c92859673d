package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/libris-app/libris-backend/api/responses"
	"github.com/libris-app/libris-backend/api/validators"
	catalogsvc "github.com/libris-app/libris-backend/internal/catalog"
	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
	"github.com/libris-app/libris-backend/pkg/logger"
	"github.com/libris-app/libris-backend/pkg/pagination"
)

const maxListLimit = 100

// ListBooks returns one catalog page with optional filters.
func ListBooks(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		input, err := bookListInputFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, bookPageResponse{
			Books:      catalogsvc.NewBookDTOs(page.Books),
			NextCursor: page.NextCursor,
		})
	}
}

// SearchBooks is the catalog search endpoint; the q parameter is mandatory.
func SearchBooks(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		input, err := bookListInputFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.Filters.Query == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "search query required").WithDetails(map[string]any{"field": "q"}))
			return
		}

		page, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, bookPageResponse{
			Books:      catalogsvc.NewBookDTOs(page.Books),
			NextCursor: page.NextCursor,
		})
	}
}

// GetBook returns a single catalog entry.
func GetBook(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid book id"))
			return
		}

		book, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, catalogsvc.NewBookDTO(book))
	}
}

// CreateBook registers a new title in the catalog.
func CreateBook(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var payload createBookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.Create(r.Context(), payload.toCreateInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, catalogsvc.NewBookDTO(book))
	}
}

// UpdateBook applies a partial edit to a catalog entry.
func UpdateBook(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid book id"))
			return
		}

		var payload updateBookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.Update(r.Context(), id, payload.toUpdateInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, catalogsvc.NewBookDTO(book))
	}
}

// DeleteBook removes a title that has no open loans or reservations.
func DeleteBook(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid book id"))
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type bookPageResponse struct {
	Books      []catalogsvc.BookDTO `json:"books"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

type createBookRequest struct {
	Title         string  `json:"title" validate:"required,max=500"`
	Author        string  `json:"author" validate:"required,max=500"`
	ISBN          *string `json:"isbn,omitempty" validate:"omitempty,max=20"`
	Genre         *string `json:"genre,omitempty" validate:"omitempty,max=100"`
	PublishedYear *int    `json:"published_year,omitempty" validate:"omitempty,min=0,max=3000"`
	Description   *string `json:"description,omitempty"`
	CoverURL      *string `json:"cover_url,omitempty" validate:"omitempty,url"`
	TotalCopies   int     `json:"total_copies" validate:"required,min=1"`
}

func (r createBookRequest) toCreateInput() catalogsvc.CreateBookInput {
	return catalogsvc.CreateBookInput{
		Title:         strings.TrimSpace(r.Title),
		Author:        strings.TrimSpace(r.Author),
		ISBN:          r.ISBN,
		Genre:         r.Genre,
		PublishedYear: r.PublishedYear,
		Description:   r.Description,
		CoverURL:      r.CoverURL,
		TotalCopies:   r.TotalCopies,
	}
}

type updateBookRequest struct {
	Title         *string `json:"title,omitempty" validate:"omitempty,max=500"`
	Author        *string `json:"author,omitempty" validate:"omitempty,max=500"`
	ISBN          *string `json:"isbn,omitempty" validate:"omitempty,max=20"`
	Genre         *string `json:"genre,omitempty" validate:"omitempty,max=100"`
	PublishedYear *int    `json:"published_year,omitempty" validate:"omitempty,min=0,max=3000"`
	Description   *string `json:"description,omitempty"`
	CoverURL      *string `json:"cover_url,omitempty" validate:"omitempty,url"`
	TotalCopies   *int    `json:"total_copies,omitempty" validate:"omitempty,min=1"`
}

func (r updateBookRequest) toUpdateInput() catalogsvc.UpdateBookInput {
	return catalogsvc.UpdateBookInput{
		Title:         r.Title,
		Author:        r.Author,
		ISBN:          r.ISBN,
		Genre:         r.Genre,
		PublishedYear: r.PublishedYear,
		Description:   r.Description,
		CoverURL:      r.CoverURL,
		TotalCopies:   r.TotalCopies,
	}
}

func bookListInputFromQuery(r *http.Request) (catalogsvc.ListBooksInput, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxListLimit)
	if err != nil {
		return catalogsvc.ListBooksInput{}, err
	}

	filters := catalogsvc.ListBooksFilters{
		Query:         strings.TrimSpace(r.URL.Query().Get("q")),
		AvailableOnly: r.URL.Query().Get("available_only") == "true",
	}
	if author := strings.TrimSpace(r.URL.Query().Get("author")); author != "" {
		filters.Author = &author
	}
	if genre := strings.TrimSpace(r.URL.Query().Get("genre")); genre != "" {
		filters.Genre = &genre
	}

	return catalogsvc.ListBooksInput{
		Filters: filters,
		Pagination: pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		},
	}, nil
}
