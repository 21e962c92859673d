package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/libris-app/libris-backend/api/responses"
	"github.com/libris-app/libris-backend/api/validators"
	"github.com/libris-app/libris-backend/internal/booklookup"
	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
	"github.com/libris-app/libris-backend/pkg/logger"
)

// LookupSearch proxies a free-text search against the external volumes API.
func LookupSearch(svc booklookup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lookup service unavailable"))
			return
		}

		maxResults, err := validators.ParseQueryInt(r, "max_results", 0, 1, 40)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		startIndex, err := validators.ParseQueryInt(r, "start_index", 0, 0, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		volumes, err := svc.Search(r.Context(), booklookup.SearchParams{
			Query:      strings.TrimSpace(r.URL.Query().Get("q")),
			MaxResults: maxResults,
			StartIndex: startIndex,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"volumes": volumes})
	}
}

// LookupByISBN resolves a single volume by its ISBN.
func LookupByISBN(svc booklookup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lookup service unavailable"))
			return
		}

		volume, err := svc.SearchByISBN(r.Context(), chi.URLParam(r, "isbn"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, volume)
	}
}

// LookupVolume fetches a single volume by its external id.
func LookupVolume(svc booklookup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lookup service unavailable"))
			return
		}

		volume, err := svc.GetVolume(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, volume)
	}
}
