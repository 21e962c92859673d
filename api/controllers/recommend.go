package controllers

import (
	"net/http"

	"github.com/libris-app/libris-backend/api/responses"
	"github.com/libris-app/libris-backend/api/validators"
	recommendsvc "github.com/libris-app/libris-backend/internal/recommend"
	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
	"github.com/libris-app/libris-backend/pkg/logger"
)

// RecommendChat runs one reading-assistant turn.
func RecommendChat(svc recommendsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assistant service unavailable"))
			return
		}

		var payload recommendsvc.ChatInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Chat(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// RecommendWelcome returns the canned assistant greeting.
func RecommendWelcome(svc recommendsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assistant service unavailable"))
			return
		}

		responses.WriteSuccess(w, svc.Welcome())
	}
}

// RecommendQuickReplies returns suggested conversation starters.
func RecommendQuickReplies(svc recommendsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assistant service unavailable"))
			return
		}

		responses.WriteSuccess(w, map[string]any{"quick_replies": svc.QuickReplies()})
	}
}
