package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sara-platform/sara-hub/api/responses"
	"github.com/sara-platform/sara-hub/api/validators"
	"github.com/sara-platform/sara-hub/internal/chat"
	pkgerrors "github.com/sara-platform/sara-hub/pkg/errors"
	"github.com/sara-platform/sara-hub/pkg/logger"
)

// ChatHistory returns the recent conversation between two users, oldest
// first.
func ChatHistory(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}
		peerID, err := uuid.Parse(chi.URLParam(r, "peerID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid peer id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		messages, err := svc.History(r.Context(), userID, peerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"messages": messages})
	}
}
