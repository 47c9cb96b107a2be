package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sara-platform/sara-hub/api/responses"
	"github.com/sara-platform/sara-hub/api/validators"
	"github.com/sara-platform/sara-hub/internal/notifications"
	pkgerrors "github.com/sara-platform/sara-hub/pkg/errors"
	"github.com/sara-platform/sara-hub/pkg/logger"
)

type createNotificationBody struct {
	Kind        string `json:"tipo" validate:"omitempty,max=32"`
	Title       string `json:"titulo" validate:"required,max=200"`
	Message     string `json:"mensaje" validate:"omitempty,max=2000"`
	ActionURL   string `json:"url_accion" validate:"omitempty,max=500"`
	ActionLabel string `json:"texto_accion" validate:"omitempty,max=100"`
	Priority    int    `json:"priority" validate:"omitempty,min=1,max=5"`
}

// CreateNotification lets collaborator services persist a notification and
// push it to the user's live sessions in one call.
func CreateNotification(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		var body createNotificationBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.Create(r.Context(), notifications.CreateParams{
			UserID:      userID,
			Kind:        body.Kind,
			Title:       body.Title,
			Message:     body.Message,
			ActionURL:   body.ActionURL,
			ActionLabel: body.ActionLabel,
			Priority:    body.Priority,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"status": "delivered"})
	}
}

// PushUserStats fans an arbitrary stats payload out to the user's open
// sessions. Nothing is persisted; a user with no sessions sees nothing.
func PushUserStats(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		var stats map[string]any
		if err := validators.DecodeJSONBody(r, &stats); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(stats) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "empty stats payload"))
			return
		}

		if err := svc.PushStats(r.Context(), userID, stats); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "pushed"})
	}
}
