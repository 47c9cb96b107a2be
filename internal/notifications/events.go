package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/sara-platform/sara-hub/pkg/db/models"
)

// Event type discriminators on the notification channel.
const (
	EventNotification = "notification"
	EventStatsUpdate  = "stats_update"
)

// NotificationPayload is the wire shape the platform's web clients already
// consume, hence the Spanish field names.
type NotificationPayload struct {
	ID          uuid.UUID               `json:"id"`
	Title       string                  `json:"titulo"`
	Message     string                  `json:"mensaje"`
	Kind        models.NotificationKind `json:"tipo"`
	CreatedAt   time.Time               `json:"fecha"`
	Read        bool                    `json:"leida"`
	ActionURL   string                  `json:"url_accion"`
	ActionLabel string                  `json:"texto_accion"`
}

type notificationEvent struct {
	Type         string `json:"type"`
	Notification any    `json:"notification"`
}

type statsEvent struct {
	Type  string         `json:"type"`
	Stats map[string]any `json:"stats"`
}

// readReceipt is the minimal convergence event fanned out after mark-read so
// every open tab of the same user flips the same notification.
type readReceipt struct {
	ID   uuid.UUID `json:"id"`
	Read bool      `json:"leida"`
}

func payloadFromModel(n models.Notification) NotificationPayload {
	payload := NotificationPayload{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Kind:      n.Kind,
		CreatedAt: n.CreatedAt,
		Read:      n.Read,
	}
	if n.ActionURL != nil {
		payload.ActionURL = *n.ActionURL
	}
	if n.ActionLabel != nil {
		payload.ActionLabel = *n.ActionLabel
	}
	return payload
}
