package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sara-platform/sara-hub/internal/broker"
	"github.com/sara-platform/sara-hub/pkg/db/models"
	pkgerrors "github.com/sara-platform/sara-hub/pkg/errors"
	"github.com/sara-platform/sara-hub/pkg/logger"
)

// Publisher is the broker surface the delivery path needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Service is the notification delivery path: unread push on connect,
// client-issued mark-read and unread-count, and the collaborator-facing
// notify/stats operations.
type Service interface {
	PushUnread(ctx context.Context, userID uuid.UUID) error
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	PushUnreadCount(ctx context.Context, userID uuid.UUID) error
	Create(ctx context.Context, params CreateParams) error
	NotifyUser(ctx context.Context, userID uuid.UUID, payload NotificationPayload) error
	PushStats(ctx context.Context, userID uuid.UUID, stats map[string]any) error
}

type service struct {
	repo        Repository
	publisher   Publisher
	logg        *logger.Logger
	unreadLimit int
}

// ServiceParams wires the delivery path dependencies.
type ServiceParams struct {
	Repo        Repository
	Publisher   Publisher
	Logger      *logger.Logger
	UnreadLimit int
}

const defaultUnreadLimit = 10

// NewService wires the notification delivery path.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "publisher required")
	}
	limit := params.UnreadLimit
	if limit <= 0 {
		limit = defaultUnreadLimit
	}
	return &service{
		repo:        params.Repo,
		publisher:   params.Publisher,
		logg:        params.Logger,
		unreadLimit: limit,
	}, nil
}

// PushUnread publishes each unread notification individually, newest first.
// Bulk, not batched: clients render every event on its own.
func (s *service) PushUnread(ctx context.Context, userID uuid.UUID) error {
	rows, err := s.repo.ListUnread(ctx, userID, s.unreadLimit)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unread notifications")
	}

	topic := broker.NotificationsTopic(userID)
	for _, row := range rows {
		if err := s.publishEvent(ctx, topic, notificationEvent{
			Type:         EventNotification,
			Notification: payloadFromModel(row),
		}); err != nil {
			return err
		}
	}
	return nil
}

// MarkRead flips the read flag, then fans a minimal receipt out to the
// user's own topic so sibling tabs converge. Unknown or foreign ids are
// silently absorbed; marking twice is observably a no-op.
func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	result, err := s.repo.MarkRead(ctx, userID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		if s.logg != nil {
			s.logg.Debug(s.logg.WithUserID(ctx, userID.String()), "mark_read for unknown notification ignored")
		}
		return nil
	}

	return s.publishEvent(ctx, broker.NotificationsTopic(userID), notificationEvent{
		Type:         EventNotification,
		Notification: readReceipt{ID: notificationID, Read: true},
	})
}

// PushUnreadCount publishes the current unread count as a stats_update.
func (s *service) PushUnreadCount(ctx context.Context, userID uuid.UUID) error {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return s.PushStats(ctx, userID, map[string]any{"unread_notifications": count})
}

// CreateParams describes a collaborator-created notification.
type CreateParams struct {
	UserID      uuid.UUID
	Kind        string
	Title       string
	Message     string
	ActionURL   string
	ActionLabel string
	CreatedBy   *uuid.UUID
	Priority    int
}

// Create persists a notification and then publishes it live. The record is
// durable before the publish; a failed publish leaves it authoritative and
// the client re-syncs on reconnect.
func (s *service) Create(ctx context.Context, params CreateParams) error {
	if params.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.Title == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}

	row := newNotification(params)
	if err := s.repo.Create(ctx, &row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}

	return s.NotifyUser(ctx, params.UserID, payloadFromModel(row))
}

// NotifyUser publishes an already-persisted notification payload to the
// owning user's topic. This is the external real-time trigger.
func (s *service) NotifyUser(ctx context.Context, userID uuid.UUID, payload NotificationPayload) error {
	return s.publishEvent(ctx, broker.NotificationsTopic(userID), notificationEvent{
		Type:         EventNotification,
		Notification: payload,
	})
}

// PushStats publishes an arbitrary stats payload to the user's topic.
func (s *service) PushStats(ctx context.Context, userID uuid.UUID, stats map[string]any) error {
	return s.publishEvent(ctx, broker.NotificationsTopic(userID), statsEvent{
		Type:  EventStatsUpdate,
		Stats: stats,
	})
}

func newNotification(params CreateParams) models.Notification {
	kind := models.NotificationKind(params.Kind)
	if !kind.IsValid() {
		kind = models.NotificationInfo
	}
	priority := params.Priority
	if priority < 1 || priority > 5 {
		priority = 1
	}
	row := models.Notification{
		ID:        uuid.New(),
		UserID:    params.UserID,
		Kind:      kind,
		Title:     params.Title,
		Message:   params.Message,
		CreatedBy: params.CreatedBy,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
	if params.ActionURL != "" {
		row.ActionURL = &params.ActionURL
	}
	if params.ActionLabel != "" {
		row.ActionLabel = &params.ActionLabel
	}
	return row
}

func (s *service) publishEvent(ctx context.Context, topic string, event any) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode event")
	}
	if err := s.publisher.Publish(ctx, topic, raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish event")
	}
	return nil
}
