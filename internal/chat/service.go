package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sara-platform/sara-hub/internal/broker"
	"github.com/sara-platform/sara-hub/internal/users"
	"github.com/sara-platform/sara-hub/pkg/db/models"
	pkgerrors "github.com/sara-platform/sara-hub/pkg/errors"
	"github.com/sara-platform/sara-hub/pkg/logger"
	"github.com/sara-platform/sara-hub/pkg/metrics"
)

// Publisher is the broker surface the routing path needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Responder generates the automated reply for messages addressed to the bot.
// Generate blocks until the reply is ready or ctx expires.
type Responder interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service is the chat routing path: persist, deliver, and reply when the
// recipient is the automated responder.
type Service interface {
	HandleInbound(ctx context.Context, senderID, recipientID uuid.UUID, text string) error
	History(ctx context.Context, userID, peerID uuid.UUID, limit int) ([]Message, error)
	BotID() uuid.UUID
}

type service struct {
	repo      Repository
	userRepo  users.Repository
	publisher Publisher
	responder Responder
	logg      *logger.Logger
	hub       *metrics.HubMetrics
	botID     uuid.UUID
}

// ServiceParams wires the chat routing dependencies.
type ServiceParams struct {
	Repo      Repository
	Users     users.Repository
	Publisher Publisher
	Responder Responder
	Logger    *logger.Logger
	Metrics   *metrics.HubMetrics
}

// NewService resolves the bot identity eagerly so routing never races the
// singleton creation.
func NewService(ctx context.Context, params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "chat repository required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "publisher required")
	}
	if params.Responder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "responder required")
	}

	bot, err := params.Users.GetOrCreateBot(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve bot identity")
	}

	return &service{
		repo:      params.Repo,
		userRepo:  params.Users,
		publisher: params.Publisher,
		responder: params.Responder,
		logg:      params.Logger,
		hub:       params.Metrics,
		botID:     bot.ID,
	}, nil
}

func (s *service) BotID() uuid.UUID {
	return s.botID
}

// HandleInbound routes one message from a connected user. The message is
// durable before any delivery. When the recipient is the bot the responder is
// called synchronously and exactly one reply is routed back on success; a
// failed responder call is logged and produces no reply at all.
func (s *service) HandleInbound(ctx context.Context, senderID, recipientID uuid.UUID, text string) error {
	if senderID == uuid.Nil || recipientID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sender and recipient required")
	}
	if text == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "empty message")
	}

	toBot := recipientID == s.botID
	if !toBot {
		ok, err := s.userRepo.Exists(ctx, recipientID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve recipient")
		}
		if !ok {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithUserID(ctx, senderID.String()), "message to unknown recipient dropped")
			}
			return nil
		}
	}

	if err := s.routeMessage(ctx, senderID, recipientID, text, toBot); err != nil {
		return err
	}
	if !toBot {
		return nil
	}

	start := time.Now()
	reply, err := s.responder.Generate(ctx, text)
	s.hub.ObserveBotLatency(time.Since(start))
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithUserID(ctx, senderID.String()), "bot responder failed", err)
		}
		return nil
	}

	return s.routeMessage(ctx, s.botID, senderID, reply, true)
}

// History returns recent conversation between two users, oldest first.
func (s *service) History(ctx context.Context, userID, peerID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.repo.ListConversation(ctx, userID, peerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list conversation")
	}
	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, messageFromModel(row))
	}
	return messages, nil
}

func (s *service) routeMessage(ctx context.Context, senderID, recipientID uuid.UUID, text string, isBot bool) error {
	row := models.ChatMessage{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		IsBot:       isBot,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, &row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist message")
	}

	raw, err := json.Marshal(messageFromModel(row))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode message")
	}
	if err := s.publisher.Publish(ctx, broker.ChatTopic(recipientID), raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish message")
	}
	return nil
}
