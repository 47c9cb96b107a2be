package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sara-platform/sara-hub/internal/broker"
	"github.com/sara-platform/sara-hub/internal/chat"
	"github.com/sara-platform/sara-hub/internal/notifications"
	"github.com/sara-platform/sara-hub/pkg/auth"
	"github.com/sara-platform/sara-hub/pkg/config"
	"github.com/sara-platform/sara-hub/pkg/logger"
	"github.com/sara-platform/sara-hub/pkg/metrics"
)

const pongWait = 60 * time.Second

var validate = validator.New()

// Gateway owns the websocket endpoints: it authenticates the upgrade,
// subscribes the session to its topics, and runs the inbound read loop.
type Gateway struct {
	upgrader      websocket.Upgrader
	jwtCfg        config.JWTConfig
	hubCfg        config.HubConfig
	broker        broker.Broker
	notifications notifications.Service
	chat          chat.Service
	logg          *logger.Logger
	hub           *metrics.HubMetrics
}

// GatewayParams wires the gateway dependencies.
type GatewayParams struct {
	JWT           config.JWTConfig
	Hub           config.HubConfig
	Broker        broker.Broker
	Notifications notifications.Service
	Chat          chat.Service
	Logger        *logger.Logger
	Metrics       *metrics.HubMetrics
}

// NewGateway builds the websocket gateway.
func NewGateway(params GatewayParams) *Gateway {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	if params.Hub.AllowAnyOrigin {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return &Gateway{
		upgrader:      upgrader,
		jwtCfg:        params.JWT,
		hubCfg:        params.Hub,
		broker:        params.Broker,
		notifications: params.Notifications,
		chat:          params.Chat,
		logg:          params.Logger,
		hub:           params.Metrics,
	}
}

// authenticate resolves the caller's identity from the query token or the
// Authorization header.
func (g *Gateway) authenticate(r *http.Request) (*auth.AccessTokenClaims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		if after, ok := strings.CutPrefix(header, "Bearer "); ok {
			token = after
		}
	}
	if token == "" {
		return nil, auth.ErrNoToken
	}
	return auth.ParseAccessToken(g.jwtCfg, token)
}

// rejectAfterUpgrade completes the websocket handshake and then closes the
// connection without sending anything. Failed auth is indistinguishable from
// an immediate server-side disconnect, so the endpoint leaks nothing about
// which part of the check failed.
func (g *Gateway) rejectAfterUpgrade(w http.ResponseWriter, r *http.Request, reason string) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if g.logg != nil {
		g.logg.Warn(r.Context(), "websocket rejected: "+reason)
	}
	conn.Close()
}

// ServeNotifications handles GET /ws/notifications/{userID}. The path user
// must match the token identity; on connect the backlog of unread
// notifications is pushed before any live event.
func (g *Gateway) ServeNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		g.rejectAfterUpgrade(w, r, "malformed user id")
		return
	}
	claims, err := g.authenticate(r)
	if err != nil {
		g.rejectAfterUpgrade(w, r, "unauthenticated")
		return
	}
	if claims.UserID != userID {
		g.rejectAfterUpgrade(w, r, "identity mismatch")
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ctx := g.logCtx(r.Context(), userID)
	session := NewSession(conn, g.hubCfg.SessionBuffer, g.hubCfg.WriteTimeout)
	go session.WritePump()

	topic := broker.NotificationsTopic(userID)
	if err := g.broker.Subscribe(topic, session); err != nil {
		if g.logg != nil {
			g.logg.Error(ctx, "subscribe failed", err)
		}
		session.Close()
		return
	}
	g.hub.IncSessions(broker.KindNotifications)
	defer func() {
		g.broker.Unsubscribe(topic, session)
		g.hub.DecSessions(broker.KindNotifications)
		session.Close()
	}()

	if err := g.notifications.PushUnread(ctx, userID); err != nil && g.logg != nil {
		g.logg.Error(ctx, "unread backlog push failed", err)
	}

	g.readNotifications(ctx, conn, userID)
}

// ServeChat handles GET /ws/chat. The session identity comes entirely from
// the token; inbound messages are routed on the read loop so one user's
// sends and bot replies keep their order.
func (g *Gateway) ServeChat(w http.ResponseWriter, r *http.Request) {
	claims, err := g.authenticate(r)
	if err != nil {
		g.rejectAfterUpgrade(w, r, "unauthenticated")
		return
	}
	userID := claims.UserID

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ctx := g.logCtx(r.Context(), userID)
	session := NewSession(conn, g.hubCfg.SessionBuffer, g.hubCfg.WriteTimeout)
	go session.WritePump()

	topic := broker.ChatTopic(userID)
	if err := g.broker.Subscribe(topic, session); err != nil {
		if g.logg != nil {
			g.logg.Error(ctx, "subscribe failed", err)
		}
		session.Close()
		return
	}
	g.hub.IncSessions(broker.KindChat)
	defer func() {
		g.broker.Unsubscribe(topic, session)
		g.hub.DecSessions(broker.KindChat)
		session.Close()
	}()

	g.readChat(ctx, conn, userID)
}

type notificationAction struct {
	Action         string `json:"action" validate:"required,oneof=mark_read get_unread_count"`
	NotificationID string `json:"notification_id" validate:"omitempty,uuid"`
}

func (g *Gateway) readNotifications(ctx context.Context, conn *websocket.Conn, userID uuid.UUID) {
	g.prepareRead(conn)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var action notificationAction
		if err := json.Unmarshal(raw, &action); err != nil || validate.Struct(action) != nil {
			if g.logg != nil {
				g.logg.Warn(ctx, "malformed notification action discarded")
			}
			continue
		}

		switch action.Action {
		case "mark_read":
			notificationID, err := uuid.Parse(action.NotificationID)
			if err != nil {
				if g.logg != nil {
					g.logg.Warn(ctx, "mark_read without notification id discarded")
				}
				continue
			}
			if err := g.notifications.MarkRead(ctx, userID, notificationID); err != nil && g.logg != nil {
				g.logg.Error(ctx, "mark_read failed", err)
			}
		case "get_unread_count":
			if err := g.notifications.PushUnreadCount(ctx, userID); err != nil && g.logg != nil {
				g.logg.Error(ctx, "unread count push failed", err)
			}
		}
	}
}

type chatInbound struct {
	RecipientID string `json:"recipient_id" validate:"required,uuid"`
	Text        string `json:"text" validate:"required,max=4000"`
}

func (g *Gateway) readChat(ctx context.Context, conn *websocket.Conn, userID uuid.UUID) {
	g.prepareRead(conn)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var inbound chatInbound
		if err := json.Unmarshal(raw, &inbound); err != nil || validate.Struct(inbound) != nil {
			if g.logg != nil {
				g.logg.Warn(ctx, "malformed chat payload discarded")
			}
			continue
		}
		recipientID, err := uuid.Parse(inbound.RecipientID)
		if err != nil {
			continue
		}

		// Routing blocks the read loop on purpose: the next inbound message
		// is not read until this one, bot reply included, is fully routed.
		if err := g.chat.HandleInbound(ctx, userID, recipientID, inbound.Text); err != nil && g.logg != nil {
			g.logg.Error(ctx, "chat routing failed", err)
		}
	}
}

func (g *Gateway) prepareRead(conn *websocket.Conn) {
	if g.hubCfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(g.hubCfg.MaxMessageBytes)
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (g *Gateway) logCtx(ctx context.Context, userID uuid.UUID) context.Context {
	if g.logg == nil {
		return ctx
	}
	return g.logg.WithUserID(ctx, userID.String())
}
