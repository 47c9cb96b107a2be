package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sara-platform/sara-hub/api/controllers"
	"github.com/sara-platform/sara-hub/api/middleware"
	"github.com/sara-platform/sara-hub/internal/chat"
	"github.com/sara-platform/sara-hub/internal/hub"
	"github.com/sara-platform/sara-hub/internal/notifications"
	"github.com/sara-platform/sara-hub/pkg/config"
	"github.com/sara-platform/sara-hub/pkg/logger"
)

// RoleService is the role collaborator backends authenticate with on the
// internal surface.
const RoleService = "service"

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	gateway *hub.Gateway,
	notificationsService notifications.Service,
	chatService chat.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Handle("/metrics", promhttp.Handler())

	// websocket endpoints authenticate inside the gateway, never here: a
	// failed check must still complete the upgrade before closing.
	r.Get("/ws/notifications/{userID}", gateway.ServeNotifications)
	r.Get("/ws/chat", gateway.ServeChat)

	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(RoleService, logg))

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/notifications", controllers.CreateNotification(notificationsService, logg))
			r.Post("/stats", controllers.PushUserStats(notificationsService, logg))
			r.Get("/chat/{peerID}", controllers.ChatHistory(chatService, logg))
		})
	})

	return r
}
