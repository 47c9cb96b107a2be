package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sara-platform/sara-hub/api/controllers"
	"github.com/sara-platform/sara-hub/api/routes"
	"github.com/sara-platform/sara-hub/internal/bot"
	"github.com/sara-platform/sara-hub/internal/broker"
	"github.com/sara-platform/sara-hub/internal/chat"
	"github.com/sara-platform/sara-hub/internal/hub"
	"github.com/sara-platform/sara-hub/internal/notifications"
	"github.com/sara-platform/sara-hub/internal/users"
	"github.com/sara-platform/sara-hub/pkg/config"
	"github.com/sara-platform/sara-hub/pkg/db"
	"github.com/sara-platform/sara-hub/pkg/logger"
	"github.com/sara-platform/sara-hub/pkg/metrics"
	"github.com/sara-platform/sara-hub/pkg/migrate"
	"github.com/sara-platform/sara-hub/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "hub"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "hub",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	hubMetrics := metrics.NewHubMetrics(prometheus.DefaultRegisterer)

	var redisClient *redis.Client
	var topicBroker broker.Broker
	if cfg.Broker.Backend == config.BrokerRedis {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		topicBroker = broker.NewRedis(broker.NewMemory(hubMetrics), redisClient.Raw(), logg)
	} else {
		topicBroker = broker.NewMemory(hubMetrics)
	}
	defer topicBroker.Close()

	userRepo := users.NewRepository(dbClient.DB())

	notificationsService, err := notifications.NewService(notifications.ServiceParams{
		Repo:        notifications.NewRepository(dbClient.DB()),
		Publisher:   topicBroker,
		Logger:      logg,
		UnreadLimit: cfg.Hub.UnreadPushLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	chatService, err := chat.NewService(context.Background(), chat.ServiceParams{
		Repo:      chat.NewRepository(dbClient.DB()),
		Users:     userRepo,
		Publisher: topicBroker,
		Responder: bot.NewOllamaResponder(cfg.Bot),
		Logger:    logg,
		Metrics:   hubMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create chat service", err)
		os.Exit(1)
	}

	gateway := hub.NewGateway(hub.GatewayParams{
		JWT:           cfg.JWT,
		Hub:           cfg.Hub,
		Broker:        topicBroker,
		Notifications: notificationsService,
		Chat:          chatService,
		Logger:        logg,
		Metrics:       hubMetrics,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"broker": cfg.Broker.Backend,
	})
	logg.Info(ctx, "starting hub server")

	// assign through the interface only when redis is wired, otherwise the
	// readiness probe would ping a typed-nil client
	var redisPinger controllers.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisPinger, gateway, notificationsService, chatService),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "hub server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
