package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wagate/gateway-server-go/internal/authstate"
	"github.com/wagate/gateway-server-go/internal/config"
	"github.com/wagate/gateway-server-go/internal/database"
	"github.com/wagate/gateway-server-go/internal/gateway"
	"github.com/wagate/gateway-server-go/internal/handler"
	"github.com/wagate/gateway-server-go/internal/jobs"
	"github.com/wagate/gateway-server-go/internal/middleware"
	"github.com/wagate/gateway-server-go/internal/protocol/meow"
	"github.com/wagate/gateway-server-go/internal/redis"
	"github.com/wagate/gateway-server-go/internal/repository"
	"github.com/wagate/gateway-server-go/internal/service"
	"github.com/wagate/gateway-server-go/internal/webhook"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	pingCancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	tenantRepo := repository.NewTenantRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	contactRepo := repository.NewContactRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	mediaRepo := repository.NewMediaRepository(db.DB)

	authStore := authstate.NewStore(db.DB)

	dialer, err := meow.NewDialer(context.Background(), cfg.StoreDSN(), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize protocol dialer")
	}
	defer dialer.Close()

	notifier := webhook.NewNotifier(webhook.NewDispatcher())
	pipeline := gateway.NewPipeline(contactRepo, messageRepo, mediaRepo, notifier, cfg.MediaDir)
	registry := gateway.NewRegistry()
	supervisor := gateway.NewSupervisor(registry, dialer, authStore, sessionRepo, tenantRepo, notifier, pipeline)

	tenantService := service.NewTenantService(tenantRepo, notifier)
	messageService := service.NewMessageService(messageRepo, contactRepo, registry)
	contactService := service.NewContactService(contactRepo)

	authMiddleware := middleware.NewAuthMiddleware(tenantRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)

	tenantHandler := handler.NewTenantHandler(tenantService)
	connectionHandler := handler.NewConnectionHandler(supervisor)
	messageHandler := handler.NewMessageHandler(messageService)
	contactHandler := handler.NewContactHandler(contactService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Post("/v1/tenants", tenantHandler.Create)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)

		r.Mount("/tenants", tenantHandler.Routes())
		r.Mount("/connections", connectionHandler.Routes())
		r.Mount("/messages", messageHandler.Routes())
		r.Mount("/contacts", contactHandler.Routes())
		r.Post("/webhook/test", tenantHandler.TestWebhook)
	})

	restoreCtx, restoreCancel := context.WithTimeout(context.Background(), 60*time.Second)
	supervisor.RestoreSessions(restoreCtx)
	restoreCancel()

	monitor := jobs.NewMonitor(
		sessionRepo, tenantRepo, registry, supervisor,
		config.HealthAuditInterval, config.CleanupJobInterval, cfg.SessionRetention(),
	)
	monitor.Start()
	defer monitor.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	supervisor.Shutdown(shutdownCtx)

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
