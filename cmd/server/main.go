package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/voicebridge/voicebridge/internal/api"
	"github.com/voicebridge/voicebridge/internal/auth"
	"github.com/voicebridge/voicebridge/internal/booking"
	"github.com/voicebridge/voicebridge/internal/config"
	"github.com/voicebridge/voicebridge/internal/directory"
	"github.com/voicebridge/voicebridge/internal/metrics"
	"github.com/voicebridge/voicebridge/internal/notify"
	"github.com/voicebridge/voicebridge/internal/routing"
	"github.com/voicebridge/voicebridge/internal/schedule"
	"github.com/voicebridge/voicebridge/internal/session"
	"github.com/voicebridge/voicebridge/internal/speech"
	"github.com/voicebridge/voicebridge/internal/storage"
	"github.com/voicebridge/voicebridge/internal/telephony"
	"github.com/voicebridge/voicebridge/pkg/middleware"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Str("public_base_url", cfg.PublicBaseURL).
		Str("log_level", cfg.LogLevel).
		Msg("starting voicebridge orchestrator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Call record storage
	store := buildStore(ctx)

	// Tenant directory
	dir := buildDirectory(ctx, cfg)

	// Presence backend for web-phone routing
	var presence routing.Presence = directory.NoPresence{}
	if cfg.RedisAddr != "" {
		redisPresence, err := directory.NewRedisPresence(ctx, cfg.RedisAddr, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
		}
		defer redisPresence.Close()
		presence = redisPresence
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis presence enabled")
	} else {
		log.Warn().Msg("no REDIS_ADDR configured, web-phone targets will read as offline")
	}

	eval := schedule.Clock{}
	resolver := routing.NewResolver(dir, presence, eval, log.Logger)

	// Booking collaborators
	var calendar booking.Calendar
	var sender notify.Sender = notify.LogSender{Logger: log.Logger}
	if cfg.GoogleCredentials != "" {
		calendar, err = booking.NewGoogleCalendar(ctx, cfg.GoogleCredentials, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create calendar client")
		}
		gmail, err := notify.NewGmailSender(ctx, cfg.GoogleCredentials, cfg.NotifyFrom, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create gmail sender")
		}
		sender = gmail
		log.Info().Msg("google calendar and gmail enabled")
	} else {
		log.Warn().Msg("no GOOGLE_CREDENTIALS configured, bookings degrade to logged confirmations")
	}
	booker := booking.NewCoordinator(calendar, sender, eval, cfg.BookingScanStep, cfg.BookingScanHorizon, log.Logger)

	// Telephony gateway REST client
	gateway := telephony.NewRESTGateway(cfg.GatewayBaseURL, cfg.GatewayAccountID, cfg.GatewayAuthToken, log.Logger)

	// Speech backend dialer, one channel per session
	dialSpeech := func(ctx context.Context) (speech.Channel, error) {
		return speech.Dial(ctx, cfg.SpeechBackendURL, cfg.SpeechBackendKey, log.Logger)
	}

	manager := session.NewManager(cfg, dir, resolver, gateway, booker, store, dialSpeech, log.Logger)

	// HTTP handlers
	telephonyHandler := api.NewTelephonyHandler(manager, cfg, log.Logger)
	mediaHandler := api.NewMediaHandler(manager, cfg, log.Logger)
	adminHandler := api.NewAdminHandler(manager, store, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Gateway webhooks (authenticated by the gateway, not by users)
	r.Route("/telephony", func(r chi.Router) {
		r.Post("/voice", telephonyHandler.HandleInboundVoice)
		r.Post("/status", telephonyHandler.HandleCallStatus)
		r.Post("/dial-status", telephonyHandler.HandleDialStatus)
		r.Post("/voicemail-status", telephonyHandler.HandleVoicemailStatus)
	})

	// Media stream endpoint, opened by the gateway per call
	r.Get("/ws/media", mediaHandler.ServeHTTP)

	// Operator diagnostics behind auth
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Route("/admin", func(r chi.Router) {
			r.With(api.RequireOperatorOrAdmin).Get("/sessions", adminHandler.ListSessions)
			r.With(api.RequireOperatorOrAdmin).Get("/sessions/{callId}", adminHandler.GetSession)
			r.With(api.RequireOperatorOrAdmin).Get("/calls", adminHandler.GetCallRecords)
			r.With(api.RequireAdmin).Delete("/sessions/{callId}", adminHandler.EndSession)
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	cancel()

	// End live sessions before closing the listener so call records flush
	manager.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// buildStore selects the call record store from DYNAMO_MODE
func buildStore(ctx context.Context) storage.Store {
	dynCfg := storage.LoadDynamoConfig()
	if dynCfg.Mode == storage.DynamoModeNone {
		log.Warn().Msg("DYNAMO_MODE=none, call records will not be persisted")
		return storage.NewNoopStore()
	}

	store, err := storage.NewDynamoDBStore(ctx, dynCfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("mode", string(dynCfg.Mode)).Msg("failed to create DynamoDB store")
	}
	log.Info().Str("mode", string(dynCfg.Mode)).Str("table", dynCfg.CallRecordsTable).Msg("DynamoDB store enabled")
	return store
}

// buildDirectory selects the tenant directory: Postgres in production,
// a YAML fixture for local development.
func buildDirectory(ctx context.Context, cfg *config.Config) directory.Store {
	if cfg.PostgresURL != "" {
		if err := directory.Migrate(cfg.PostgresURL); err != nil {
			log.Fatal().Err(err).Msg("failed to run directory migrations")
		}
		store, err := directory.NewPostgresStore(ctx, cfg.PostgresURL, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		log.Info().Msg("postgres directory enabled")
		return store
	}

	if cfg.DirectoryFixture != "" {
		store, err := directory.NewFixtureStore(cfg.DirectoryFixture, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DirectoryFixture).Msg("failed to load directory fixture")
		}
		log.Info().Str("path", cfg.DirectoryFixture).Msg("fixture directory enabled")
		return store
	}

	log.Fatal().Msg("no directory configured, set POSTGRES_URL or DIRECTORY_FIXTURE")
	return nil
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"voicebridge-orchestrator"}`)
}
