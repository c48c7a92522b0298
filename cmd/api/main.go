package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/adapter/controller/http/handlers"
	"github.com/frclabs/reportcenter/internal/adapter/controller/http/middleware"
	"github.com/frclabs/reportcenter/internal/adapter/external/geoip"
	"github.com/frclabs/reportcenter/internal/adapter/external/smtp"
	"github.com/frclabs/reportcenter/internal/adapter/external/webhook"
	"github.com/frclabs/reportcenter/internal/adapter/parser"
	"github.com/frclabs/reportcenter/internal/adapter/queue"
	"github.com/frclabs/reportcenter/internal/adapter/repository/clickhouse"
	"github.com/frclabs/reportcenter/internal/config"
	"github.com/frclabs/reportcenter/internal/usecase/alerts"
	"github.com/frclabs/reportcenter/internal/usecase/channels"
	"github.com/frclabs/reportcenter/internal/usecase/events"
	"github.com/frclabs/reportcenter/internal/usecase/geoenrich"
	"github.com/frclabs/reportcenter/internal/usecase/ingest"
	"github.com/frclabs/reportcenter/internal/usecase/notifications"
	"github.com/frclabs/reportcenter/internal/usecase/retention"
	"github.com/frclabs/reportcenter/internal/usecase/servers"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := config.SetupLogger(cfg)
	logger.Info("Starting Firewall Report Center API",
		"env", cfg.App.Env,
		"port", cfg.App.Port,
	)

	defaultOrgID, err := uuid.Parse(cfg.Auth.OrgID)
	if err != nil {
		logger.Error("Invalid DEFAULT_ORG_ID", "error", err)
		os.Exit(1)
	}

	// ClickHouse
	conn, err := clickhouse.NewConnection(&cfg.ClickHouse, logger)
	if err != nil {
		logger.Error("Failed to connect to ClickHouse", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// NATS job queue
	jobQueue, err := queue.Connect(cfg.NATS.URL, cfg.NATS.EnrichSubject, logger)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer jobQueue.Close()

	// Repositories
	eventsRepo := clickhouse.NewEventsRepository(conn, logger)
	alertsRepo := clickhouse.NewAlertsRepository(conn, logger)
	channelsRepo := clickhouse.NewChannelsRepository(conn, logger)
	serversRepo := clickhouse.NewServersRepository(conn, logger)

	// Webhook secret encryption
	cipher, err := channels.NewCipher(cfg.Notify.EncryptionSecret)
	if err != nil {
		logger.Error("Failed to initialize webhook cipher", "error", err)
		os.Exit(1)
	}

	// External clients
	geoClient := geoip.NewClient(geoip.Config{
		Timeout:      cfg.GeoIP.Timeout,
		CacheTTL:     cfg.GeoIP.CacheTTL,
		MaxCacheSize: cfg.GeoIP.MaxCacheSize,
	})
	webhookClient := webhook.NewClient(cfg.Notify.WebhookTimeout, logger)
	smtpClient := smtp.NewClient(smtp.Config{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Security:  cfg.SMTP.Security,
		FromEmail: cfg.SMTP.FromEmail,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
	}, logger)

	// Services
	channelsSvc := channels.NewService(channelsRepo, cipher, logger)
	dispatcher := notifications.NewDispatcher(channelsRepo, channelsSvc, webhookClient, smtpClient, logger)
	serversSvc := servers.NewService(serversRepo, eventsRepo, logger)
	eventsSvc := events.NewService(eventsRepo, logger)
	alertsSvc := alerts.NewService(alertsRepo, logger)
	evaluator := alerts.NewEvaluator(alertsRepo, eventsRepo, dispatcher, logger)
	ingestSvc := ingest.NewService(parser.NewRegistry(), eventsRepo, jobQueue, serversSvc, logger)

	geoSvc := geoenrich.NewService(eventsRepo, geoClient, geoenrich.Config{
		LookupInterval: cfg.GeoIP.LookupInterval,
		BackfillBatch:  cfg.GeoIP.BackfillBatch,
		BackfillWindow: cfg.GeoIP.BackfillWindow,
	}, logger)

	// Background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	geoWorker := geoenrich.NewWorker(geoSvc, jobQueue, 0, logger)
	if err := geoWorker.Start(ctx); err != nil {
		logger.Error("Failed to start geo enrichment worker", "error", err)
		os.Exit(1)
	}
	defer geoWorker.Stop()

	scheduler := alerts.NewScheduler(evaluator, cfg.Alerts.SweepInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	retentionSvc := retention.NewService(
		clickhouse.NewRetentionRepository(conn, logger),
		retention.Config{
			EventDays:   cfg.Retention.EventDays,
			HistoryDays: cfg.Retention.HistoryDays,
			Interval:    cfg.Retention.Interval,
		}, logger)
	retentionSvc.Start(ctx)
	defer retentionSvc.Stop()

	// Handlers
	ingestHandler := handlers.NewIngestHandler(ingestSvc)
	eventsHandler := handlers.NewEventsHandler(eventsSvc)
	alertsHandler := handlers.NewAlertsHandler(alertsSvc, evaluator)
	channelsHandler := handlers.NewChannelsHandler(channelsSvc, dispatcher)
	geoHandler := handlers.NewGeoHandler(geoSvc)
	serversHandler := handlers.NewServersHandler(serversSvc)

	resolver := middleware.NewStaticResolver(map[string]uuid.UUID{
		cfg.Auth.APIKey: defaultOrgID,
	})

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Api-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Rate limiting
	r.Use(httprate.LimitByIP(300, time.Minute))

	// Health check (no auth required)
	r.Get("/health", handlers.HealthCheck(cfg, conn))

	// API v1 routes, all tenant-scoped
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.TenantAuth(resolver))

		r.Route("/ingest", func(r chi.Router) {
			r.Post("/{source}", ingestHandler.Ingest)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventsHandler.ListEvents)
			r.Get("/hostnames", eventsHandler.Hostnames)
			r.Get("/{id}", eventsHandler.GetEvent)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/top-attackers", eventsHandler.TopAttackers)
			r.Get("/by-country", eventsHandler.ByCountry)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Post("/rules", alertsHandler.CreateRule)
			r.Get("/rules", alertsHandler.ListRules)
			r.Get("/rules/{id}", alertsHandler.GetRule)
			r.Get("/history", alertsHandler.ListHistory)
			r.Post("/history/{id}/acknowledge", alertsHandler.Acknowledge)
			r.Post("/evaluate", alertsHandler.EvaluateNow)
		})

		r.Route("/channels", func(r chi.Router) {
			r.Post("/", channelsHandler.CreateChannel)
			r.Get("/", channelsHandler.ListChannels)
			r.Get("/{id}", channelsHandler.GetChannel)
			r.Delete("/{id}", channelsHandler.DeleteChannel)
			r.Post("/{id}/test", channelsHandler.TestChannel)
		})

		r.Route("/geo", func(r chi.Router) {
			r.Post("/backfill", geoHandler.Backfill)
			r.Get("/pending", geoHandler.Pending)
		})

		r.Route("/servers", func(r chi.Router) {
			r.Get("/", serversHandler.ListServers)
			r.Get("/stats", serversHandler.ServerStats)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}
