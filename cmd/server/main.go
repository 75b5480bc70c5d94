package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aigoflow/multichat-service/internal/config"
	"github.com/aigoflow/multichat-service/internal/providers"
	"github.com/aigoflow/multichat-service/internal/repository"
	"github.com/aigoflow/multichat-service/internal/secrets"
	"github.com/aigoflow/multichat-service/internal/services"
	"github.com/aigoflow/multichat-service/internal/store"
	"github.com/aigoflow/multichat-service/pkg/server"
)

func main() {
	var envFile = flag.String("env", ".env", "Optional .env file to load")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Initialize database
	_ = os.MkdirAll(cfg.DataDir, 0755)
	_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.Event("info", "startup", "Server starting", map[string]interface{}{
		"http_addr": cfg.HTTPAddr,
		"db_path":   cfg.DBPath,
		"services":  cfg.Services.Names(),
	})

	repo := repository.NewSQLiteRepository(db)

	key, err := secrets.LoadOrCreateKey(cfg.SecretKey, cfg.SecretKeyPath)
	if err != nil {
		db.Event("error", "secrets.failed", "Secret key unavailable", map[string]interface{}{
			"path":  cfg.SecretKeyPath,
			"error": err.Error(),
		})
		slog.Error("Failed to load secret key", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricCollectors := services.NewCollectors(registry)

	// Initialize services
	creds := services.NewCredentialService(repo, secrets.NewSealer(key), cfg.Services)
	chatService := services.NewChatService(cfg, repo, providers.NewRegistry(cfg.Services, cfg.ProviderTimeout), creds, metricCollectors)
	feedbackService := services.NewFeedbackService(repo, cfg.Services, metricCollectors)
	metricsService := services.NewMetricsService(repo, cfg)
	authService := services.NewAuthService(cfg, repo)

	chatService.SetNotifier(metricsService)
	feedbackService.SetNotifier(metricsService)

	for _, name := range cfg.Services.Names() {
		if cfg.DefaultKeys[name] == "" {
			slog.Warn("No server key configured, users must supply their own", "service", name)
		}
	}

	db.Event("info", "services.init", "Initializing services", map[string]interface{}{
		"http_addr":    cfg.HTTPAddr,
		"nats_url":     cfg.NatsURL,
		"google_login": cfg.GoogleEnabled(),
		"guest_login":  cfg.GuestLogin,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// NATS is optional: without it the HTTP surface still works
	if cfg.NatsURL != "" {
		natsService, err := services.NewNATSService(cfg, chatService)
		if err != nil {
			db.Event("error", "nats.failed", "NATS service initialization failed", map[string]interface{}{
				"nats_url": cfg.NatsURL,
				"error":    err.Error(),
			})
			slog.Error("Failed to create NATS service, continuing without it", "error", err)
		} else {
			defer natsService.Close()

			feedbackService.SetPublisher(natsService)
			metricsService.SetPublisher(natsService)
			chatService.SetMonitor(natsService.GetMonitoringService())

			healthService := services.NewHealthService(natsService.GetConnection(), cfg, natsService.GetMonitoringService())

			go func() {
				if err := natsService.Start(ctx); err != nil {
					db.Event("error", "nats.failed", "NATS service failed", map[string]interface{}{
						"error": err.Error(),
					})
					slog.Error("NATS service failed", "error", err)
				}
			}()

			go func() {
				if err := healthService.Start(ctx); err != nil {
					db.Event("error", "health.failed", "Health service failed", map[string]interface{}{
						"error": err.Error(),
					})
					slog.Error("Health service failed", "error", err)
				}
			}()
		}
	}

	go func() {
		if err := metricsService.Start(ctx); err != nil {
			slog.Error("Metrics broadcaster failed", "error", err)
		}
	}()

	httpServer := server.NewServer(cfg.HTTPAddr, server.Deps{
		Chat:          chatService,
		Credentials:   creds,
		Auth:          authService,
		Feedback:      feedbackService,
		Metrics:       metricsService,
		Registry:      registry,
		SessionCookie: cfg.SessionCookie,
	})

	db.Event("info", "server.ready", "Server ready to accept requests", map[string]interface{}{
		"http_addr": cfg.HTTPAddr,
		"nats_url":  cfg.NatsURL,
	})

	if err := httpServer.Start(ctx); err != nil {
		db.Event("error", "http.failed", "HTTP server failed", map[string]interface{}{
			"error": err.Error(),
		})
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down server")
}
