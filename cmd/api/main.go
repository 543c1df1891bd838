// Package main is the entry point for the API server.
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
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/driftchat/backend/internal/blob"
	"github.com/driftchat/backend/internal/config"
	"github.com/driftchat/backend/internal/generate"
	"github.com/driftchat/backend/internal/handler"
	"github.com/driftchat/backend/internal/keys"
	"github.com/driftchat/backend/internal/middleware"
	"github.com/driftchat/backend/internal/model"
	natsclient "github.com/driftchat/backend/internal/nats"
	"github.com/driftchat/backend/internal/provider"
	"github.com/driftchat/backend/internal/registry"
	"github.com/driftchat/backend/internal/store"
	"github.com/driftchat/backend/pkg/logger"
	"github.com/driftchat/backend/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "driftchat-backend", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	nc, err := natsclient.Connect(natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer nc.Close()

	feed := natsclient.NewFeed(nc)

	// Open the record store
	recordStore, err := store.Open(cfg.StorePath, feed, log)
	if err != nil {
		log.Error("failed to open record store", zap.Error(err))
		os.Exit(1)
	}
	defer recordStore.Close()

	messages := store.NewMessageStore(recordStore)

	// Blob storage for generated assets
	blobs, err := blob.NewLocalStore(cfg.BlobPath)
	if err != nil {
		log.Error("failed to open blob store", zap.Error(err))
		os.Exit(1)
	}

	// API key resolution
	resolver, err := keys.NewResolver(recordStore, cfg.KeySecret, map[string]string{
		"openai":     cfg.OpenAIAPIKey,
		"openrouter": cfg.OpenRouterAPIKey,
		"anthropic":  cfg.AnthropicAPIKey,
	}, log)
	if err != nil {
		log.Error("failed to create key resolver", zap.Error(err))
		os.Exit(1)
	}

	// Generation pipeline
	reg := registry.New()
	runner := generate.NewRunner(log)
	providers := &provider.Factory{OpenRouterURL: cfg.OpenRouterURL}

	streams := generate.NewStreamCoordinator(reg, messages, log)
	images := generate.NewImageCoordinator(reg, messages, blobs, log)

	titleInfo, _ := model.LookupModel(cfg.TitleModel)
	var titleClient provider.Client
	if titleKey, kerr := resolver.Resolve("", titleInfo.Provider); kerr != nil {
		log.Warn("no API key for title model, titles disabled", zap.Error(kerr))
	} else if c, cerr := providers.ChatClient(titleInfo.Provider, titleKey); cerr != nil {
		log.Warn("title client construction failed, titles disabled", zap.Error(cerr))
	} else {
		titleClient = c
	}
	titles := generate.NewTitleGenerator(titleClient, cfg.TitleModel, messages, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(nc, recordStore)
	generateHandler := handler.NewGenerateHandler(messages, resolver, reg, runner, streams, images, titles, providers, log)
	storageHandler := handler.NewStorageHandler(messages, blobs, log)
	subscribeHandler := handler.NewSubscribeHandler(feed, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/model", generateHandler.Generate)
		r.Post("/model/{messageID}/cancel", generateHandler.Cancel)

		r.Delete("/storage/{fileKey}", storageHandler.Delete)

		r.Get("/chats/{chatID}/subscribe", subscribeHandler.Subscribe)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// Let in-flight generations reach their terminal writes
	runner.Shutdown()

	log.Info("server stopped")
}
