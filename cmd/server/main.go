// Analyst Labs - guided multi-persona data analysis server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/analyst-labs/internal/agent"
	"github.com/ashureev/analyst-labs/internal/api"
	"github.com/ashureev/analyst-labs/internal/config"
	"github.com/ashureev/analyst-labs/internal/feed"
	"github.com/ashureev/analyst-labs/internal/identity"
	"github.com/ashureev/analyst-labs/internal/middleware"
	"github.com/ashureev/analyst-labs/internal/prompt"
	"github.com/ashureev/analyst-labs/internal/report"
	"github.com/ashureev/analyst-labs/internal/session"
	"github.com/ashureev/analyst-labs/internal/store"
	"github.com/ashureev/analyst-labs/internal/workflow"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	prompts, err := config.LoadPromptConfig(cfg.PromptConfig)
	if err != nil {
		slog.Error("Failed to load prompt configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "llm_provider", cfg.LLM.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Sessions do not outlive the process.
	purged, err := repo.PurgeWorkflowSessions(ctx)
	if err != nil {
		slog.Error("Failed to purge stale sessions", "error", err)
		os.Exit(1)
	}
	slog.Info("Stale session cleanup complete", "sessions_deleted", purged)

	responder, err := agent.NewService(ctx, cfg.LLM.Agent(prompts.Personas), logger)
	if err != nil {
		slog.Error("Failed to initialize persona responder", "error", err)
		os.Exit(1)
	}
	slog.Info("Persona responder initialized", "backend", responder.Backend())

	conversationLogger, err := agent.NewConversationLogger(cfg.ConversationLog.Agent(), logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	// Initialize services.
	hub := feed.NewHub(feed.DefaultBuffer)
	reg := session.NewRegistry(repo, hub, session.ConversationLogPublisher(conversationLogger))
	engine := workflow.NewEngine(responder, prompt.NewComposer(prompts.Budgets), report.NewExporter(cfg.ExportDir), logger)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, cfg.SessionTTL)
	healthHandler := api.NewHealthHandler(repo, cfg.Timeout.HealthCheck, responder.Backend())
	workflowHandler := api.NewWorkflowHandler(reg, engine, cfg.MaxUploadBytes, limiter.Middleware)
	wsHandler := feed.NewWebSocketHandler(hub, reg, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	// Session routes use identity middleware (no auth needed).
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		baseHandler.RegisterRoutes(r)
		workflowHandler.RegisterRoutes(r)
		r.Get("/ws/conversation", wsHandler.ServeHTTP)
	})

	// Persona calls can take as long as LLM_TIMEOUT per artifact, and the
	// feed is long-lived, so there is no write timeout.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: cfg.Timeout.Read,
		IdleTimeout: cfg.Timeout.Idle,
	}

	// Start TTL worker.
	session.StartTTLWorker(ctx, repo, reg, cfg.SessionTTL, session.DefaultSweepInterval, hub.Close)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Shutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
