// Alisa - Desktop AI Companion Backend
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/miravel/alisa/internal/actions"
	"github.com/miravel/alisa/internal/api"
	"github.com/miravel/alisa/internal/chat"
	"github.com/miravel/alisa/internal/companion"
	"github.com/miravel/alisa/internal/config"
	"github.com/miravel/alisa/internal/habits"
	"github.com/miravel/alisa/internal/llm"
	"github.com/miravel/alisa/internal/memory"
	"github.com/miravel/alisa/internal/middleware"
	"github.com/miravel/alisa/internal/store"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

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

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	habitMemory, err := habits.New(cfg.HabitsPath)
	if err != nil {
		// A corrupt habits file is not fatal. Learning restarts from scratch.
		slog.Warn("Failed to load habit memory, starting fresh", "error", err, "path", cfg.HabitsPath)
	}

	var gatewayOpts []actions.Option
	if cfg.NotesDir != "" {
		gatewayOpts = append(gatewayOpts, actions.WithNotesDir(cfg.NotesDir))
	}
	gateway := actions.NewGateway(actions.ShellExecutor{}, gatewayOpts...)

	client := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	})

	// Initialize services.
	hub := chat.NewHub()
	coord := chat.NewCoordinator(nil)
	policy := companion.NewPolicy(companion.DefaultPolicyConfig())
	buffer := memory.NewBuffer(uuid.NewString(), repo)

	// Initialize handlers.
	wsHandler := chat.NewHandler(hub, coord, policy, buffer, repo, client, gateway, habitMemory, cfg.FrontendURL)
	restHandler := api.NewHandler(repo, buffer, coord, policy, habitMemory)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	// REST routes.
	r.Get("/", restHandler.Root)
	r.Get("/history/summary", restHandler.HistorySummary)
	r.Post("/history/clear", restHandler.HistoryClear)
	r.Post("/normalize_hinglish/", restHandler.NormalizeHinglish)
	r.Get("/companion/stats", restHandler.CompanionStats)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Note: streaming over the WebSocket needs long-lived connections,
	// so no WriteTimeout is set.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.HealthCheck(ctx); err != nil {
		slog.Warn("LLM endpoint not reachable, replies will fail until it comes up", "error", err, "base_url", cfg.LLM.BaseURL)
	} else {
		slog.Info("LLM endpoint ready", "base_url", cfg.LLM.BaseURL, "model", cfg.LLM.Model)
	}

	// Start the spontaneous-speech loop.
	go wsHandler.RunIdleLoop(ctx, cfg.Idle.Interval)
	slog.Info("Idle companion loop started", "interval", cfg.Idle.Interval)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := habitMemory.EndSession(); err != nil {
		slog.Error("Failed to persist habit memory", "error", err)
	}

	slog.Info("Server stopped successfully")
}
