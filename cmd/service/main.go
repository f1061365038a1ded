// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"commit-monitor/internal/agent"
	"commit-monitor/internal/api"
	"commit-monitor/internal/config"
	"commit-monitor/internal/github"
	"commit-monitor/internal/scheduler"
	"commit-monitor/internal/store"
	"commit-monitor/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	if cfg.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET is not set; webhook signature verification is disabled")
	}

	// OS signals are translated into context cancellation here; no other
	// component touches signal handling.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inability to reach storage at startup is fatal.
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	if err := dbpool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	db := store.New(dbpool)

	ingestor := webhook.NewIngestor(db, cfg.WebhookSecret, logger)

	backends := buildBackends(cfg)
	dispatcher := agent.NewDispatcher(db, backends, cfg.AgentTimeout, logger)
	if err := seedAgentConfigs(ctx, db, cfg); err != nil {
		logger.Warn("Failed to seed agent configurations", "error", err)
	}

	sched := scheduler.New(db, ingestor, dispatcher, scheduler.Options{
		PollInterval:   cfg.PollInterval,
		HealthInterval: cfg.HealthInterval,
		AnalysisWindow: cfg.AnalysisWindow,
		MaxAttempts:    cfg.MaxAnalysisAttempts,
		EnableAgents:   cfg.EnableAgents,
		EnableWebhooks: cfg.EnableWebhookProcessing,
	}, logger)

	var syncer *github.Syncer
	if cfg.GithubToken != "" {
		syncer = github.NewSyncer(db, github.NewClient(cfg.GithubToken, logger), logger)
	}

	go sched.Run(ctx)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(db, ingestor, sched, syncer, logger),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

func buildBackends(cfg *config.Config) []agent.Backend {
	return []agent.Backend{
		agent.NewOllamaBackend(agent.OllamaOptions{
			Name:         agent.BackendCodeQuality,
			Kind:         agent.KindCodeAnalysis,
			BaseURL:      cfg.OllamaBaseURL,
			Model:        cfg.CodeModel,
			Temperature:  0.1,
			SystemPrompt: agent.CodeQualitySystemPrompt,
			Timeout:      cfg.AgentTimeout,
			BuildPrompt:  agent.CodeQualityPrompt,
		}),
		agent.NewOllamaBackend(agent.OllamaOptions{
			Name:         agent.BackendCommitPatterns,
			Kind:         agent.KindCommitAnalysis,
			BaseURL:      cfg.OllamaBaseURL,
			Model:        cfg.CommitModel,
			Temperature:  0.2,
			SystemPrompt: agent.CommitPatternsSystemPrompt,
			Timeout:      cfg.AgentTimeout,
			BuildPrompt:  agent.CommitPatternsPrompt,
		}),
	}
}

// seedAgentConfigs records the stock backend configurations so they are
// auditable and editable in storage. Keyed upserts keep restarts from
// duplicating rows.
func seedAgentConfigs(ctx context.Context, db store.Store, cfg *config.Config) error {
	for _, sc := range agent.StockBackendConfigs(cfg.OllamaBaseURL, cfg.CodeModel, cfg.CommitModel) {
		_, err := db.UpsertAgentConfig(ctx, store.UpsertAgentConfigParams{
			Name:          sc.Name,
			Kind:          sc.Kind,
			Model:         sc.Model,
			Configuration: sc.Configuration,
			IsActive:      true,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
