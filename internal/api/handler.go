// internal/api/handler.go
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"

	custom_errors "commit-monitor/internal/errors"
	"commit-monitor/internal/github"
	"commit-monitor/internal/scheduler"
	"commit-monitor/internal/store"
	"commit-monitor/internal/webhook"
)

// maxWebhookBody bounds how much of a delivery we are willing to read.
const maxWebhookBody = 10 << 20

// Handler is the container for API dependencies.
type Handler struct {
	db        store.Store
	ingestor  *webhook.Ingestor
	scheduler *scheduler.Scheduler
	syncer    *github.Syncer
	logger    *slog.Logger
}

// NewRouter creates and configures a chi router with all API routes. The
// syncer may be nil when no GitHub token is configured; the sync endpoint
// then responds 503.
func NewRouter(db store.Store, ingestor *webhook.Ingestor, sched *scheduler.Scheduler, syncer *github.Syncer, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:        db,
		ingestor:  ingestor,
		scheduler: sched,
		syncer:    syncer,
		logger:    logger,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Post("/webhook/github", h.receiveWebhook)
	r.Post("/process/events", h.processEvents)
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/repos/{owner}/{name}/commits", h.getRepositoryCommits)
		r.Post("/repos/{owner}/{name}/sync", h.syncRepository)
		r.Get("/commits/recent", h.getRecentCommits)
		r.Get("/stats", h.getStatistics)
	})

	return r
}

// receiveWebhook handles one GitHub delivery.
// POST /webhook/github
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	kind := r.Header.Get("X-GitHub-Event")
	signature := r.Header.Get("X-Hub-Signature-256")

	receipt, err := h.ingestor.Receive(r.Context(), kind, body, signature)
	if err != nil {
		var sigErr *custom_errors.ErrInvalidSignature
		if errors.As(err, &sigErr) {
			respondWithError(w, http.StatusUnauthorized, "Invalid webhook signature")
			return
		}
		var storageErr *custom_errors.ErrStorageUnavailable
		if errors.As(err, &storageErr) {
			// No durable receipt was written; GitHub's own redelivery is
			// the recovery path for this delivery.
			h.logger.Error("Webhook receipt failed", "error", err)
			respondWithError(w, http.StatusServiceUnavailable, "Storage unavailable")
			return
		}
		h.logger.Error("Webhook handling failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, receipt)
}

// processEvents triggers one immediate reconciliation cycle.
// POST /process/events
func (h *Handler) processEvents(w http.ResponseWriter, r *http.Request) {
	summary := h.scheduler.RunOnce(r.Context())
	respondWithJSON(w, http.StatusOK, summary)
}

// healthCheck reports component reachability and statistics; it never
// mutates state.
// GET /health
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.scheduler.CheckHealth(r.Context())
	status := http.StatusOK
	if health.Storage != "ok" {
		status = http.StatusServiceUnavailable
	}
	respondWithJSON(w, status, health)
}

// getRepositoryCommits returns commits scoped to one repository.
// GET /v1/repos/{owner}/{name}/commits?limit=N
func (h *Handler) getRepositoryCommits(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	limit, ok := parseLimit(w, r, 20)
	if !ok {
		return
	}

	repo, err := h.db.GetRepositoryByOwnerAndName(r.Context(), owner, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return
		}
		h.logger.Error("Failed to get repository", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	commits, err := h.db.ListCommitsByRepository(r.Context(), repo.ID, limit)
	if err != nil {
		h.logger.Error("Failed to get commits", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, commits)
}

// syncRepository pulls commits through the GitHub REST API, feeding the
// same idempotent upsert path as webhook pushes.
// POST /v1/repos/{owner}/{name}/sync
func (h *Handler) syncRepository(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Manual sync is disabled: no GitHub token configured")
		return
	}

	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	applied, err := h.syncer.SyncRepository(r.Context(), owner, name)
	if err != nil {
		h.logger.Error("Manual repository sync failed", "owner", owner, "repo", name, "error", err)
		respondWithError(w, http.StatusBadGateway, "Failed to sync repository from GitHub")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"repository":      owner + "/" + name,
		"commits_applied": applied,
	})
}

// getRecentCommits returns the newest commits across all repositories.
// GET /v1/commits/recent?limit=N&author=name
func (h *Handler) getRecentCommits(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 20)
	if !ok {
		return
	}

	commits, err := h.db.GetRecentCommits(r.Context(), limit, r.URL.Query().Get("author"))
	if err != nil {
		h.logger.Error("Failed to get recent commits", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, commits)
}

// getStatistics returns the monitoring snapshot.
// GET /v1/stats
func (h *Handler) getStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.Statistics(r.Context())
	if err != nil {
		h.logger.Error("Failed to get statistics", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
		return 0, false
	}
	return limit, true
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
