// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"commit-monitor/internal/agent"
	"commit-monitor/internal/model"
	"commit-monitor/internal/store"
	"commit-monitor/internal/webhook"
)

// Scheduler is the single background reconciliation loop. Each cycle it
// drains unprocessed ingest events, then dispatches every unanalyzed
// commit to the analysis backends. It owns no OS concerns: shutdown
// arrives solely through the context passed to Run, and that context is
// propagated into in-flight backend calls.
type Scheduler struct {
	db         store.Store
	ingestor   *webhook.Ingestor
	dispatcher *agent.Dispatcher
	logger     *slog.Logger

	pollInterval   time.Duration
	healthInterval time.Duration
	window         time.Duration
	maxAttempts    int

	enableAgents   bool
	enableWebhooks bool
}

// Options configures a Scheduler.
type Options struct {
	PollInterval   time.Duration
	HealthInterval time.Duration
	AnalysisWindow time.Duration
	MaxAttempts    int
	EnableAgents   bool
	EnableWebhooks bool
}

// CycleSummary reports one reconciliation cycle for the manual trigger
// and the status endpoints.
type CycleSummary struct {
	EventsProcessed int          `json:"events_processed"`
	CommitsAnalyzed int          `json:"commits_analyzed"`
	HealthStatus    HealthStatus `json:"health_status"`
}

// HealthStatus is a read-only snapshot of component reachability and
// aggregate counts.
type HealthStatus struct {
	Timestamp  time.Time         `json:"timestamp"`
	Storage    string            `json:"storage"`
	Backends   map[string]string `json:"backends"`
	Statistics *model.Statistics `json:"statistics,omitempty"`
}

// New creates a Scheduler.
func New(db store.Store, ingestor *webhook.Ingestor, dispatcher *agent.Dispatcher, opts Options, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		db:             db,
		ingestor:       ingestor,
		dispatcher:     dispatcher,
		logger:         logger,
		pollInterval:   opts.PollInterval,
		healthInterval: opts.HealthInterval,
		window:         opts.AnalysisWindow,
		maxAttempts:    opts.MaxAttempts,
		enableAgents:   opts.EnableAgents,
		enableWebhooks: opts.EnableWebhooks,
	}
}

// Run executes reconciliation cycles on the poll interval until ctx is
// cancelled, plus a less frequent read-only health sweep. Cancellation is
// checked at the top of every cycle and at each sleep boundary; an
// interrupted cycle leaves no partially-applied state because every
// upsert and processed-flag flip is individually atomic.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Starting reconciliation scheduler",
		"poll_interval", s.pollInterval.String(),
		"health_interval", s.healthInterval.String(),
		"agents_enabled", s.enableAgents,
		"webhook_processing_enabled", s.enableWebhooks)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	healthTicker := time.NewTicker(s.healthInterval)
	defer healthTicker.Stop()

	s.runCycle(ctx) // Initial cycle

	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)
		case <-healthTicker.C:
			health := s.CheckHealth(ctx)
			s.logger.Info("Health sweep completed",
				"storage", health.Storage, "backends", health.Backends)
		case <-ctx.Done():
			s.logger.Info("Scheduler shutting down", "reason", ctx.Err())
			return
		}
	}
}

// RunOnce performs one immediate reconciliation cycle and returns its
// summary. Used by the manual trigger endpoint.
func (s *Scheduler) RunOnce(ctx context.Context) CycleSummary {
	events := s.processEvents(ctx)
	analyzed := s.processUnanalyzed(ctx)
	return CycleSummary{
		EventsProcessed: events,
		CommitsAnalyzed: analyzed,
		HealthStatus:    s.CheckHealth(ctx),
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	events := s.processEvents(ctx)
	analyzed := s.processUnanalyzed(ctx)
	if events > 0 || analyzed > 0 {
		s.logger.Info("Reconciliation cycle completed",
			"events_processed", events, "commits_analyzed", analyzed)
	}
}

// processEvents replays every unprocessed event, oldest first. Failures
// are isolated per event: one bad payload is logged and skipped, the rest
// of the batch continues, and the bad event stays unprocessed for the
// next cycle.
func (s *Scheduler) processEvents(ctx context.Context) int {
	if !s.enableWebhooks {
		return 0
	}

	events, err := s.db.ListUnprocessedEvents(ctx)
	if err != nil {
		s.logger.Error("Failed to list unprocessed events", "error", err)
		return 0
	}

	processed := 0
	for _, event := range events {
		if ctx.Err() != nil {
			return processed
		}
		if err := s.ingestor.ApplyEvent(ctx, event); err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Error("Failed to replay event", "event_id", event.ID, "kind", event.Kind, "error", err)
			}
			continue
		}
		processed++
	}
	return processed
}

// processUnanalyzed dispatches every commit still lacking a completed
// interaction for some backend. The per-backend listing keeps a commit
// eligible for the backends that have not succeeded yet while never
// re-running the ones that have.
func (s *Scheduler) processUnanalyzed(ctx context.Context) int {
	if !s.enableAgents {
		return 0
	}

	pending := make(map[int64]model.Commit)
	pendingBackends := make(map[int64][]agent.Backend)
	for _, backend := range s.dispatcher.Backends() {
		commits, err := s.db.ListUnanalyzedCommits(ctx, backend.Name(), s.window, s.maxAttempts)
		if err != nil {
			s.logger.Error("Failed to list unanalyzed commits", "backend", backend.Name(), "error", err)
			continue
		}
		for _, c := range commits {
			pending[c.ID] = c
			pendingBackends[c.ID] = append(pendingBackends[c.ID], backend)
		}
	}

	analyzed := 0
	for id, commit := range pending {
		if ctx.Err() != nil {
			return analyzed
		}
		s.dispatcher.DispatchTo(ctx, commit, pendingBackends[id])
		analyzed++
	}
	return analyzed
}

// CheckHealth reports storage and backend reachability plus the current
// statistics snapshot. It is read-only and safe to call from the health
// endpoint concurrently with a running cycle.
func (s *Scheduler) CheckHealth(ctx context.Context) HealthStatus {
	health := HealthStatus{
		Timestamp: time.Now().UTC(),
		Storage:   "ok",
		Backends:  make(map[string]string),
	}

	if err := s.db.Ping(ctx); err != nil {
		health.Storage = err.Error()
	} else if stats, err := s.db.Statistics(ctx); err == nil {
		health.Statistics = &stats
	}

	for _, backend := range s.dispatcher.Backends() {
		if err := backend.Healthy(ctx); err != nil {
			health.Backends[backend.Name()] = err.Error()
		} else {
			health.Backends[backend.Name()] = "ok"
		}
	}
	return health
}
