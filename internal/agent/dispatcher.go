// internal/agent/dispatcher.go
package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"commit-monitor/internal/model"
	"commit-monitor/internal/store"
)

// Result is the per-backend outcome of one dispatch.
type Result struct {
	Backend       string
	Status        model.InteractionStatus
	InteractionID int64
	Err           error
}

// Dispatcher fans a commit out to every configured backend. Backends run
// concurrently and record their interactions independently: one backend
// failing, timing out or being unreachable never blocks another backend's
// result from being recorded. There is no retry inside a dispatch; a
// commit with only failed interactions for a backend reappears in the
// next reconciliation cycle until the attempt cap is reached.
type Dispatcher struct {
	db       store.Store
	backends []Backend
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. The timeout bounds each individual
// backend call.
func NewDispatcher(db store.Store, backends []Backend, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{db: db, backends: backends, timeout: timeout, logger: logger}
}

// Backends exposes the configured backend set for health reporting.
func (d *Dispatcher) Backends() []Backend {
	return d.backends
}

// Dispatch analyzes one commit with every backend and returns one Result
// per backend. The passed ctx propagates process shutdown into in-flight
// backend calls.
func (d *Dispatcher) Dispatch(ctx context.Context, commit model.Commit) []Result {
	return d.DispatchTo(ctx, commit, d.backends)
}

// DispatchTo analyzes one commit with a subset of the configured
// backends. The reconciliation scheduler uses this to skip backends that
// already hold a completed interaction for the commit.
func (d *Dispatcher) DispatchTo(ctx context.Context, commit model.Commit, backends []Backend) []Result {
	results := make([]Result, len(backends))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for idx, backend := range backends {
		g.Go(func() error {
			res := d.dispatchOne(gctx, backend, commit)
			mu.Lock()
			results[idx] = res
			mu.Unlock()
			// Errors are carried in the Result; returning them here would
			// cancel sibling backends through gctx.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// dispatchOne runs one backend against one commit and persists the audit
// record for whichever way it went.
func (d *Dispatcher) dispatchOne(ctx context.Context, backend Backend, commit model.Commit) Result {
	logger := d.logger.With("backend", backend.Name(), "commit", commit.CommitHash)

	input := map[string]any{
		"commit_hash":   commit.CommitHash,
		"repository_id": commit.RepositoryID,
		"author":        commit.Author,
		"message":       commit.Message,
		"changed_files": commit.ChangedFiles,
	}

	if err := backend.Healthy(ctx); err != nil {
		logger.Warn("Backend unreachable, recording failed interaction", "error", err)
		return d.record(ctx, backend, commit, input, map[string]any{"error": err.Error()}, model.StatusFailed, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	output, err := backend.Analyze(callCtx, commit)
	if err != nil {
		logger.Warn("Backend analysis failed", "error", err)
		return d.record(ctx, backend, commit, input, map[string]any{"error": err.Error()}, model.StatusFailed, err)
	}

	logger.Info("Backend analysis completed")
	return d.record(ctx, backend, commit, input, map[string]any{
		"analysis":   output,
		"model_kind": backend.Kind(),
	}, model.StatusCompleted, nil)
}

func (d *Dispatcher) record(ctx context.Context, backend Backend, commit model.Commit,
	input, output map[string]any, status model.InteractionStatus, cause error) Result {

	id, err := d.db.CreateInteraction(ctx, store.CreateInteractionParams{
		CommitID: commit.ID,
		Backend:  backend.Name(),
		Kind:     backend.Kind(),
		Input:    input,
		Output:   output,
		Status:   status,
	})
	if err != nil {
		d.logger.Error("Failed to persist interaction record",
			"backend", backend.Name(), "commit", commit.CommitHash, "error", err)
		return Result{Backend: backend.Name(), Status: model.StatusFailed, Err: err}
	}
	return Result{Backend: backend.Name(), Status: status, InteractionID: id, Err: cause}
}
