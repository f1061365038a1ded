// internal/agent/agent.go
package agent

import (
	"context"

	"commit-monitor/internal/model"
)

// Backend is one external analysis service. Implementations must be safe
// for concurrent use: the dispatcher fans a commit out to all backends at
// once.
type Backend interface {
	// Name identifies the backend in interaction records, e.g.
	// "code-quality".
	Name() string

	// Kind is the analysis family the backend performs, e.g.
	// "code_analysis".
	Kind() string

	// Healthy reports whether the backend is reachable. It must be
	// side-effect free.
	Healthy(ctx context.Context) error

	// Analyze runs one analysis of the commit and returns the backend's
	// output. The call honors ctx for cancellation and timeout.
	Analyze(ctx context.Context, commit model.Commit) (string, error)
}
