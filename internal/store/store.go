// internal/store/store.go
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"commit-monitor/internal/model"
)

// Store is the single synchronization point between the webhook ingestor
// and the reconciliation scheduler. All cross-cutting invariants (unique
// (owner,name), unique (commit_hash,repository_id), monotonic processed
// flag) are enforced by the database, not by application locking.
type Store interface {
	Ping(ctx context.Context) error

	// Repository registry.
	EnsureRepository(ctx context.Context, owner, name string, meta RepositoryMeta) (int64, error)
	GetRepositoryByOwnerAndName(ctx context.Context, owner, name string) (model.Repository, error)

	// Commit store.
	UpsertCommit(ctx context.Context, arg UpsertCommitParams) (int64, error)
	GetCommitByHash(ctx context.Context, commitHash string, repositoryID int64) (model.Commit, error)
	ListCommitsByRepository(ctx context.Context, repositoryID int64, limit int) ([]model.Commit, error)
	GetRecentCommits(ctx context.Context, limit int, author string) ([]model.Commit, error)
	LatestCommitTime(ctx context.Context, repositoryID int64) (time.Time, bool, error)
	ListUnanalyzedCommits(ctx context.Context, backend string, window time.Duration, maxAttempts int) ([]model.Commit, error)

	// Ingest events.
	CreateIngestEvent(ctx context.Context, arg CreateIngestEventParams) (int64, error)
	ListUnprocessedEvents(ctx context.Context) ([]model.IngestEvent, error)
	MarkEventProcessed(ctx context.Context, eventID int64) error

	// Analysis interactions and agent configuration.
	CreateInteraction(ctx context.Context, arg CreateInteractionParams) (int64, error)
	UpsertAgentConfig(ctx context.Context, arg UpsertAgentConfigParams) (int64, error)
	GetAgentConfig(ctx context.Context, name string) (model.AgentConfig, error)

	Statistics(ctx context.Context) (model.Statistics, error)
}

// RepositoryMeta carries the mutable descriptive fields refreshed on each
// EnsureRepository call.
type RepositoryMeta struct {
	Description *string
	Language    *string
	IsPrivate   bool
}

// UpsertCommitParams is the input to UpsertCommit. On conflict all mutable
// fields are overwritten (last-write-wins, no merge).
type UpsertCommitParams struct {
	CommitHash      string
	RepositoryID    int64
	Author          string
	AuthorEmail     string
	Message         string
	TimestampCommit time.Time
	Branch          string
	RepositoryName  string
	ChangedFiles    []string
	Metadata        map[string]any
}

type CreateIngestEventParams struct {
	Kind          model.EventKind
	RepositoryRef string
	CommitHash    string
	Payload       []byte
}

type CreateInteractionParams struct {
	CommitID int64
	Backend  string
	Kind     string
	Input    map[string]any
	Output   map[string]any
	Status   model.InteractionStatus
}

type UpsertAgentConfigParams struct {
	Name          string
	Kind          string
	Model         string
	Configuration map[string]any
	IsActive      bool
}

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// New wraps an established pool. Connection establishment and migrations
// belong to the process entry point; a failure there is fatal at startup.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
