// internal/model/models.go
package model

import (
	"time"
)

// Repository identifies a monitored GitHub repository. The (Owner, Name)
// pair is globally unique; rows are created lazily on first reference and
// never deleted by normal operation.
type Repository struct {
	ID          int64
	Owner       string
	Name        string
	Description *string
	Language    *string
	IsPrivate   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FullName returns the "owner/name" form used by GitHub payloads.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Commit is one recorded commit. Identity is (CommitHash, RepositoryID);
// a hash is only unique within a repository.
type Commit struct {
	ID              int64
	CommitHash      string
	RepositoryID    int64
	Author          string
	AuthorEmail     string
	Message         string
	TimestampCommit time.Time
	TimestampLogged time.Time
	Branch          string
	RepositoryName  string
	ChangedFiles    []string
	Metadata        map[string]any
}

// EventKind classifies an inbound webhook delivery.
type EventKind string

const (
	EventPush        EventKind = "push"
	EventPullRequest EventKind = "pull_request"
	EventOther       EventKind = "other"
)

// ParseEventKind maps a raw X-GitHub-Event value onto an EventKind.
// Unrecognized kinds collapse to EventOther; the delivery is still recorded.
func ParseEventKind(s string) EventKind {
	switch s {
	case "push":
		return EventPush
	case "pull_request":
		return EventPullRequest
	default:
		return EventOther
	}
}

// IngestEvent is the durable receipt of one webhook delivery. Processed
// transitions false to true exactly once and is never reset.
type IngestEvent struct {
	ID            int64
	Kind          EventKind
	RepositoryRef string
	CommitHash    string
	Payload       []byte
	Processed     bool
	ReceivedAt    time.Time
}

// InteractionStatus is the outcome of one backend analysis call.
type InteractionStatus string

const (
	StatusCompleted InteractionStatus = "completed"
	StatusFailed    InteractionStatus = "failed"
)

// AnalysisInteraction is the audit record of one backend invocation for
// one commit. A commit counts as analyzed by a backend once it has at
// least one completed interaction for that backend.
type AnalysisInteraction struct {
	ID        int64
	CommitID  int64
	Backend   string
	Kind      string
	Input     map[string]any
	Output    map[string]any
	Status    InteractionStatus
	CreatedAt time.Time
}

// AgentConfig is a named backend configuration blob. Upserted by name,
// never duplicated.
type AgentConfig struct {
	ID            int64
	Name          string
	Kind          string
	Model         string
	Configuration map[string]any
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Statistics is a point-in-time monitoring snapshot. The sub-counts are
// not transactionally consistent with each other.
type Statistics struct {
	TotalCommits      int64 `json:"total_commits"`
	UniqueAuthors     int64 `json:"unique_authors"`
	TotalInteractions int64 `json:"total_interactions"`
	UnprocessedEvents int64 `json:"unprocessed_events"`
}
