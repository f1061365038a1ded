// internal/webhook/ingestor.go
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	custom_errors "commit-monitor/internal/errors"
	"commit-monitor/internal/model"
	"commit-monitor/internal/store"
)

// Ingestor receives GitHub webhook deliveries, persists a durable receipt
// for each one, and applies push payloads to the commit store. It never
// retries on its own: an event whose interpretation fails stays
// unprocessed and is replayed by the reconciliation scheduler.
type Ingestor struct {
	db     store.Store
	secret string
	logger *slog.Logger
}

// Receipt summarizes the synchronous outcome of one delivery.
type Receipt struct {
	EventID          int64  `json:"event_id"`
	Kind             string `json:"kind"`
	Repository       string `json:"repository"`
	Processed        bool   `json:"processed"`
	CommitsProcessed int    `json:"commits_processed"`
}

// NewIngestor creates an Ingestor. An empty secret disables signature
// verification; the caller is expected to have warned about that.
func NewIngestor(db store.Store, secret string, logger *slog.Logger) *Ingestor {
	return &Ingestor{db: db, secret: secret, logger: logger}
}

// VerifySignature checks the sha256= HMAC header against the raw body.
// Comparison is constant-time. With no secret configured every delivery
// passes.
func (i *Ingestor) VerifySignature(body []byte, signature string) bool {
	if i.secret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(i.secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// Receive handles one webhook delivery end to end: verify, persist the
// receipt, interpret, mark processed. Signature failures happen before
// any storage write. An interpretation failure leaves the event row
// unprocessed and is not an error for the delivery itself; the upstream
// platform must not be told to redeliver what we already hold durably.
func (i *Ingestor) Receive(ctx context.Context, kind string, body []byte, signature string) (Receipt, error) {
	if !i.VerifySignature(body, signature) {
		return Receipt{}, &custom_errors.ErrInvalidSignature{Header: signature}
	}

	eventKind := model.ParseEventKind(kind)
	repoRef, commitHash := extractEventSummary(eventKind, body)

	eventID, err := i.db.CreateIngestEvent(ctx, store.CreateIngestEventParams{
		Kind:          eventKind,
		RepositoryRef: repoRef,
		CommitHash:    commitHash,
		Payload:       body,
	})
	if err != nil {
		return Receipt{}, &custom_errors.ErrStorageUnavailable{Op: "ingest event receipt", Err: err}
	}

	receipt := Receipt{EventID: eventID, Kind: string(eventKind), Repository: repoRef}

	processed, err := i.interpret(ctx, eventKind, body)
	if err != nil {
		i.logger.Error("Event interpretation failed, leaving for reconciliation",
			"event_id", eventID, "kind", eventKind, "error", err)
		return receipt, nil
	}

	if err := i.db.MarkEventProcessed(ctx, eventID); err != nil {
		i.logger.Error("Failed to mark event processed", "event_id", eventID, "error", err)
		return receipt, nil
	}

	receipt.Processed = true
	receipt.CommitsProcessed = processed
	return receipt, nil
}

// ApplyEvent replays the interpretation of a stored event and flips its
// processed flag on success. The reconciliation scheduler calls this for
// every event row still marked unprocessed.
func (i *Ingestor) ApplyEvent(ctx context.Context, event model.IngestEvent) error {
	if _, err := i.interpret(ctx, event.Kind, event.Payload); err != nil {
		return err
	}
	return i.db.MarkEventProcessed(ctx, event.ID)
}

// interpret applies a payload to the commit store. The returned count is
// the number of commits upserted.
func (i *Ingestor) interpret(ctx context.Context, kind model.EventKind, body []byte) (int, error) {
	switch kind {
	case model.EventPush:
		return i.applyPush(ctx, body)
	case model.EventPullRequest:
		// PR events are recorded for traceability only; the commits they
		// reference arrive separately via push.
		return 0, nil
	default:
		// Unknown kinds are accepted and recorded but not interpreted,
		// keeping the receiver total.
		return 0, nil
	}
}

// applyPush resolves the repository, then upserts every commit in the
// payload. A malformed commit entry is skipped and logged; it never
// aborts the rest of the payload.
func (i *Ingestor) applyPush(ctx context.Context, body []byte) (int, error) {
	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode push payload: %w", err)
	}

	owner, name, err := splitFullName(payload.Repository.FullName)
	if err != nil {
		return 0, err
	}

	repoID, err := i.db.EnsureRepository(ctx, owner, name, store.RepositoryMeta{
		Description: payload.Repository.Description,
		Language:    payload.Repository.Language,
		IsPrivate:   payload.Repository.Private,
	})
	if err != nil {
		return 0, err
	}

	branch := branchFromRef(payload.Ref)
	processed := 0
	for _, c := range payload.Commits {
		if c.ID == "" {
			i.logger.Warn("Skipping malformed commit entry in push payload",
				"repository", payload.Repository.FullName)
			continue
		}
		_, err := i.db.UpsertCommit(ctx, store.UpsertCommitParams{
			CommitHash:      c.ID,
			RepositoryID:    repoID,
			Author:          c.Author.Name,
			AuthorEmail:     c.Author.Email,
			Message:         c.Message,
			TimestampCommit: c.Timestamp,
			Branch:          branch,
			RepositoryName:  payload.Repository.FullName,
			ChangedFiles:    c.changedFiles(),
			Metadata: map[string]any{
				"pusher":   payload.Pusher.Name,
				"head_sha": headSHA(payload),
				"push_ref": payload.Ref,
			},
		})
		if err != nil {
			i.logger.Error("Failed to upsert commit from push payload",
				"commit", c.ID, "repository", payload.Repository.FullName, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

// extractEventSummary pulls the repository reference and traceability
// hash out of the raw payload for the event row. Failures here are not
// fatal; the row is still recorded with what could be decoded.
func extractEventSummary(kind model.EventKind, body []byte) (repoRef, commitHash string) {
	switch kind {
	case model.EventPush:
		var p pushPayload
		if err := json.Unmarshal(body, &p); err == nil {
			repoRef = p.Repository.FullName
			if p.HeadCommit != nil {
				commitHash = p.HeadCommit.ID
			}
		}
	case model.EventPullRequest:
		var p pullRequestPayload
		if err := json.Unmarshal(body, &p); err == nil {
			repoRef = p.Repository.FullName
			commitHash = p.PullRequest.Head.SHA
		}
	default:
		var p minimalPayload
		if err := json.Unmarshal(body, &p); err == nil {
			repoRef = p.Repository.FullName
		}
	}
	return repoRef, commitHash
}

func headSHA(p pushPayload) string {
	if p.HeadCommit != nil {
		return p.HeadCommit.ID
	}
	return ""
}

func splitFullName(fullName string) (owner, name string, err error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &custom_errors.ErrInvalidRepoRef{Ref: fullName}
	}
	return parts[0], parts[1], nil
}
