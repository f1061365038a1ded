// internal/webhook/ingestor_test.go
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "commit-monitor/internal/errors"
	"commit-monitor/internal/model"
	"commit-monitor/internal/store"
	"commit-monitor/internal/store/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

const pushBody = `{
	"ref": "refs/heads/main",
	"repository": {"full_name": "acme/widgets", "private": false},
	"pusher": {"name": "ada"},
	"head_commit": {"id": "deadbeef"},
	"commits": [{
		"id": "deadbeef",
		"message": "fix bug",
		"timestamp": "2024-05-01T10:00:00Z",
		"author": {"name": "Ada", "email": "ada@example.com"},
		"added": [],
		"modified": ["a.py"],
		"removed": []
	}]
}`

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"hello":"world"}`)

	t.Run("matches a correctly signed body", func(t *testing.T) {
		ing := NewIngestor(nil, "s3cret", testLogger())
		assert.True(t, ing.VerifySignature(body, sign("s3cret", body)))
	})

	t.Run("rejects a wrong signature", func(t *testing.T) {
		ing := NewIngestor(nil, "s3cret", testLogger())
		assert.False(t, ing.VerifySignature(body, sign("other", body)))
	})

	t.Run("rejects a missing signature header", func(t *testing.T) {
		ing := NewIngestor(nil, "s3cret", testLogger())
		assert.False(t, ing.VerifySignature(body, ""))
	})

	t.Run("passes everything when no secret is configured", func(t *testing.T) {
		ing := NewIngestor(nil, "", testLogger())
		assert.True(t, ing.VerifySignature(body, ""))
	})
}

func TestReceive_Push(t *testing.T) {
	ctx := context.Background()

	t.Run("records receipt, upserts the commit and marks processed", func(t *testing.T) {
		db := new(mocks.MockStore)
		ing := NewIngestor(db, "", testLogger())

		db.On("CreateIngestEvent", ctx, mock.MatchedBy(func(arg store.CreateIngestEventParams) bool {
			return arg.Kind == model.EventPush &&
				arg.RepositoryRef == "acme/widgets" &&
				arg.CommitHash == "deadbeef"
		})).Return(int64(7), nil).Once()
		db.On("EnsureRepository", ctx, "acme", "widgets", mock.Anything).Return(int64(3), nil).Once()
		db.On("UpsertCommit", ctx, mock.MatchedBy(func(arg store.UpsertCommitParams) bool {
			return arg.CommitHash == "deadbeef" &&
				arg.RepositoryID == 3 &&
				arg.Author == "Ada" &&
				arg.Message == "fix bug" &&
				arg.Branch == "main" &&
				len(arg.ChangedFiles) == 1 && arg.ChangedFiles[0] == "a.py"
		})).Return(int64(11), nil).Once()
		db.On("MarkEventProcessed", ctx, int64(7)).Return(nil).Once()

		receipt, err := ing.Receive(ctx, "push", []byte(pushBody), "")

		require.NoError(t, err)
		assert.True(t, receipt.Processed)
		assert.Equal(t, int64(7), receipt.EventID)
		assert.Equal(t, 1, receipt.CommitsProcessed)
		db.AssertExpectations(t)
	})

	t.Run("bad signature writes nothing", func(t *testing.T) {
		db := new(mocks.MockStore)
		ing := NewIngestor(db, "s3cret", testLogger())

		_, err := ing.Receive(ctx, "push", []byte(pushBody), "sha256=bogus")

		var sigErr *custom_errors.ErrInvalidSignature
		require.ErrorAs(t, err, &sigErr)
		db.AssertNotCalled(t, "CreateIngestEvent")
		db.AssertNotCalled(t, "UpsertCommit")
	})

	t.Run("receipt failure surfaces storage unavailability", func(t *testing.T) {
		db := new(mocks.MockStore)
		ing := NewIngestor(db, "", testLogger())

		db.On("CreateIngestEvent", ctx, mock.Anything).Return(int64(0), errors.New("connection refused")).Once()

		_, err := ing.Receive(ctx, "push", []byte(pushBody), "")

		var storageErr *custom_errors.ErrStorageUnavailable
		require.ErrorAs(t, err, &storageErr)
		db.AssertNotCalled(t, "MarkEventProcessed")
	})

	t.Run("interpretation failure leaves the event unprocessed", func(t *testing.T) {
		db := new(mocks.MockStore)
		ing := NewIngestor(db, "", testLogger())

		db.On("CreateIngestEvent", ctx, mock.Anything).Return(int64(8), nil).Once()
		db.On("EnsureRepository", ctx, "acme", "widgets", mock.Anything).
			Return(int64(0), errors.New("storage down")).Once()

		receipt, err := ing.Receive(ctx, "push", []byte(pushBody), "")

		require.NoError(t, err)
		assert.False(t, receipt.Processed)
		db.AssertNotCalled(t, "MarkEventProcessed")
		db.AssertExpectations(t)
	})

	t.Run("malformed commit entries are skipped, the rest continue", func(t *testing.T) {
		body := `{
			"ref": "refs/heads/main",
			"repository": {"full_name": "acme/widgets"},
			"commits": [
				{"id": "", "message": "missing hash"},
				{"id": "cafebabe", "message": "ok", "timestamp": "2024-05-01T10:00:00Z",
				 "author": {"name": "Ada", "email": "ada@example.com"}}
			]
		}`

		db := new(mocks.MockStore)
		ing := NewIngestor(db, "", testLogger())

		db.On("CreateIngestEvent", ctx, mock.Anything).Return(int64(9), nil).Once()
		db.On("EnsureRepository", ctx, "acme", "widgets", mock.Anything).Return(int64(3), nil).Once()
		db.On("UpsertCommit", ctx, mock.MatchedBy(func(arg store.UpsertCommitParams) bool {
			return arg.CommitHash == "cafebabe"
		})).Return(int64(12), nil).Once()
		db.On("MarkEventProcessed", ctx, int64(9)).Return(nil).Once()

		receipt, err := ing.Receive(ctx, "push", []byte(body), "")

		require.NoError(t, err)
		assert.Equal(t, 1, receipt.CommitsProcessed)
		db.AssertExpectations(t)
	})
}

func TestReceive_OtherKinds(t *testing.T) {
	ctx := context.Background()

	t.Run("pull_request records the head SHA without commit writes", func(t *testing.T) {
		body := `{
			"action": "opened",
			"repository": {"full_name": "acme/widgets"},
			"pull_request": {
				"number": 42, "title": "Add feature", "state": "open",
				"user": {"login": "ada"},
				"head": {"sha": "feedface"}, "base": {"sha": "deadbeef"}
			}
		}`

		db := new(mocks.MockStore)
		ing := NewIngestor(db, "", testLogger())

		db.On("CreateIngestEvent", ctx, mock.MatchedBy(func(arg store.CreateIngestEventParams) bool {
			return arg.Kind == model.EventPullRequest && arg.CommitHash == "feedface"
		})).Return(int64(5), nil).Once()
		db.On("MarkEventProcessed", ctx, int64(5)).Return(nil).Once()

		receipt, err := ing.Receive(ctx, "pull_request", []byte(body), "")

		require.NoError(t, err)
		assert.True(t, receipt.Processed)
		assert.Equal(t, 0, receipt.CommitsProcessed)
		db.AssertNotCalled(t, "UpsertCommit")
		db.AssertExpectations(t)
	})

	t.Run("unknown kinds are accepted and recorded", func(t *testing.T) {
		db := new(mocks.MockStore)
		ing := NewIngestor(db, "", testLogger())

		db.On("CreateIngestEvent", ctx, mock.MatchedBy(func(arg store.CreateIngestEventParams) bool {
			return arg.Kind == model.EventOther
		})).Return(int64(6), nil).Once()
		db.On("MarkEventProcessed", ctx, int64(6)).Return(nil).Once()

		receipt, err := ing.Receive(ctx, "workflow_run", []byte(`{"repository":{"full_name":"acme/widgets"}}`), "")

		require.NoError(t, err)
		assert.True(t, receipt.Processed)
		db.AssertExpectations(t)
	})
}

func TestApplyEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("replays a stored push and flips the flag", func(t *testing.T) {
		db := new(mocks.MockStore)
		ing := NewIngestor(db, "", testLogger())

		db.On("EnsureRepository", ctx, "acme", "widgets", mock.Anything).Return(int64(3), nil).Once()
		db.On("UpsertCommit", ctx, mock.Anything).Return(int64(11), nil).Once()
		db.On("MarkEventProcessed", ctx, int64(21)).Return(nil).Once()

		err := ing.ApplyEvent(ctx, model.IngestEvent{
			ID:      21,
			Kind:    model.EventPush,
			Payload: []byte(pushBody),
		})

		require.NoError(t, err)
		db.AssertExpectations(t)
	})

	t.Run("does not flip the flag when replay fails", func(t *testing.T) {
		db := new(mocks.MockStore)
		ing := NewIngestor(db, "", testLogger())

		err := ing.ApplyEvent(ctx, model.IngestEvent{
			ID:      22,
			Kind:    model.EventPush,
			Payload: []byte(`not json`),
		})

		require.Error(t, err)
		db.AssertNotCalled(t, "MarkEventProcessed")
	})
}

func TestBranchFromRef(t *testing.T) {
	assert.Equal(t, "main", branchFromRef("refs/heads/main"))
	assert.Equal(t, "feature/x", branchFromRef("refs/heads/feature/x"))
	assert.Equal(t, "refs/tags/v1.0.0", branchFromRef("refs/tags/v1.0.0"))
}
