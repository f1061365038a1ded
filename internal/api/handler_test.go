// internal/api/handler_test.go
package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"commit-monitor/internal/agent"
	"commit-monitor/internal/model"
	"commit-monitor/internal/scheduler"
	"commit-monitor/internal/store/mocks"
	"commit-monitor/internal/webhook"
)

const pushBody = `{
	"ref": "refs/heads/main",
	"repository": {"full_name": "acme/widgets"},
	"head_commit": {"id": "deadbeef"},
	"commits": [{
		"id": "deadbeef", "message": "fix bug", "timestamp": "2024-05-01T10:00:00Z",
		"author": {"name": "Ada", "email": "ada@example.com"}, "modified": ["a.py"]
	}]
}`

func newTestRouter(db *mocks.MockStore, secret string) http.Handler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ingestor := webhook.NewIngestor(db, secret, logger)
	dispatcher := agent.NewDispatcher(db, nil, time.Second, logger)
	sched := scheduler.New(db, ingestor, dispatcher, scheduler.Options{
		PollInterval:   time.Second,
		HealthInterval: time.Hour,
		AnalysisWindow: 24 * time.Hour,
		MaxAttempts:    5,
		EnableAgents:   true,
		EnableWebhooks: true,
	}, logger)
	return NewRouter(db, ingestor, sched, nil, logger)
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestReceiveWebhook(t *testing.T) {
	t.Run("accepts a signed push delivery", func(t *testing.T) {
		db := new(mocks.MockStore)
		db.On("CreateIngestEvent", mock.Anything, mock.Anything).Return(int64(7), nil).Once()
		db.On("EnsureRepository", mock.Anything, "acme", "widgets", mock.Anything).Return(int64(3), nil).Once()
		db.On("UpsertCommit", mock.Anything, mock.Anything).Return(int64(11), nil).Once()
		db.On("MarkEventProcessed", mock.Anything, int64(7)).Return(nil).Once()

		router := newTestRouter(db, "s3cret")

		req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(pushBody))
		req.Header.Set("X-GitHub-Event", "push")
		req.Header.Set("X-Hub-Signature-256", signBody("s3cret", []byte(pushBody)))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var receipt webhook.Receipt
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
		assert.True(t, receipt.Processed)
		assert.Equal(t, int64(7), receipt.EventID)
		db.AssertExpectations(t)
	})

	t.Run("rejects a bad signature with 401 and zero writes", func(t *testing.T) {
		db := new(mocks.MockStore)
		router := newTestRouter(db, "s3cret")

		req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(pushBody))
		req.Header.Set("X-GitHub-Event", "push")
		req.Header.Set("X-Hub-Signature-256", "sha256=bogus")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		db.AssertNotCalled(t, "CreateIngestEvent")
		db.AssertNotCalled(t, "UpsertCommit")
	})
}

func TestProcessEvents(t *testing.T) {
	db := new(mocks.MockStore)
	db.On("ListUnprocessedEvents", mock.Anything).Return([]model.IngestEvent{}, nil).Once()
	db.On("Ping", mock.Anything).Return(nil)
	db.On("Statistics", mock.Anything).Return(model.Statistics{}, nil)

	router := newTestRouter(db, "")

	req := httptest.NewRequest(http.MethodPost, "/process/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var summary scheduler.CycleSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 0, summary.EventsProcessed)
	assert.Equal(t, "ok", summary.HealthStatus.Storage)
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy storage returns 200", func(t *testing.T) {
		db := new(mocks.MockStore)
		db.On("Ping", mock.Anything).Return(nil)
		db.On("Statistics", mock.Anything).Return(model.Statistics{TotalCommits: 3}, nil)

		router := newTestRouter(db, "")

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unreachable storage returns 503", func(t *testing.T) {
		db := new(mocks.MockStore)
		db.On("Ping", mock.Anything).Return(assert.AnError)

		router := newTestRouter(db, "")

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGetRepositoryCommits(t *testing.T) {
	t.Run("returns commits scoped to the repository", func(t *testing.T) {
		db := new(mocks.MockStore)
		db.On("GetRepositoryByOwnerAndName", mock.Anything, "acme", "widgets").
			Return(model.Repository{ID: 3, Owner: "acme", Name: "widgets"}, nil).Once()
		db.On("ListCommitsByRepository", mock.Anything, int64(3), 20).
			Return([]model.Commit{{ID: 11, CommitHash: "deadbeef", RepositoryID: 3}}, nil).Once()

		router := newTestRouter(db, "")

		req := httptest.NewRequest(http.MethodGet, "/v1/repos/acme/widgets/commits", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var commits []model.Commit
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &commits))
		require.Len(t, commits, 1)
		assert.Equal(t, "deadbeef", commits[0].CommitHash)
	})

	t.Run("unknown repository returns 404", func(t *testing.T) {
		db := new(mocks.MockStore)
		db.On("GetRepositoryByOwnerAndName", mock.Anything, "acme", "nope").
			Return(model.Repository{}, pgx.ErrNoRows).Once()

		router := newTestRouter(db, "")

		req := httptest.NewRequest(http.MethodGet, "/v1/repos/acme/nope/commits", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid limit returns 400", func(t *testing.T) {
		db := new(mocks.MockStore)
		router := newTestRouter(db, "")

		req := httptest.NewRequest(http.MethodGet, "/v1/repos/acme/widgets/commits?limit=999", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSyncRepository_DisabledWithoutToken(t *testing.T) {
	db := new(mocks.MockStore)
	router := newTestRouter(db, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/repos/acme/widgets/sync", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetStatistics(t *testing.T) {
	db := new(mocks.MockStore)
	db.On("Statistics", mock.Anything).Return(model.Statistics{
		TotalCommits:      5,
		UniqueAuthors:     2,
		TotalInteractions: 10,
		UnprocessedEvents: 1,
	}, nil).Once()

	router := newTestRouter(db, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats model.Statistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(5), stats.TotalCommits)
	assert.Equal(t, int64(1), stats.UnprocessedEvents)
}
