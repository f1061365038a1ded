// internal/store/mocks/store_mock.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"commit-monitor/internal/model"
	"commit-monitor/internal/store"
)

// MockStore is a testify mock of the store.Store interface.
type MockStore struct {
	mock.Mock
}

var _ store.Store = (*MockStore)(nil)

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) EnsureRepository(ctx context.Context, owner, name string, meta store.RepositoryMeta) (int64, error) {
	args := m.Called(ctx, owner, name, meta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) GetRepositoryByOwnerAndName(ctx context.Context, owner, name string) (model.Repository, error) {
	args := m.Called(ctx, owner, name)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *MockStore) UpsertCommit(ctx context.Context, arg store.UpsertCommitParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) GetCommitByHash(ctx context.Context, commitHash string, repositoryID int64) (model.Commit, error) {
	args := m.Called(ctx, commitHash, repositoryID)
	return args.Get(0).(model.Commit), args.Error(1)
}

func (m *MockStore) ListCommitsByRepository(ctx context.Context, repositoryID int64, limit int) ([]model.Commit, error) {
	args := m.Called(ctx, repositoryID, limit)
	return args.Get(0).([]model.Commit), args.Error(1)
}

func (m *MockStore) GetRecentCommits(ctx context.Context, limit int, author string) ([]model.Commit, error) {
	args := m.Called(ctx, limit, author)
	return args.Get(0).([]model.Commit), args.Error(1)
}

func (m *MockStore) LatestCommitTime(ctx context.Context, repositoryID int64) (time.Time, bool, error) {
	args := m.Called(ctx, repositoryID)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *MockStore) ListUnanalyzedCommits(ctx context.Context, backend string, window time.Duration, maxAttempts int) ([]model.Commit, error) {
	args := m.Called(ctx, backend, window, maxAttempts)
	return args.Get(0).([]model.Commit), args.Error(1)
}

func (m *MockStore) CreateIngestEvent(ctx context.Context, arg store.CreateIngestEventParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ListUnprocessedEvents(ctx context.Context) ([]model.IngestEvent, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.IngestEvent), args.Error(1)
}

func (m *MockStore) MarkEventProcessed(ctx context.Context, eventID int64) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockStore) CreateInteraction(ctx context.Context, arg store.CreateInteractionParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) UpsertAgentConfig(ctx context.Context, arg store.UpsertAgentConfigParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) GetAgentConfig(ctx context.Context, name string) (model.AgentConfig, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(model.AgentConfig), args.Error(1)
}

func (m *MockStore) Statistics(ctx context.Context) (model.Statistics, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.Statistics), args.Error(1)
}
