// internal/store/commit.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"commit-monitor/internal/model"
)

const commitColumns = `
	id, commit_hash, repository_id, author, author_email, message,
	timestamp_commit, timestamp_logged, branch, repository_name,
	changed_files, metadata`

// UpsertCommit inserts or updates a commit keyed by the unique
// (commit_hash, repository_id) pair. On conflict every mutable field is
// overwritten with the new values; identity is untouched. Each call is a
// single atomic statement, so concurrent application of the same payload
// from the webhook path and the reconciliation path is safe.
func (p *Postgres) UpsertCommit(ctx context.Context, arg UpsertCommitParams) (int64, error) {
	files, err := json.Marshal(changedFilesOrEmpty(arg.ChangedFiles))
	if err != nil {
		return 0, fmt.Errorf("marshal changed files: %w", err)
	}
	meta, err := json.Marshal(metadataOrEmpty(arg.Metadata))
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	var id int64
	err = p.pool.QueryRow(ctx, `
		INSERT INTO commits (commit_hash, repository_id, author, author_email, message,
		                     timestamp_commit, branch, repository_name, changed_files, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (commit_hash, repository_id) DO UPDATE SET
			author = EXCLUDED.author,
			author_email = EXCLUDED.author_email,
			message = EXCLUDED.message,
			timestamp_commit = EXCLUDED.timestamp_commit,
			branch = EXCLUDED.branch,
			repository_name = EXCLUDED.repository_name,
			changed_files = EXCLUDED.changed_files,
			metadata = EXCLUDED.metadata
		RETURNING id`,
		arg.CommitHash, arg.RepositoryID, arg.Author, arg.AuthorEmail, arg.Message,
		arg.TimestampCommit, arg.Branch, arg.RepositoryName, files, meta,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert commit %s: %w", arg.CommitHash, err)
	}
	return id, nil
}

// GetCommitByHash looks up a commit within one repository. Repository
// scoping is mandatory: hashes are only unique per repository, so an
// unscoped lookup cannot be made correct and is not offered.
func (p *Postgres) GetCommitByHash(ctx context.Context, commitHash string, repositoryID int64) (model.Commit, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+commitColumns+`
		FROM commits
		WHERE commit_hash = $1 AND repository_id = $2`,
		commitHash, repositoryID,
	)
	return scanCommit(row)
}

// ListCommitsByRepository returns up to limit commits for one repository,
// newest first.
func (p *Postgres) ListCommitsByRepository(ctx context.Context, repositoryID int64, limit int) ([]model.Commit, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+commitColumns+`
		FROM commits
		WHERE repository_id = $1
		ORDER BY timestamp_commit DESC
		LIMIT $2`,
		repositoryID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCommits(rows)
}

// GetRecentCommits returns the most recently authored commits across all
// repositories, optionally filtered by author display name.
func (p *Postgres) GetRecentCommits(ctx context.Context, limit int, author string) ([]model.Commit, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+commitColumns+`
		FROM commits
		WHERE ($2 = '' OR author = $2)
		ORDER BY timestamp_commit DESC
		LIMIT $1`,
		limit, author,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCommits(rows)
}

// LatestCommitTime returns the newest commit timestamp recorded for a
// repository. The second return is false when the repository has no
// commits yet.
func (p *Postgres) LatestCommitTime(ctx context.Context, repositoryID int64) (time.Time, bool, error) {
	var ts *time.Time
	err := p.pool.QueryRow(ctx, `
		SELECT MAX(timestamp_commit) FROM commits WHERE repository_id = $1`,
		repositoryID,
	).Scan(&ts)
	if err != nil {
		return time.Time{}, false, err
	}
	if ts == nil {
		return time.Time{}, false, nil
	}
	return *ts, true, nil
}

// ListUnanalyzedCommits returns commits with no completed interaction for
// the given backend, oldest-received first, restricted to the recency
// window to keep backlog re-scans bounded. Commits that have accumulated
// maxAttempts failed interactions for the backend are excluded; that is
// the bounded-retry policy replacing the legacy retry-forever behavior.
// Commits with no repository association are not eligible until
// EnsureRepository back-fills them.
func (p *Postgres) ListUnanalyzedCommits(ctx context.Context, backend string, window time.Duration, maxAttempts int) ([]model.Commit, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+commitColumns+`
		FROM commits c
		WHERE c.repository_id IS NOT NULL
		  AND c.timestamp_logged > now() - $2::interval
		  AND NOT EXISTS (
			SELECT 1 FROM analysis_interactions ai
			WHERE ai.commit_id = c.id AND ai.backend = $1 AND ai.status = 'completed')
		  AND (
			SELECT COUNT(*) FROM analysis_interactions ai
			WHERE ai.commit_id = c.id AND ai.backend = $1 AND ai.status = 'failed') < $3
		ORDER BY c.timestamp_logged ASC`,
		backend, window.String(), maxAttempts,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCommits(rows)
}

// Statistics returns the monitoring snapshot. Each count is its own query;
// the result is not transactionally consistent and must not be used for
// correctness-critical logic.
func (p *Postgres) Statistics(ctx context.Context) (model.Statistics, error) {
	var s model.Statistics
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM commits`).Scan(&s.TotalCommits); err != nil {
		return model.Statistics{}, err
	}
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT author) FROM commits`).Scan(&s.UniqueAuthors); err != nil {
		return model.Statistics{}, err
	}
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM analysis_interactions`).Scan(&s.TotalInteractions); err != nil {
		return model.Statistics{}, err
	}
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ingest_events WHERE processed = FALSE`).Scan(&s.UnprocessedEvents); err != nil {
		return model.Statistics{}, err
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommit(row rowScanner) (model.Commit, error) {
	var (
		c      model.Commit
		repoID *int64
		files  []byte
		meta   []byte
	)
	err := row.Scan(
		&c.ID, &c.CommitHash, &repoID, &c.Author, &c.AuthorEmail, &c.Message,
		&c.TimestampCommit, &c.TimestampLogged, &c.Branch, &c.RepositoryName,
		&files, &meta,
	)
	if err != nil {
		return model.Commit{}, err
	}
	if repoID != nil {
		c.RepositoryID = *repoID
	}
	if len(files) > 0 {
		if err := json.Unmarshal(files, &c.ChangedFiles); err != nil {
			return model.Commit{}, fmt.Errorf("decode changed files for commit %s: %w", c.CommitHash, err)
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return model.Commit{}, fmt.Errorf("decode metadata for commit %s: %w", c.CommitHash, err)
		}
	}
	return c, nil
}

func collectCommits(rows pgx.Rows) ([]model.Commit, error) {
	var commits []model.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

func changedFilesOrEmpty(files []string) []string {
	if files == nil {
		return []string{}
	}
	return files
}

func metadataOrEmpty(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
