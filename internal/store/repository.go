// internal/store/repository.go
package store

import (
	"context"
	"fmt"

	"commit-monitor/internal/model"
)

// EnsureRepository registers a repository if absent and refreshes its
// mutable metadata if present, keyed by the unique (owner, name) pair.
// It also back-fills repository_id on any commits previously recorded
// only by full-name text, so orphan commits become eligible for analysis.
func (p *Postgres) EnsureRepository(ctx context.Context, owner, name string, meta RepositoryMeta) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO repositories (owner, name, description, language, is_private)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner, name) DO UPDATE SET
			description = EXCLUDED.description,
			language = EXCLUDED.language,
			is_private = EXCLUDED.is_private,
			updated_at = now()
		RETURNING id`,
		owner, name, meta.Description, meta.Language, meta.IsPrivate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure repository %s/%s: %w", owner, name, err)
	}

	// Adopt commits that arrived before this repository was registered.
	_, err = p.pool.Exec(ctx, `
		UPDATE commits SET repository_id = $1
		WHERE repository_id IS NULL AND repository_name = $2`,
		id, owner+"/"+name,
	)
	if err != nil {
		return 0, fmt.Errorf("backfill commits for %s/%s: %w", owner, name, err)
	}

	return id, nil
}

// GetRepositoryByOwnerAndName returns the repository row for the pair, or
// pgx.ErrNoRows when it has never been referenced.
func (p *Postgres) GetRepositoryByOwnerAndName(ctx context.Context, owner, name string) (model.Repository, error) {
	var r model.Repository
	err := p.pool.QueryRow(ctx, `
		SELECT id, owner, name, description, language, is_private, created_at, updated_at
		FROM repositories
		WHERE owner = $1 AND name = $2`,
		owner, name,
	).Scan(&r.ID, &r.Owner, &r.Name, &r.Description, &r.Language, &r.IsPrivate, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return model.Repository{}, err
	}
	return r, nil
}
