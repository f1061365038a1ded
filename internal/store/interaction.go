// internal/store/interaction.go
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"commit-monitor/internal/model"
)

// CreateInteraction appends one audit record for a backend invocation.
// Interactions are append-only; a failed record never blocks a later
// completed one for the same (commit, backend).
func (p *Postgres) CreateInteraction(ctx context.Context, arg CreateInteractionParams) (int64, error) {
	input, err := json.Marshal(metadataOrEmpty(arg.Input))
	if err != nil {
		return 0, fmt.Errorf("marshal interaction input: %w", err)
	}
	output, err := json.Marshal(metadataOrEmpty(arg.Output))
	if err != nil {
		return 0, fmt.Errorf("marshal interaction output: %w", err)
	}

	var id int64
	err = p.pool.QueryRow(ctx, `
		INSERT INTO analysis_interactions (commit_id, backend, kind, input, output, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		arg.CommitID, arg.Backend, arg.Kind, input, output, arg.Status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create interaction for commit %d: %w", arg.CommitID, err)
	}
	return id, nil
}

// UpsertAgentConfig stores a backend configuration keyed by its unique
// name, updating in place on re-registration.
func (p *Postgres) UpsertAgentConfig(ctx context.Context, arg UpsertAgentConfigParams) (int64, error) {
	configuration, err := json.Marshal(metadataOrEmpty(arg.Configuration))
	if err != nil {
		return 0, fmt.Errorf("marshal agent configuration: %w", err)
	}

	var id int64
	err = p.pool.QueryRow(ctx, `
		INSERT INTO agent_configs (name, kind, model, configuration, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			kind = EXCLUDED.kind,
			model = EXCLUDED.model,
			configuration = EXCLUDED.configuration,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING id`,
		arg.Name, arg.Kind, arg.Model, configuration, arg.IsActive,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert agent config %s: %w", arg.Name, err)
	}
	return id, nil
}

// GetAgentConfig returns the named configuration, or pgx.ErrNoRows.
func (p *Postgres) GetAgentConfig(ctx context.Context, name string) (model.AgentConfig, error) {
	var (
		c             model.AgentConfig
		configuration []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, kind, model, configuration, is_active, created_at, updated_at
		FROM agent_configs
		WHERE name = $1`,
		name,
	).Scan(&c.ID, &c.Name, &c.Kind, &c.Model, &configuration, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.AgentConfig{}, err
	}
	if len(configuration) > 0 {
		if err := json.Unmarshal(configuration, &c.Configuration); err != nil {
			return model.AgentConfig{}, fmt.Errorf("decode configuration for agent %s: %w", name, err)
		}
	}
	return c, nil
}
