package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/crmimport/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pipelineStageRepository persists pipeline stages using raw SQL queries.
type pipelineStageRepository struct {
	pool *pgxpool.Pool
}

// NewPipelineStageRepository creates a pipeline stage repository backed by pgxpool.
func NewPipelineStageRepository(pool *pgxpool.Pool) PipelineStageRepository {
	return &pipelineStageRepository{pool: pool}
}

// Create creates a new pipeline stage
func (r *pipelineStageRepository) Create(ctx context.Context, stage domain.PipelineStage) (domain.PipelineStage, error) {
	query := `
		INSERT INTO pipeline_stages (id, organization_id, name, position, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		stage.ID,
		stage.OrganizationID,
		stage.Name,
		stage.Position,
		stage.CreatedAt,
	)
	if err != nil {
		return domain.PipelineStage{}, fmt.Errorf("failed to create pipeline stage: %w", err)
	}
	return stage, nil
}

// List retrieves all pipeline stages for an organization in pipeline order
func (r *pipelineStageRepository) List(ctx context.Context, organizationID uuid.UUID) ([]domain.PipelineStage, error) {
	query := `
		SELECT id, organization_id, name, position, created_at
		FROM pipeline_stages
		WHERE organization_id = $1
		ORDER BY position, created_at
	`
	rows, err := r.pool.Query(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline stages: %w", err)
	}
	defer rows.Close()

	stages := []domain.PipelineStage{}
	for rows.Next() {
		var stage domain.PipelineStage
		if err := rows.Scan(
			&stage.ID,
			&stage.OrganizationID,
			&stage.Name,
			&stage.Position,
			&stage.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline stage: %w", err)
		}
		stages = append(stages, stage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pipeline stages: %w", err)
	}
	return stages, nil
}
