package domain

import (
	"time"

	"github.com/google/uuid"
)

// PipelineStage represents one stage of a tenant's deal pipeline.
type PipelineStage struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Position       int       `json:"position"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewPipelineStage creates a pipeline stage with immutable pattern.
func NewPipelineStage(organizationID uuid.UUID, name string, position int) PipelineStage {
	return PipelineStage{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Name:           name,
		Position:       position,
		CreatedAt:      time.Now(),
	}
}

// WithName returns a new stage with an updated name.
func (s PipelineStage) WithName(name string) PipelineStage {
	return PipelineStage{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		Name:           name,
		Position:       s.Position,
		CreatedAt:      s.CreatedAt,
	}
}

// WithPosition returns a new stage with an updated pipeline position.
func (s PipelineStage) WithPosition(position int) PipelineStage {
	return PipelineStage{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		Name:           s.Name,
		Position:       position,
		CreatedAt:      s.CreatedAt,
	}
}
