package repository

import (
	"context"
	"errors"

	"github.com/rpattn/crmimport/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned by lookup operations when no row matches.
var ErrNotFound = errors.New("not found")

// ContactRepository defines the interface for contact persistence.
type ContactRepository interface {
	Create(ctx context.Context, contact domain.Contact) (domain.Contact, error)
	Update(ctx context.Context, contact domain.Contact) (domain.Contact, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Contact, error)
	// FindByEmail matches on the normalized (lowercased, trimmed) address
	// within an organization.
	FindByEmail(ctx context.Context, organizationID uuid.UUID, email string) (domain.Contact, error)
	// FindByName matches on the exact normalized (first name, last name)
	// pair, oldest contact first.
	FindByName(ctx context.Context, organizationID uuid.UUID, firstName, lastName string) (domain.Contact, error)
	List(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]domain.Contact, error)
}

// DealRepository defines the interface for deal persistence.
type DealRepository interface {
	Create(ctx context.Context, deal domain.Deal) (domain.Deal, error)
	Update(ctx context.Context, deal domain.Deal) (domain.Deal, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Deal, error)
	// FindByNameAndContact matches on the normalized (lowercased, trimmed)
	// deal name scoped to a contact within an organization.
	FindByNameAndContact(ctx context.Context, organizationID, contactID uuid.UUID, name string) (domain.Deal, error)
	List(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]domain.Deal, error)
}

// PipelineStageRepository defines the interface for pipeline stage persistence.
type PipelineStageRepository interface {
	Create(ctx context.Context, stage domain.PipelineStage) (domain.PipelineStage, error)
	List(ctx context.Context, organizationID uuid.UUID) ([]domain.PipelineStage, error)
}

// CustomFieldRepository defines the interface for custom field definitions.
type CustomFieldRepository interface {
	Create(ctx context.Context, field domain.CustomField) (domain.CustomField, error)
	List(ctx context.Context, organizationID uuid.UUID, recordType domain.RecordType) ([]domain.CustomField, error)
}

// ImportJobRepository defines the interface for import job lifecycle state.
type ImportJobRepository interface {
	Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error)
	// GetByID loads the job with its retained row errors.
	GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error)
	// List returns jobs without row errors loaded; use GetByID for details.
	List(ctx context.Context, organizationID *uuid.UUID, statuses []domain.ImportJobStatus, limit, offset int) ([]domain.ImportJob, error)
	// MarkProcessing claims a queued job. It returns
	// ErrImportJobStatusConflict when the job is not claimable.
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	// UpdateProgress persists absolute counters and appends the given batch
	// of new row errors.
	UpdateProgress(ctx context.Context, id uuid.UUID, processed, created, updated, skipped int, rowErrors []domain.RowError, errorsTruncated int) error
	MarkCompleted(ctx context.Context, id uuid.UUID, skippedFilePath string) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}
