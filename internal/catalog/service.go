package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rpattn/crmimport/internal/domain"
	"github.com/rpattn/crmimport/internal/repository"

	"github.com/google/uuid"
)

// Service exposes the importable field catalog and pipeline stages. Imports
// consult it to know which target fields exist for a record type and which
// stages a stage value mapping may resolve to.
type Service struct {
	customFields repository.CustomFieldRepository
	stages       repository.PipelineStageRepository
}

// NewService wires the catalog service with its repositories.
func NewService(customFields repository.CustomFieldRepository, stages repository.PipelineStageRepository) *Service {
	return &Service{
		customFields: customFields,
		stages:       stages,
	}
}

// Fields returns the standard fields for a record type merged with the
// organization's custom field definitions. Standard fields win key collisions.
func (s *Service) Fields(ctx context.Context, organizationID uuid.UUID, recordType domain.RecordType) ([]domain.Field, error) {
	if !recordType.Valid() {
		return nil, fmt.Errorf("unsupported record type %q", recordType)
	}
	custom, err := s.customFields.List(ctx, organizationID, recordType)
	if err != nil {
		return nil, fmt.Errorf("failed to load custom fields: %w", err)
	}
	return domain.MergeFields(domain.StandardFields(recordType), custom), nil
}

// CreateCustomField registers a new custom field definition. Keys are
// normalized to snake_case and may not shadow a standard field.
func (s *Service) CreateCustomField(ctx context.Context, organizationID uuid.UUID, recordType domain.RecordType, key, label string, kind domain.FieldKind, options []string, required bool) (domain.CustomField, error) {
	if !recordType.Valid() {
		return domain.CustomField{}, fmt.Errorf("unsupported record type %q", recordType)
	}
	if !kind.Valid() {
		return domain.CustomField{}, fmt.Errorf("unsupported field kind %q", kind)
	}

	normalized := normalizeFieldKey(key)
	if normalized == "" {
		return domain.CustomField{}, fmt.Errorf("custom field key is required")
	}
	for _, standard := range domain.StandardFields(recordType) {
		if standard.Key == normalized {
			return domain.CustomField{}, fmt.Errorf("custom field key %q shadows a standard field", normalized)
		}
	}
	if kind == domain.FieldKindEnum && len(options) == 0 {
		return domain.CustomField{}, fmt.Errorf("enum custom fields require at least one option")
	}

	if label = strings.TrimSpace(label); label == "" {
		label = normalized
	}

	field, err := s.customFields.Create(ctx, domain.NewCustomField(organizationID, recordType, normalized, label, kind, options, required))
	if err != nil {
		return domain.CustomField{}, fmt.Errorf("failed to create custom field: %w", err)
	}
	return field, nil
}

// Stages returns the organization's pipeline stages in pipeline order.
func (s *Service) Stages(ctx context.Context, organizationID uuid.UUID) ([]domain.PipelineStage, error) {
	stages, err := s.stages.List(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline stages: %w", err)
	}
	return stages, nil
}

// CreateStage appends a named stage at the given pipeline position.
func (s *Service) CreateStage(ctx context.Context, organizationID uuid.UUID, name string, position int) (domain.PipelineStage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.PipelineStage{}, fmt.Errorf("stage name is required")
	}
	stage, err := s.stages.Create(ctx, domain.NewPipelineStage(organizationID, name, position))
	if err != nil {
		return domain.PipelineStage{}, fmt.Errorf("failed to create pipeline stage: %w", err)
	}
	return stage, nil
}

var fieldKeyInvalidChars = regexp.MustCompile(`[^a-z0-9_]+`)

func normalizeFieldKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	key = fieldKeyInvalidChars.ReplaceAllString(key, "")
	return strings.Trim(key, "_")
}
