package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/crmimport/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// customFieldRepository persists custom field definitions using raw SQL queries.
type customFieldRepository struct {
	pool *pgxpool.Pool
}

// NewCustomFieldRepository creates a custom field repository backed by pgxpool.
func NewCustomFieldRepository(pool *pgxpool.Pool) CustomFieldRepository {
	return &customFieldRepository{pool: pool}
}

// Create creates a new custom field definition
func (r *customFieldRepository) Create(ctx context.Context, field domain.CustomField) (domain.CustomField, error) {
	query := `
		INSERT INTO custom_fields (id, organization_id, record_type, key, label, kind, options, required, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		field.ID,
		field.OrganizationID,
		string(field.RecordType),
		field.Key,
		field.Label,
		string(field.Kind),
		field.Options,
		field.Required,
		field.CreatedAt,
	)
	if err != nil {
		return domain.CustomField{}, fmt.Errorf("failed to create custom field: %w", err)
	}
	return field, nil
}

// List retrieves custom field definitions for one record type
func (r *customFieldRepository) List(ctx context.Context, organizationID uuid.UUID, recordType domain.RecordType) ([]domain.CustomField, error) {
	query := `
		SELECT id, organization_id, record_type, key, label, kind, options, required, created_at
		FROM custom_fields
		WHERE organization_id = $1 AND record_type = $2
		ORDER BY created_at, key
	`
	rows, err := r.pool.Query(ctx, query, organizationID, string(recordType))
	if err != nil {
		return nil, fmt.Errorf("failed to list custom fields: %w", err)
	}
	defer rows.Close()

	fields := []domain.CustomField{}
	for rows.Next() {
		var field domain.CustomField
		var recordTypeValue, kindValue string
		if err := rows.Scan(
			&field.ID,
			&field.OrganizationID,
			&recordTypeValue,
			&field.Key,
			&field.Label,
			&kindValue,
			&field.Options,
			&field.Required,
			&field.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan custom field: %w", err)
		}
		field.RecordType = domain.RecordType(recordTypeValue)
		field.Kind = domain.FieldKind(kindValue)
		fields = append(fields, field)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate custom fields: %w", err)
	}
	return fields, nil
}
