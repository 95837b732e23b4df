package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpattn/crmimport/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// contactRepository persists contacts using raw SQL queries.
type contactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository creates a contact repository backed by pgxpool.
func NewContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &contactRepository{pool: pool}
}

func (r *contactRepository) Create(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	customJSON, err := marshalCustom(contact.Custom)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("failed to encode contact custom fields: %w", err)
	}

	query := `
		INSERT INTO contacts (id, organization_id, email, first_name, last_name, phone, company, title, address, tags, custom, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.pool.Exec(ctx, query,
		contact.ID,
		contact.OrganizationID,
		contact.Email,
		contact.FirstName,
		contact.LastName,
		contact.Phone,
		contact.Company,
		contact.Title,
		contact.Address,
		contact.Tags,
		customJSON,
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("failed to create contact: %w", err)
	}
	return contact, nil
}

func (r *contactRepository) Update(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	customJSON, err := marshalCustom(contact.Custom)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("failed to encode contact custom fields: %w", err)
	}

	query := `
		UPDATE contacts
		SET email = $2, first_name = $3, last_name = $4, phone = $5, company = $6, title = $7, address = $8, tags = $9, custom = $10, updated_at = $11
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		contact.ID,
		contact.Email,
		contact.FirstName,
		contact.LastName,
		contact.Phone,
		contact.Company,
		contact.Title,
		contact.Address,
		contact.Tags,
		customJSON,
		contact.UpdatedAt,
	)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("failed to update contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Contact{}, ErrNotFound
	}
	return contact, nil
}

func (r *contactRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Contact, error) {
	query := selectContactQuery + ` WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *contactRepository) FindByEmail(ctx context.Context, organizationID uuid.UUID, email string) (domain.Contact, error) {
	query := selectContactQuery + ` WHERE organization_id = $1 AND email <> '' AND lower(trim(email)) = lower(trim($2)) ORDER BY created_at, id LIMIT 1`
	return r.scanOne(r.pool.QueryRow(ctx, query, organizationID, email))
}

func (r *contactRepository) FindByName(ctx context.Context, organizationID uuid.UUID, firstName, lastName string) (domain.Contact, error) {
	query := selectContactQuery + ` WHERE organization_id = $1 AND lower(trim(first_name)) = lower(trim($2)) AND lower(trim(last_name)) = lower(trim($3)) ORDER BY created_at, id LIMIT 1`
	return r.scanOne(r.pool.QueryRow(ctx, query, organizationID, firstName, lastName))
}

func (r *contactRepository) List(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]domain.Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := selectContactQuery + ` WHERE organization_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, organizationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []domain.Contact{}
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return contacts, nil
}

const selectContactQuery = `
	SELECT id, organization_id, email, first_name, last_name, phone, company, title, address, tags, custom, created_at, updated_at
	FROM contacts
`

func (r *contactRepository) scanOne(row pgx.Row) (domain.Contact, error) {
	contact, err := scanContact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contact{}, ErrNotFound
		}
		return domain.Contact{}, err
	}
	return contact, nil
}

func scanContact(row pgx.Row) (domain.Contact, error) {
	var contact domain.Contact
	var customJSON []byte
	err := row.Scan(
		&contact.ID,
		&contact.OrganizationID,
		&contact.Email,
		&contact.FirstName,
		&contact.LastName,
		&contact.Phone,
		&contact.Company,
		&contact.Title,
		&contact.Address,
		&contact.Tags,
		&customJSON,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contact{}, err
		}
		return domain.Contact{}, fmt.Errorf("failed to scan contact: %w", err)
	}
	if contact.Custom, err = unmarshalCustom(customJSON); err != nil {
		return domain.Contact{}, fmt.Errorf("failed to decode contact custom fields: %w", err)
	}
	return contact, nil
}

// marshalCustom encodes a custom field bag as JSONB, treating nil as empty.
func marshalCustom(custom map[string]any) ([]byte, error) {
	if len(custom) == 0 {
		return []byte(`{}`), nil
	}
	return json.Marshal(custom)
}

func unmarshalCustom(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	custom := map[string]any{}
	if err := json.Unmarshal(data, &custom); err != nil {
		return nil, err
	}
	return custom, nil
}
