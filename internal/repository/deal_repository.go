package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/crmimport/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dealRepository persists deals using raw SQL queries.
type dealRepository struct {
	pool *pgxpool.Pool
}

// NewDealRepository creates a deal repository backed by pgxpool.
func NewDealRepository(pool *pgxpool.Pool) DealRepository {
	return &dealRepository{pool: pool}
}

func (r *dealRepository) Create(ctx context.Context, deal domain.Deal) (domain.Deal, error) {
	customJSON, err := marshalCustom(deal.Custom)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("failed to encode deal custom fields: %w", err)
	}

	query := `
		INSERT INTO deals (id, organization_id, contact_id, name, stage_id, amount, close_date, notes, tags, custom, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.pool.Exec(ctx, query,
		deal.ID,
		deal.OrganizationID,
		deal.ContactID,
		deal.Name,
		deal.StageID,
		deal.Amount,
		deal.CloseDate,
		deal.Notes,
		deal.Tags,
		customJSON,
		deal.CreatedAt,
		deal.UpdatedAt,
	)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("failed to create deal: %w", err)
	}
	return deal, nil
}

func (r *dealRepository) Update(ctx context.Context, deal domain.Deal) (domain.Deal, error) {
	customJSON, err := marshalCustom(deal.Custom)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("failed to encode deal custom fields: %w", err)
	}

	query := `
		UPDATE deals
		SET name = $2, stage_id = $3, amount = $4, close_date = $5, notes = $6, tags = $7, custom = $8, updated_at = $9
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		deal.ID,
		deal.Name,
		deal.StageID,
		deal.Amount,
		deal.CloseDate,
		deal.Notes,
		deal.Tags,
		customJSON,
		deal.UpdatedAt,
	)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("failed to update deal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Deal{}, ErrNotFound
	}
	return deal, nil
}

func (r *dealRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Deal, error) {
	query := selectDealQuery + ` WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *dealRepository) FindByNameAndContact(ctx context.Context, organizationID, contactID uuid.UUID, name string) (domain.Deal, error) {
	query := selectDealQuery + ` WHERE organization_id = $1 AND contact_id = $2 AND lower(trim(name)) = lower(trim($3)) ORDER BY created_at, id LIMIT 1`
	return r.scanOne(r.pool.QueryRow(ctx, query, organizationID, contactID, name))
}

func (r *dealRepository) List(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]domain.Deal, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := selectDealQuery + ` WHERE organization_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, organizationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	deals := []domain.Deal{}
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deals: %w", err)
	}
	return deals, nil
}

const selectDealQuery = `
	SELECT id, organization_id, contact_id, name, stage_id, amount, close_date, notes, tags, custom, created_at, updated_at
	FROM deals
`

func (r *dealRepository) scanOne(row pgx.Row) (domain.Deal, error) {
	deal, err := scanDeal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Deal{}, ErrNotFound
		}
		return domain.Deal{}, err
	}
	return deal, nil
}

func scanDeal(row pgx.Row) (domain.Deal, error) {
	var deal domain.Deal
	var stageID pgtype.UUID
	var amount pgtype.Float8
	var closeDate pgtype.Date
	var customJSON []byte
	err := row.Scan(
		&deal.ID,
		&deal.OrganizationID,
		&deal.ContactID,
		&deal.Name,
		&stageID,
		&amount,
		&closeDate,
		&deal.Notes,
		&deal.Tags,
		&customJSON,
		&deal.CreatedAt,
		&deal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Deal{}, err
		}
		return domain.Deal{}, fmt.Errorf("failed to scan deal: %w", err)
	}
	if stageID.Valid {
		id := uuid.UUID(stageID.Bytes)
		deal.StageID = &id
	}
	if amount.Valid {
		value := amount.Float64
		deal.Amount = &value
	}
	if closeDate.Valid {
		date := closeDate.Time
		deal.CloseDate = &date
	}
	if deal.Custom, err = unmarshalCustom(customJSON); err != nil {
		return domain.Deal{}, fmt.Errorf("failed to decode deal custom fields: %w", err)
	}
	return deal, nil
}
