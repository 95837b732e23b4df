package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/crmimport/internal/db"
	"github.com/rpattn/crmimport/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrImportJobStatusConflict indicates that a job cannot transition to the requested state.
var ErrImportJobStatusConflict = errors.New("import job status conflict")

// importJobRepository persists import job lifecycle state using raw SQL queries.
type importJobRepository struct {
	conn *db.Connection
}

// NewImportJobRepository wires a repository for managing import jobs.
func NewImportJobRepository(conn *db.Connection) ImportJobRepository {
	return &importJobRepository{conn: conn}
}

func (r *importJobRepository) Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	query := `
		INSERT INTO import_jobs (id, organization_id, record_type, status, file_name, total_records, processed_records, created_count, updated_count, skipped_count, errors_truncated, error_message, source_path, skipped_file_path, enqueued_at, started_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.conn.Pool.Exec(ctx, query,
		job.ID,
		job.OrganizationID,
		string(job.RecordType),
		string(job.Status),
		job.FileName,
		job.TotalRecords,
		job.ProcessedRecords,
		job.Created,
		job.Updated,
		job.Skipped,
		job.ErrorsTruncated,
		job.ErrorMessage,
		job.SourcePath,
		job.SkippedFilePath,
		job.EnqueuedAt,
		job.StartedAt,
		job.CompletedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("failed to create import job: %w", err)
	}
	return r.GetByID(ctx, job.ID)
}

func (r *importJobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	query := selectImportJobQuery + ` WHERE id = $1`
	job, err := scanImportJob(r.conn.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportJob{}, ErrNotFound
		}
		return domain.ImportJob{}, err
	}

	rowErrors, err := r.listRowErrors(ctx, id)
	if err != nil {
		return domain.ImportJob{}, err
	}
	job.Errors = rowErrors
	return job, nil
}

func (r *importJobRepository) List(ctx context.Context, organizationID *uuid.UUID, statuses []domain.ImportJobStatus, limit, offset int) ([]domain.ImportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	conditions := []string{}
	args := []any{}
	argPos := 1

	if organizationID != nil {
		conditions = append(conditions, fmt.Sprintf("organization_id = $%d", argPos))
		args = append(args, *organizationID)
		argPos++
	}
	if len(statuses) > 0 {
		statusValues := make([]string, len(statuses))
		for i, status := range statuses {
			statusValues[i] = string(status)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argPos))
		args = append(args, statusValues)
		argPos++
	}

	query := selectImportJobQuery
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY enqueued_at DESC, id LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.conn.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list import jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.ImportJob{}
	for rows.Next() {
		job, err := scanImportJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate import jobs: %w", err)
	}
	return jobs, nil
}

func (r *importJobRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE import_jobs
		SET status = $2, started_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
	`
	tag, err := r.conn.Pool.Exec(ctx, query, id, string(domain.ImportJobStatusProcessing), string(domain.ImportJobStatusQueued))
	if err != nil {
		return fmt.Errorf("failed to mark import job processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrImportJobStatusConflict
	}
	return nil
}

// UpdateProgress writes absolute counter values plus any newly observed row
// errors in one transaction, so readers never see counters and errors drift
// apart mid-chunk.
func (r *importJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, processed, created, updated, skipped int, rowErrors []domain.RowError, errorsTruncated int) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE import_jobs
			SET processed_records = $2, created_count = $3, updated_count = $4, skipped_count = $5, errors_truncated = $6, updated_at = now()
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, query, id, processed, created, updated, skipped, errorsTruncated); err != nil {
			return fmt.Errorf("failed to update import progress: %w", err)
		}

		insert := `
			INSERT INTO import_row_errors (job_id, row_number, message)
			VALUES ($1, $2, $3)
		`
		for _, rowErr := range rowErrors {
			if _, err := tx.Exec(ctx, insert, id, rowErr.Row, rowErr.Message); err != nil {
				return fmt.Errorf("failed to record import row error: %w", err)
			}
		}
		return nil
	})
}

func (r *importJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, skippedFilePath string) error {
	path := pgtype.Text{}
	if skippedFilePath != "" {
		path = pgtype.Text{String: skippedFilePath, Valid: true}
	}
	query := `
		UPDATE import_jobs
		SET status = $2, skipped_file_path = $3, source_path = NULL, completed_at = now(), updated_at = now()
		WHERE id = $1
	`
	if _, err := r.conn.Pool.Exec(ctx, query, id, string(domain.ImportJobStatusCompleted), path); err != nil {
		return fmt.Errorf("failed to mark import job completed: %w", err)
	}
	return nil
}

func (r *importJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	msg := pgtype.Text{}
	if strings.TrimSpace(message) != "" {
		msg = pgtype.Text{String: message, Valid: true}
	}
	query := `
		UPDATE import_jobs
		SET status = $2, error_message = $3, source_path = NULL, completed_at = now(), updated_at = now()
		WHERE id = $1
	`
	if _, err := r.conn.Pool.Exec(ctx, query, id, string(domain.ImportJobStatusFailed), msg); err != nil {
		return fmt.Errorf("failed to mark import job failed: %w", err)
	}
	return nil
}

func (r *importJobRepository) listRowErrors(ctx context.Context, jobID uuid.UUID) ([]domain.RowError, error) {
	query := `
		SELECT row_number, message
		FROM import_row_errors
		WHERE job_id = $1
		ORDER BY row_number, id
		LIMIT $2
	`
	rows, err := r.conn.Pool.Query(ctx, query, jobID, domain.MaxRetainedRowErrors)
	if err != nil {
		return nil, fmt.Errorf("failed to list import row errors: %w", err)
	}
	defer rows.Close()

	rowErrors := []domain.RowError{}
	for rows.Next() {
		var rowErr domain.RowError
		if err := rows.Scan(&rowErr.Row, &rowErr.Message); err != nil {
			return nil, fmt.Errorf("failed to scan import row error: %w", err)
		}
		rowErrors = append(rowErrors, rowErr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate import row errors: %w", err)
	}
	return rowErrors, nil
}

const selectImportJobQuery = `
	SELECT id, organization_id, record_type, status, file_name, total_records, processed_records, created_count, updated_count, skipped_count, errors_truncated, error_message, source_path, skipped_file_path, enqueued_at, started_at, completed_at, updated_at
	FROM import_jobs
`

func scanImportJob(row pgx.Row) (domain.ImportJob, error) {
	var job domain.ImportJob
	var recordType, status string
	var errorMessage, sourcePath, skippedPath pgtype.Text
	var startedAt, completedAt pgtype.Timestamptz
	err := row.Scan(
		&job.ID,
		&job.OrganizationID,
		&recordType,
		&status,
		&job.FileName,
		&job.TotalRecords,
		&job.ProcessedRecords,
		&job.Created,
		&job.Updated,
		&job.Skipped,
		&job.ErrorsTruncated,
		&errorMessage,
		&sourcePath,
		&skippedPath,
		&job.EnqueuedAt,
		&startedAt,
		&completedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportJob{}, err
		}
		return domain.ImportJob{}, fmt.Errorf("failed to scan import job: %w", err)
	}

	job.RecordType = domain.RecordType(recordType)
	job.Status = domain.ImportJobStatus(status)
	job.Errors = []domain.RowError{}
	if errorMessage.Valid {
		value := errorMessage.String
		job.ErrorMessage = &value
	}
	if sourcePath.Valid {
		value := sourcePath.String
		job.SourcePath = &value
	}
	if skippedPath.Valid {
		value := skippedPath.String
		job.SkippedFilePath = &value
	}
	if startedAt.Valid {
		value := startedAt.Time
		job.StartedAt = &value
	}
	if completedAt.Valid {
		value := completedAt.Time
		job.CompletedAt = &value
	}
	return job, nil
}
