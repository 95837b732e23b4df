package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportJobStatus captures lifecycle state for an import job.
type ImportJobStatus string

const (
	ImportJobStatusQueued     ImportJobStatus = "queued"
	ImportJobStatusProcessing ImportJobStatus = "processing"
	ImportJobStatusCompleted  ImportJobStatus = "completed"
	ImportJobStatusFailed     ImportJobStatus = "failed"
)

// Terminal reports whether no further transition can occur from the status.
func (s ImportJobStatus) Terminal() bool {
	return s == ImportJobStatusCompleted || s == ImportJobStatusFailed
}

// RowError records one failed input row, one-based against the data rows of
// the uploaded file.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"error"`
}

// MaxRetainedRowErrors caps how many row errors a job keeps. Overflow is
// tracked in ErrorsTruncated so counts stay truthful on pathological inputs.
const MaxRetainedRowErrors = 1000

// ImportJob mirrors persisted import job state for workers and the status
// surface. Counters obey created+updated+skipped == processed <= total.
type ImportJob struct {
	ID               uuid.UUID       `json:"id"`
	OrganizationID   uuid.UUID       `json:"organization_id"`
	RecordType       RecordType      `json:"record_type"`
	Status           ImportJobStatus `json:"status"`
	FileName         string          `json:"file_name"`
	TotalRecords     int             `json:"total_records"`
	ProcessedRecords int             `json:"processed_records"`
	Created          int             `json:"created"`
	Updated          int             `json:"updated"`
	Skipped          int             `json:"skipped"`
	Errors           []RowError      `json:"errors"`
	ErrorsTruncated  int             `json:"errors_truncated"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	SourcePath       *string         `json:"-"`
	SkippedFilePath  *string         `json:"-"`
	EnqueuedAt       time.Time       `json:"enqueued_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewImportJob creates a queued import job for an already-parsed file.
func NewImportJob(organizationID uuid.UUID, recordType RecordType, fileName string, totalRecords int) ImportJob {
	now := time.Now()
	return ImportJob{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		RecordType:     recordType,
		Status:         ImportJobStatusQueued,
		FileName:       fileName,
		TotalRecords:   totalRecords,
		Errors:         []RowError{},
		EnqueuedAt:     now,
		UpdatedAt:      now,
	}
}

// Progress derives the completion percentage from the counters. It is never
// stored, so reads cannot observe a stale value.
func (j ImportJob) Progress() float64 {
	if j.TotalRecords <= 0 {
		if j.Status.Terminal() {
			return 100
		}
		return 0
	}
	return float64(j.ProcessedRecords) / float64(j.TotalRecords) * 100
}

// Duration returns the wall-clock run time once the job is terminal.
func (j ImportJob) Duration() *time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return nil
	}
	d := j.CompletedAt.Sub(*j.StartedAt)
	return &d
}

// ErrorCount returns the total number of row errors including overflow.
func (j ImportJob) ErrorCount() int {
	return len(j.Errors) + j.ErrorsTruncated
}

// WithProgress returns a copy with counters advanced and new row errors
// appended, retaining at most MaxRetainedRowErrors entries.
func (j ImportJob) WithProgress(processed, created, updated, skipped int, rowErrors []RowError) ImportJob {
	out := j
	out.ProcessedRecords = processed
	out.Created = created
	out.Updated = updated
	out.Skipped = skipped
	out.Errors = append([]RowError(nil), j.Errors...)
	out.ErrorsTruncated = j.ErrorsTruncated
	for _, rowErr := range rowErrors {
		if len(out.Errors) >= MaxRetainedRowErrors {
			out.ErrorsTruncated++
			continue
		}
		out.Errors = append(out.Errors, rowErr)
	}
	out.UpdatedAt = time.Now()
	return out
}

// WithStatus returns a copy transitioned into the given status, stamping the
// lifecycle timestamps for the claiming and terminal transitions.
func (j ImportJob) WithStatus(status ImportJobStatus) ImportJob {
	out := j
	out.Status = status
	now := time.Now()
	switch status {
	case ImportJobStatusProcessing:
		started := now
		out.StartedAt = &started
	case ImportJobStatusCompleted, ImportJobStatusFailed:
		completed := now
		out.CompletedAt = &completed
	}
	out.UpdatedAt = now
	return out
}

// CountersConsistent verifies the job bookkeeping invariant.
func (j ImportJob) CountersConsistent() bool {
	if j.Created+j.Updated+j.Skipped != j.ProcessedRecords {
		return false
	}
	return j.ProcessedRecords <= j.TotalRecords
}
