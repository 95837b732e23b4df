package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/crmimport/internal/auth"
	"github.com/rpattn/crmimport/internal/domain"
	"github.com/rpattn/crmimport/internal/repository"
)

const maxMultipartMemory = 32 << 20

// Handler exposes the import pipeline over HTTP:
//
//	POST /api/import/preview          multipart preview with mapping suggestions
//	POST /api/import/jobs             multipart submission, sync result or queued job
//	GET  /api/import/jobs             job listing with status filters
//	GET  /api/import/jobs/{id}        job status snapshot
//	GET  /api/import/jobs/{id}/skipped  skipped-rows CSV download
type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/preview"):
		h.handlePreview(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/jobs"):
		h.handleSubmit(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/jobs"):
		h.handleList(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/skipped"):
		h.handleSkippedExport(w, r)
	case r.Method == http.MethodGet:
		h.handleStatus(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	form, ok := parseUploadForm(w, r)
	if !ok {
		return
	}
	defer form.file.Close()

	limit := 0
	if raw := strings.TrimSpace(r.FormValue("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	result, err := h.service.Preview(r.Context(), PreviewRequest{
		OrganizationID: form.organizationID,
		RecordType:     form.recordType,
		FileName:       form.fileName,
		Data:           form.file,
		Limit:          limit,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type importAcceptedResponse struct {
	JobID uuid.UUID `json:"jobId"`
}

type importCompletedResponse struct {
	TotalRecords int               `json:"totalRecords"`
	Created      int               `json:"created"`
	Updated      int               `json:"updated"`
	Skipped      int               `json:"skipped"`
	Errors       []domain.RowError `json:"errors"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	form, ok := parseUploadForm(w, r)
	if !ok {
		return
	}
	defer form.file.Close()

	mapping := map[string]string{}
	if raw := strings.TrimSpace(r.FormValue("mapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			http.Error(w, "mapping must be a JSON object of header to field key", http.StatusBadRequest)
			return
		}
	}
	stageMapping := map[string]string{}
	if raw := strings.TrimSpace(r.FormValue("stageMapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &stageMapping); err != nil {
			http.Error(w, "stageMapping must be a JSON object of stage value to stage ID", http.StatusBadRequest)
			return
		}
	}

	duplicateStrategy, err := ParseDuplicateStrategy(r.FormValue("duplicateStrategy"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	contactStrategy, err := ParseContactStrategy(r.FormValue("contactStrategy"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var defaultStageID *uuid.UUID
	if raw := strings.TrimSpace(r.FormValue("defaultStageId")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid defaultStageId: %v", err), http.StatusBadRequest)
			return
		}
		defaultStageID = &id
	}

	async := false
	if raw := strings.TrimSpace(r.FormValue("async")); raw != "" {
		async, err = strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "async must be a boolean", http.StatusBadRequest)
			return
		}
	}

	result, err := h.service.Import(r.Context(), ImportRequest{
		OrganizationID:    form.organizationID,
		RecordType:        form.recordType,
		FileName:          form.fileName,
		Data:              form.file,
		Mapping:           mapping,
		StageMapping:      stageMapping,
		DuplicateStrategy: duplicateStrategy,
		ContactStrategy:   contactStrategy,
		DefaultStageID:    defaultStageID,
		Async:             async,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if result.Async {
		writeJSON(w, http.StatusAccepted, importAcceptedResponse{JobID: *result.JobID})
		return
	}
	writeJSON(w, http.StatusOK, importCompletedResponse{
		TotalRecords: result.TotalRecords,
		Created:      result.Created,
		Updated:      result.Updated,
		Skipped:      result.Skipped,
		Errors:       result.Errors,
	})
}

type listJobsResponse struct {
	Jobs []jobResponse `json:"jobs"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var organizationID *uuid.UUID
	if raw := strings.TrimSpace(query.Get("organizationId")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid organizationId: %v", err), http.StatusBadRequest)
			return
		}
		if err := auth.EnforceOrganizationScope(r.Context(), id); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		organizationID = &id
	} else if id, ok := auth.OrganizationIDFromContext(r.Context()); ok {
		organizationID = &id
	}

	statuses, err := parseStatuses(query.Get("status"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
	}
	offset := 0
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			http.Error(w, "offset must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	jobs, err := h.service.ListJobs(r.Context(), organizationID, statuses, limit, offset)
	if err != nil {
		http.Error(w, "failed to list import jobs", http.StatusInternalServerError)
		return
	}

	response := listJobsResponse{Jobs: make([]jobResponse, 0, len(jobs))}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, newJobResponse(job, false))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDFromPath(r.URL.Path, "")
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid job ID: %v", err), http.StatusBadRequest)
		return
	}

	job, ok := h.loadJob(w, r, jobID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(job, true))
}

func (h *Handler) handleSkippedExport(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDFromPath(r.URL.Path, "/skipped")
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid job ID: %v", err), http.StatusBadRequest)
		return
	}

	job, ok := h.loadJob(w, r, jobID)
	if !ok {
		return
	}

	file, err := h.service.OpenSkippedExport(job)
	if err != nil {
		switch {
		case errors.Is(err, ErrJobNotReady):
			http.Error(w, "import job is not completed", http.StatusConflict)
		case errors.Is(err, os.ErrNotExist):
			http.Error(w, "skipped export not found", http.StatusNotFound)
		default:
			http.Error(w, "failed to open skipped export", http.StatusInternalServerError)
		}
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("skipped-%s.csv", job.ID)))
	if info, err := file.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, file)
}

func (h *Handler) loadJob(w http.ResponseWriter, r *http.Request, jobID uuid.UUID) (domain.ImportJob, bool) {
	job, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "import job not found", http.StatusNotFound)
			return domain.ImportJob{}, false
		}
		http.Error(w, "failed to load import job", http.StatusInternalServerError)
		return domain.ImportJob{}, false
	}
	if err := auth.EnforceOrganizationScope(r.Context(), job.OrganizationID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return domain.ImportJob{}, false
	}
	return job, true
}

type uploadForm struct {
	organizationID uuid.UUID
	recordType     domain.RecordType
	fileName       string
	file           io.ReadCloser
}

func parseUploadForm(w http.ResponseWriter, r *http.Request) (uploadForm, bool) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		http.Error(w, "failed to parse multipart form", http.StatusBadRequest)
		return uploadForm{}, false
	}

	organizationID, err := uuid.Parse(strings.TrimSpace(r.FormValue("organizationId")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid organizationId: %v", err), http.StatusBadRequest)
		return uploadForm{}, false
	}
	if err := auth.EnforceOrganizationScope(r.Context(), organizationID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return uploadForm{}, false
	}

	recordType := domain.RecordType(strings.ToLower(strings.TrimSpace(r.FormValue("recordType"))))
	if !recordType.Valid() {
		http.Error(w, fmt.Sprintf("unsupported record type %q", recordType), http.StatusBadRequest)
		return uploadForm{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return uploadForm{}, false
	}

	return uploadForm{
		organizationID: organizationID,
		recordType:     recordType,
		fileName:       header.Filename,
		file:           file,
	}, true
}

type jobResponse struct {
	ID               uuid.UUID              `json:"id"`
	OrganizationID   uuid.UUID              `json:"organizationId"`
	RecordType       domain.RecordType      `json:"recordType"`
	Status           domain.ImportJobStatus `json:"status"`
	FileName         string                 `json:"fileName"`
	TotalRecords     int                    `json:"totalRecords"`
	ProcessedRecords int                    `json:"processedRecords"`
	Created          int                    `json:"created"`
	Updated          int                    `json:"updated"`
	Skipped          int                    `json:"skipped"`
	Progress         float64                `json:"progress"`
	ErrorCount       int                    `json:"errorCount"`
	Errors           []domain.RowError      `json:"errors,omitempty"`
	ErrorsTruncated  int                    `json:"errorsTruncated,omitempty"`
	ErrorMessage     *string                `json:"errorMessage,omitempty"`
	EnqueuedAt       time.Time              `json:"enqueuedAt"`
	StartedAt        *time.Time             `json:"startedAt,omitempty"`
	CompletedAt      *time.Time             `json:"completedAt,omitempty"`
	Duration         *float64               `json:"duration,omitempty"`
}

func newJobResponse(job domain.ImportJob, includeErrors bool) jobResponse {
	response := jobResponse{
		ID:               job.ID,
		OrganizationID:   job.OrganizationID,
		RecordType:       job.RecordType,
		Status:           job.Status,
		FileName:         job.FileName,
		TotalRecords:     job.TotalRecords,
		ProcessedRecords: job.ProcessedRecords,
		Created:          job.Created,
		Updated:          job.Updated,
		Skipped:          job.Skipped,
		Progress:         job.Progress(),
		ErrorCount:       job.ErrorCount(),
		ErrorsTruncated:  job.ErrorsTruncated,
		ErrorMessage:     job.ErrorMessage,
		EnqueuedAt:       job.EnqueuedAt,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
	}
	if includeErrors {
		response.Errors = job.Errors
	}
	if duration := job.Duration(); duration != nil {
		seconds := duration.Seconds()
		response.Duration = &seconds
	}
	return response
}

func jobIDFromPath(path, suffix string) (uuid.UUID, error) {
	trimmed := strings.TrimSuffix(path, "/")
	if suffix != "" {
		trimmed = strings.TrimSuffix(trimmed, suffix)
		trimmed = strings.TrimSuffix(trimmed, "/")
	}
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return uuid.Nil, errors.New("job ID is required")
	}
	return uuid.Parse(trimmed[idx+1:])
}

func parseStatuses(raw string) ([]domain.ImportJobStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]domain.ImportJobStatus, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		status := domain.ImportJobStatus(strings.ToLower(part))
		switch status {
		case domain.ImportJobStatusQueued, domain.ImportJobStatusProcessing,
			domain.ImportJobStatusCompleted, domain.ImportJobStatusFailed:
			statuses = append(statuses, status)
		default:
			return nil, fmt.Errorf("invalid status %q", part)
		}
	}
	return statuses, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
