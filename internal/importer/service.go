package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/crmimport/internal/catalog"
	"github.com/rpattn/crmimport/internal/domain"
	"github.com/rpattn/crmimport/internal/repository"
)

var (
	errJobNotRunnable = errors.New("import job is no longer runnable")

	// ErrJobNotReady is returned when a skipped-rows export is requested
	// before the job reaches a terminal state.
	ErrJobNotReady = errors.New("import job is not completed")
)

// Service imports CRM records from uploaded tabular files. Small files run
// synchronously inside the request; larger files become durable jobs whose
// rows are processed in chunks by a single worker goroutine per job.
type Service struct {
	contacts repository.ContactRepository
	deals    repository.DealRepository
	jobs     repository.ImportJobRepository
	catalog  *catalog.Service

	importDir               string
	chunkSize               int
	asyncThresholdContacts  int
	asyncThresholdDeals     int
	maxUploadBytes          int64
	previewRows             int
	jobTimeout              time.Duration
	logger                  *logrus.Logger

	workers       sync.WaitGroup
	workerCancels sync.Map // map[uuid.UUID]context.CancelFunc
}

type Option func(*Service)

// WithImportDirectory overrides where source files and skipped-rows exports
// are written.
func WithImportDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.importDir = filepath.Clean(dir)
		}
	}
}

// WithChunkSize sets how many rows one cooperative unit of work covers.
func WithChunkSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithAsyncThresholds sets the row counts above which contact and deal
// imports are queued instead of running synchronously. Deals default lower
// because contact resolution makes each row more expensive.
func WithAsyncThresholds(contacts, deals int) Option {
	return func(s *Service) {
		if contacts > 0 {
			s.asyncThresholdContacts = contacts
		}
		if deals > 0 {
			s.asyncThresholdDeals = deals
		}
	}
}

// WithMaxUploadBytes caps the accepted upload size.
func WithMaxUploadBytes(limit int64) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxUploadBytes = limit
		}
	}
}

// WithJobTimeout bounds how long one import job may run.
func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.jobTimeout = timeout
		}
	}
}

// WithLogger overrides the structured logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(
	contacts repository.ContactRepository,
	deals repository.DealRepository,
	jobs repository.ImportJobRepository,
	catalogService *catalog.Service,
	opts ...Option,
) *Service {
	service := &Service{
		contacts:               contacts,
		deals:                  deals,
		jobs:                   jobs,
		catalog:                catalogService,
		importDir:              filepath.Join(os.TempDir(), "crm-imports"),
		chunkSize:              100,
		asyncThresholdContacts: 200,
		asyncThresholdDeals:    100,
		maxUploadBytes:         5 << 20,
		previewRows:            10,
		jobTimeout:             30 * time.Minute,
		logger:                 logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// PreviewRequest describes a sampling pass over an uploaded file.
type PreviewRequest struct {
	OrganizationID uuid.UUID
	RecordType     domain.RecordType
	FileName       string
	Data           io.Reader
	Limit          int
}

// HeaderSuggestion pairs one column with its inferred target field, if any.
type HeaderSuggestion struct {
	Header         string  `json:"header"`
	OriginalLabel  string  `json:"originalLabel"`
	SuggestedField *string `json:"suggestedField"`
}

// StageSuggestion proposes a pipeline stage for one distinct raw stage value.
type StageSuggestion struct {
	Value   string  `json:"value"`
	StageID *string `json:"stageId"`
}

// PreviewResult returns headers with mapping suggestions, a bounded sample of
// raw rows, and for deal files a suggested stage value mapping.
type PreviewResult struct {
	Headers               []HeaderSuggestion `json:"headers"`
	Preview               [][]string         `json:"preview"`
	TotalRows             int                `json:"totalRows"`
	SuggestedStageMapping []StageSuggestion  `json:"suggestedStageMapping,omitempty"`
}

// ImportRequest describes a confirmed import submission. Mapping binds
// sanitized headers to field keys; headers mapped to "skip" or omitted are
// ignored. StageMapping remaps raw stage values to stage ids.
type ImportRequest struct {
	OrganizationID    uuid.UUID
	RecordType        domain.RecordType
	FileName          string
	Data              io.Reader
	Mapping           map[string]string
	StageMapping      map[string]string
	DuplicateStrategy DuplicateStrategy
	ContactStrategy   ContactStrategy
	DefaultStageID    *uuid.UUID
	// Async forces the durable job path regardless of file size.
	Async bool
}

// ImportResult is the submission outcome: either a queued job handle or the
// completed synchronous counters.
type ImportResult struct {
	JobID        *uuid.UUID        `json:"jobId,omitempty"`
	Async        bool              `json:"async"`
	TotalRecords int               `json:"totalRecords"`
	Created      int               `json:"created"`
	Updated      int               `json:"updated"`
	Skipped      int               `json:"skipped"`
	Errors       []domain.RowError `json:"errors"`
}

// Preview parses the upload, samples rows, and suggests a column mapping
// without touching any records.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error) {
	result := PreviewResult{
		Headers: []HeaderSuggestion{},
		Preview: [][]string{},
	}

	payload, err := s.readUpload(req.OrganizationID, req.RecordType, req.Data)
	if err != nil {
		return result, err
	}

	table, err := parseTable(req.FileName, payload)
	if err != nil {
		return result, err
	}

	fields, err := s.catalog.Fields(ctx, req.OrganizationID, req.RecordType)
	if err != nil {
		return result, err
	}

	suggestions := suggestFieldKeys(table.headers, fields)
	stageColumn := -1
	for idx, header := range table.headers {
		suggestion := HeaderSuggestion{
			Header:         header,
			SuggestedField: suggestions[idx],
		}
		if idx < len(table.rawHeaders) {
			suggestion.OriginalLabel = table.rawHeaders[idx]
		}
		if suggestions[idx] != nil && *suggestions[idx] == domain.FieldKeyStage {
			stageColumn = idx
		}
		result.Headers = append(result.Headers, suggestion)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.previewRows
	}
	for idx, row := range table.rows {
		if idx >= limit {
			break
		}
		result.Preview = append(result.Preview, append([]string(nil), row...))
	}
	result.TotalRows = len(table.rows)

	if req.RecordType == domain.RecordTypeDeals && stageColumn >= 0 {
		stages, err := s.catalog.Stages(ctx, req.OrganizationID)
		if err != nil {
			return result, err
		}
		column := make([]string, 0, len(table.rows))
		for _, row := range table.rows {
			if stageColumn < len(row) {
				column = append(column, row[stageColumn])
			}
		}
		result.SuggestedStageMapping = suggestStageValues(column, stages)
	}

	return result, nil
}

// Import runs a confirmed submission. Files at or under the record type's
// async threshold are processed inside this call; larger files (or an
// explicit Async request) are persisted as a queued job and handed to a
// worker goroutine.
func (s *Service) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	payload, err := s.readUpload(req.OrganizationID, req.RecordType, req.Data)
	if err != nil {
		return ImportResult{}, err
	}

	table, err := parseTable(req.FileName, payload)
	if err != nil {
		return ImportResult{}, err
	}

	plan, err := s.buildPlan(ctx, req, table)
	if err != nil {
		return ImportResult{}, err
	}

	total := len(table.rows)
	if !req.Async && total <= s.asyncThreshold(req.RecordType) {
		progress, err := s.processRows(ctx, plan, s.rowImporterFor(plan), nil)
		if err != nil {
			return ImportResult{}, err
		}
		return ImportResult{
			TotalRecords: total,
			Created:      progress.created,
			Updated:      progress.updated,
			Skipped:      progress.skipped,
			Errors:       progress.errors,
		}, nil
	}

	job := domain.NewImportJob(req.OrganizationID, req.RecordType, req.FileName, total)
	sourcePath, err := s.saveSourceFile(job.ID, req.FileName, payload)
	if err != nil {
		return ImportResult{}, err
	}
	job.SourcePath = &sourcePath

	persisted, err := s.jobs.Create(ctx, job)
	if err != nil {
		_ = os.Remove(sourcePath)
		return ImportResult{}, err
	}

	s.launchWorker(persisted, plan)
	jobID := persisted.ID
	return ImportResult{JobID: &jobID, Async: true, TotalRecords: total}, nil
}

// GetJob returns the current snapshot of one import job.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	if id == uuid.Nil {
		return domain.ImportJob{}, errors.New("job ID is required")
	}
	return s.jobs.GetByID(ctx, id)
}

// ListJobs returns job snapshots without row errors loaded.
func (s *Service) ListJobs(ctx context.Context, organizationID *uuid.UUID, statuses []domain.ImportJobStatus, limit, offset int) ([]domain.ImportJob, error) {
	return s.jobs.List(ctx, organizationID, statuses, limit, offset)
}

// OpenSkippedExport opens the skipped-rows CSV for a completed job. Jobs that
// are not yet terminal return ErrJobNotReady.
func (s *Service) OpenSkippedExport(job domain.ImportJob) (*os.File, error) {
	if job.Status != domain.ImportJobStatusCompleted {
		return nil, ErrJobNotReady
	}
	if job.SkippedFilePath == nil || strings.TrimSpace(*job.SkippedFilePath) == "" {
		return nil, errors.New("skipped export is unavailable")
	}
	file, err := os.Open(*job.SkippedFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open skipped export: %w", err)
	}
	return file, nil
}

// Close cancels in-flight workers and waits for them to finish marking their
// jobs. Interrupted jobs end up failed, never stuck in processing.
func (s *Service) Close() {
	s.workerCancels.Range(func(_, value any) bool {
		if cancel, ok := value.(context.CancelFunc); ok {
			cancel()
		}
		return true
	})
	s.workers.Wait()
}

func (s *Service) readUpload(organizationID uuid.UUID, recordType domain.RecordType, data io.Reader) ([]byte, error) {
	if organizationID == uuid.Nil {
		return nil, errors.New("organization id is required")
	}
	if !recordType.Valid() {
		return nil, fmt.Errorf("unsupported record type %q", recordType)
	}
	if data == nil {
		return nil, errors.New("data reader is required")
	}

	payload, err := io.ReadAll(io.LimitReader(data, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return nil, errors.New("file is empty")
	}
	if int64(len(payload)) > s.maxUploadBytes {
		return nil, fmt.Errorf("file exceeds maximum size of %d bytes", s.maxUploadBytes)
	}
	return payload, nil
}

func (s *Service) asyncThreshold(recordType domain.RecordType) int {
	if recordType == domain.RecordTypeDeals {
		return s.asyncThresholdDeals
	}
	return s.asyncThresholdContacts
}

// importPlan binds a parsed table to target fields and run-time strategies.
type importPlan struct {
	organizationID  uuid.UUID
	recordType      domain.RecordType
	table           parsedTable
	columns         []plannedColumn
	requiredKeys    []string
	stages          []domain.PipelineStage
	stageMapping    map[string]string
	defaultStageID  *uuid.UUID
	strategy        DuplicateStrategy
	contactStrategy ContactStrategy
}

type plannedColumn struct {
	index int
	field domain.Field
}

// buildPlan validates the submitted mapping against the parsed headers and
// the field catalog. When two headers map to the same field the later header
// wins and the earlier column is left unbound.
func (s *Service) buildPlan(ctx context.Context, req ImportRequest, table parsedTable) (importPlan, error) {
	plan := importPlan{
		organizationID:  req.OrganizationID,
		recordType:      req.RecordType,
		table:           table,
		stageMapping:    req.StageMapping,
		defaultStageID:  req.DefaultStageID,
		strategy:        req.DuplicateStrategy,
		contactStrategy: req.ContactStrategy,
	}
	if plan.strategy == "" {
		plan.strategy = DuplicateSkip
	}
	if plan.contactStrategy == "" {
		plan.contactStrategy = ContactMatch
	}

	fields, err := s.catalog.Fields(ctx, req.OrganizationID, req.RecordType)
	if err != nil {
		return importPlan{}, err
	}
	fieldsByKey := make(map[string]domain.Field, len(fields))
	for _, field := range fields {
		fieldsByKey[field.Key] = field
	}

	headerIndex := make(map[string]int, len(table.headers))
	for idx, header := range table.headers {
		headerIndex[header] = idx
	}

	columnForField := make(map[string]int)
	for header, fieldKey := range req.Mapping {
		fieldKey = strings.TrimSpace(fieldKey)
		if fieldKey == "" || strings.EqualFold(fieldKey, "skip") {
			continue
		}
		idx, ok := headerIndex[header]
		if !ok {
			return importPlan{}, fmt.Errorf("mapping references unknown header %q", header)
		}
		if _, ok := fieldsByKey[fieldKey]; !ok {
			return importPlan{}, fmt.Errorf("mapping references unknown field %q", fieldKey)
		}
		if bound, ok := columnForField[fieldKey]; !ok || idx > bound {
			columnForField[fieldKey] = idx
		}
	}

	for idx, header := range table.headers {
		fieldKey := strings.TrimSpace(req.Mapping[header])
		if fieldKey == "" || strings.EqualFold(fieldKey, "skip") {
			continue
		}
		if columnForField[fieldKey] != idx {
			continue
		}
		plan.columns = append(plan.columns, plannedColumn{index: idx, field: fieldsByKey[fieldKey]})
	}

	mapped := make(map[string]bool, len(plan.columns))
	for _, column := range plan.columns {
		mapped[column.field.Key] = true
	}
	for _, field := range fields {
		if !field.Required {
			continue
		}
		if !mapped[field.Key] {
			return importPlan{}, fmt.Errorf("required field %q is not mapped", field.Key)
		}
		plan.requiredKeys = append(plan.requiredKeys, field.Key)
	}

	if req.RecordType == domain.RecordTypeDeals {
		stages, err := s.catalog.Stages(ctx, req.OrganizationID)
		if err != nil {
			return importPlan{}, err
		}
		plan.stages = stages
		if req.DefaultStageID != nil && !stageExists(*req.DefaultStageID, stages) {
			return importPlan{}, fmt.Errorf("unknown defaultStageId %q", *req.DefaultStageID)
		}
	}

	return plan, nil
}

// buildValues coerces one row into typed field values. A nil error with a
// value absent means the cell was empty or an optional coercion failed; a
// non-nil error rejects the whole row.
func (p *importPlan) buildValues(row []string) (map[string]any, error) {
	values := make(map[string]any, len(p.columns))
	for _, column := range p.columns {
		raw := ""
		if column.index < len(row) {
			raw = strings.TrimSpace(row[column.index])
		}

		if p.recordType == domain.RecordTypeDeals && column.field.Key == domain.FieldKeyStage {
			stageID, err := resolveStage(raw, p.stageMapping, p.stages, p.defaultStageID)
			if err != nil {
				return nil, err
			}
			if stageID != nil {
				values[domain.FieldKeyStage] = *stageID
			}
			continue
		}

		if raw == "" {
			continue
		}
		value, err := coerceValue(column.field, raw)
		if err != nil {
			if column.field.Required {
				return nil, fmt.Errorf("field %s: %w", column.field.Key, err)
			}
			if column.field.Kind == domain.FieldKindEnum {
				return nil, err
			}
			continue
		}
		values[column.field.Key] = value
	}

	for _, key := range p.requiredKeys {
		if _, ok := values[key]; !ok {
			return nil, fmt.Errorf("required field %s is missing", key)
		}
	}
	return values, nil
}

func (s *Service) rowImporterFor(plan importPlan) rowImporter {
	if plan.recordType == domain.RecordTypeDeals {
		return &dealImporter{
			deals:           s.deals,
			contacts:        s.contacts,
			organizationID:  plan.organizationID,
			strategy:        plan.strategy,
			contactStrategy: plan.contactStrategy,
			defaultStageID:  plan.defaultStageID,
		}
	}
	return &contactImporter{
		contacts:       s.contacts,
		organizationID: plan.organizationID,
		strategy:       plan.strategy,
	}
}

// runProgress accumulates counters for one run. The counters obey
// created+updated+skipped == processed at every chunk boundary.
type runProgress struct {
	processed   int
	created     int
	updated     int
	skipped     int
	errors      []domain.RowError
	newErrors   []domain.RowError
	truncated   int
	skippedRows []int
}

func (p *runProgress) recordError(row int, err error) {
	if len(p.errors) >= domain.MaxRetainedRowErrors {
		p.truncated++
		return
	}
	rowErr := domain.RowError{Row: row, Message: truncateError(err)}
	p.errors = append(p.errors, rowErr)
	p.newErrors = append(p.newErrors, rowErr)
}

func (p *runProgress) takeNewErrors() []domain.RowError {
	batch := p.newErrors
	p.newErrors = nil
	return batch
}

// processRows walks the rows in file order, one chunk at a time. Between
// chunks it invokes onChunk to flush progress, then yields so other work can
// run. The synchronous path passes a nil onChunk; a single pass over the
// whole file is then one chunk.
func (s *Service) processRows(ctx context.Context, plan importPlan, imp rowImporter, onChunk func(context.Context, *runProgress) error) (*runProgress, error) {
	progress := &runProgress{errors: []domain.RowError{}}
	chunkSize := s.chunkSize
	if chunkSize <= 0 {
		chunkSize = 100
	}

	for idx, row := range plan.table.rows {
		if idx > 0 && idx%chunkSize == 0 {
			if err := ctx.Err(); err != nil {
				return progress, err
			}
			if onChunk != nil {
				if err := onChunk(ctx, progress); err != nil {
					return progress, err
				}
			}
			runtime.Gosched()
		}

		rowNumber := idx + 1
		values, err := plan.buildValues(row)
		if err != nil {
			progress.processed++
			progress.skipped++
			progress.skippedRows = append(progress.skippedRows, idx)
			progress.recordError(rowNumber, err)
			continue
		}

		outcome, err := imp.importRow(ctx, values)
		progress.processed++
		switch {
		case err != nil:
			progress.skipped++
			progress.skippedRows = append(progress.skippedRows, idx)
			progress.recordError(rowNumber, err)
		case outcome == outcomeCreated:
			progress.created++
		case outcome == outcomeUpdated:
			progress.updated++
		default:
			progress.skipped++
			progress.skippedRows = append(progress.skippedRows, idx)
		}
	}

	if onChunk != nil {
		if err := ctx.Err(); err != nil {
			return progress, err
		}
		if err := onChunk(ctx, progress); err != nil {
			return progress, err
		}
	}
	return progress, nil
}

func (s *Service) launchWorker(job domain.ImportJob, plan importPlan) {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	ctx := baseCtx
	cancelFunc := baseCancel
	if s.jobTimeout > 0 {
		timeoutCtx, timeoutCancel := context.WithTimeout(baseCtx, s.jobTimeout)
		ctx = timeoutCtx
		cancelFunc = func() {
			timeoutCancel()
			baseCancel()
		}
	}
	s.workerCancels.Store(job.ID, cancelFunc)
	s.workers.Add(1)
	go func() {
		defer func() {
			cancelFunc()
			s.workerCancels.Delete(job.ID)
			s.workers.Done()
		}()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.WithField("job_id", job.ID).Errorf("panic while processing import job: %v", rec)
				s.failJob(context.Background(), job.ID, fmt.Errorf("panic: %v", rec))
				s.removeSourceFile(job.SourcePath)
			}
		}()
		if err := s.runJob(ctx, job, plan); err != nil {
			switch {
			case errors.Is(err, errJobNotRunnable):
				s.logger.WithField("job_id", job.ID).Warn("import job not runnable, skipping")
			case errors.Is(err, context.DeadlineExceeded):
				s.failJob(context.Background(), job.ID, errors.New("import timed out"))
				s.removeSourceFile(job.SourcePath)
			case errors.Is(err, context.Canceled):
				s.failJob(context.Background(), job.ID, errors.New("import interrupted"))
				s.removeSourceFile(job.SourcePath)
			default:
				s.failJob(ctx, job.ID, err)
				s.removeSourceFile(job.SourcePath)
			}
		}
	}()
}

func (s *Service) runJob(ctx context.Context, job domain.ImportJob, plan importPlan) error {
	if err := s.jobs.MarkProcessing(ctx, job.ID); err != nil {
		if errors.Is(err, repository.ErrImportJobStatusConflict) {
			return errJobNotRunnable
		}
		return fmt.Errorf("failed to mark import job processing: %w", err)
	}

	flush := func(ctx context.Context, progress *runProgress) error {
		batch := progress.takeNewErrors()
		if err := s.jobs.UpdateProgress(ctx, job.ID, progress.processed, progress.created, progress.updated, progress.skipped, batch, progress.truncated); err != nil {
			return fmt.Errorf("failed to update import progress: %w", err)
		}
		return nil
	}

	progress, err := s.processRows(ctx, plan, s.rowImporterFor(plan), flush)
	if err != nil {
		return err
	}

	skippedPath, err := s.writeSkippedExport(job.ID, plan, progress)
	if err != nil {
		return err
	}

	if err := s.jobs.MarkCompleted(ctx, job.ID, skippedPath); err != nil {
		return fmt.Errorf("failed to mark import job completed: %w", err)
	}
	s.removeSourceFile(job.SourcePath)

	s.logger.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"created": progress.created,
		"updated": progress.updated,
		"skipped": progress.skipped,
		"errors":  len(progress.errors) + progress.truncated,
	}).Info("import job completed")
	return nil
}

// writeSkippedExport materializes the skipped-rows CSV: the original header
// labels followed by the original cells of every skipped row, in file order.
// It is written even when nothing was skipped so a completed job always has
// a well-formed export.
func (s *Service) writeSkippedExport(jobID uuid.UUID, plan importPlan, progress *runProgress) (string, error) {
	if err := s.ensureImportDirectory(); err != nil {
		return "", err
	}

	tempFile, err := os.CreateTemp(s.importDir, fmt.Sprintf("%s-skipped-*.csv", jobID))
	if err != nil {
		return "", fmt.Errorf("failed to create skipped export: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	csvWriter := csv.NewWriter(tempFile)
	if err := csvWriter.Write(plan.table.rawHeaders); err != nil {
		return "", fmt.Errorf("failed to write skipped export header: %w", err)
	}
	for _, idx := range progress.skippedRows {
		if err := csvWriter.Write(plan.table.rows[idx]); err != nil {
			return "", fmt.Errorf("failed to write skipped export row: %w", err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return "", fmt.Errorf("failed to flush skipped export: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close skipped export: %w", err)
	}

	finalPath := filepath.Join(s.importDir, fmt.Sprintf("skipped-%s.csv", jobID))
	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("failed to promote skipped export: %w", err)
	}
	cleanup = false
	return finalPath, nil
}

func (s *Service) saveSourceFile(jobID uuid.UUID, fileName string, payload []byte) (string, error) {
	if err := s.ensureImportDirectory(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = ".csv"
	}
	path := filepath.Join(s.importDir, fmt.Sprintf("source-%s%s", jobID, ext))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("failed to save source file: %w", err)
	}
	return path, nil
}

func (s *Service) removeSourceFile(path *string) {
	if path == nil || strings.TrimSpace(*path) == "" {
		return
	}
	if err := os.Remove(*path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warnf("failed to remove import source file %s: %v", *path, err)
	}
}

func (s *Service) ensureImportDirectory() error {
	if strings.TrimSpace(s.importDir) == "" {
		return errors.New("import directory is not configured")
	}
	if err := os.MkdirAll(s.importDir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure import directory: %w", err)
	}
	return nil
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, err error) {
	if err == nil {
		return
	}
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}
	message := truncateError(err)
	if markErr := s.jobs.MarkFailed(ctx, jobID, message); markErr != nil {
		s.logger.WithField("job_id", jobID).Errorf("failed to mark import job failed: %v (original error: %v)", markErr, err)
		return
	}
	s.logger.WithField("job_id", jobID).Warnf("import job failed: %v", err)
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	const maxLen = 512
	msg := err.Error()
	if len(msg) > maxLen {
		return msg[:maxLen]
	}
	return msg
}
