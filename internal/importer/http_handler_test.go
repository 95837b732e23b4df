package importer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/crmimport/internal/auth"
	"github.com/rpattn/crmimport/internal/domain"
)

func TestHandlerSubmitSyncImport(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	body, contentType := multipartUpload(t, map[string]string{
		"organizationId": env.orgID.String(),
		"recordType":     "contacts",
		"mapping":        `{"email":"email"}`,
	}, "contacts.csv", "email\na@example.com\nb@example.com\n")

	req := httptest.NewRequest(http.MethodPost, "/api/import/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}

	var decoded struct {
		TotalRecords int               `json:"totalRecords"`
		Created      int               `json:"created"`
		Skipped      int               `json:"skipped"`
		Errors       []domain.RowError `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if decoded.TotalRecords != 2 || decoded.Created != 2 || decoded.Skipped != 0 {
		t.Fatalf("unexpected counters: %+v", decoded)
	}
}

func TestHandlerAsyncJobLifecycle(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	body, contentType := multipartUpload(t, map[string]string{
		"organizationId": env.orgID.String(),
		"recordType":     "contacts",
		"mapping":        `{"email":"email"}`,
		"async":          "true",
	}, "contacts.csv", "email\na@example.com\na@example.com\n")

	req := httptest.NewRequest(http.MethodPost, "/api/import/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted struct {
		JobID uuid.UUID `json:"jobId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if accepted.JobID == uuid.Nil {
		t.Fatalf("expected a job ID in the response")
	}

	waitForTerminal(t, env, accepted.JobID)

	statusReq := httptest.NewRequest(http.MethodGet, "/api/import/jobs/"+accepted.JobID.String(), nil)
	statusRec := httptest.NewRecorder()
	handler.ServeHTTP(statusRec, statusReq)

	if statusRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", statusRec.Code, statusRec.Body.String())
	}
	var status struct {
		ID       uuid.UUID `json:"id"`
		Status   string    `json:"status"`
		Created  int       `json:"created"`
		Skipped  int       `json:"skipped"`
		Progress float64   `json:"progress"`
		Duration *float64  `json:"duration"`
	}
	if err := json.Unmarshal(statusRec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.ID != accepted.JobID || status.Status != "completed" {
		t.Fatalf("unexpected status payload: %+v", status)
	}
	if status.Created != 1 || status.Skipped != 1 || status.Progress != 100 {
		t.Fatalf("unexpected counters: %+v", status)
	}
	if status.Duration == nil || *status.Duration < 0 {
		t.Fatalf("expected a duration on the terminal job, got %+v", status.Duration)
	}

	exportReq := httptest.NewRequest(http.MethodGet, "/api/import/jobs/"+accepted.JobID.String()+"/skipped", nil)
	exportRec := httptest.NewRecorder()
	handler.ServeHTTP(exportRec, exportReq)

	if exportRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", exportRec.Code, exportRec.Body.String())
	}
	if got := exportRec.Header().Get("Content-Type"); got != "text/csv" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := exportRec.Header().Get("Content-Disposition"); !strings.Contains(got, fmt.Sprintf("skipped-%s.csv", accepted.JobID)) {
		t.Fatalf("unexpected content disposition %q", got)
	}
	records, err := csv.NewReader(exportRec.Body).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse export: %v", err)
	}
	if len(records) != 2 || records[0][0] != "email" || records[1][0] != "a@example.com" {
		t.Fatalf("unexpected export contents: %v", records)
	}
}

func TestHandlerSubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	cases := []struct {
		name     string
		fields   map[string]string
		wantCode int
		wantBody string
	}{
		{
			name: "malformed mapping",
			fields: map[string]string{
				"organizationId": env.orgID.String(),
				"recordType":     "contacts",
				"mapping":        "not-json",
			},
			wantCode: http.StatusBadRequest,
			wantBody: "mapping must be a JSON object",
		},
		{
			name: "unsupported duplicate strategy",
			fields: map[string]string{
				"organizationId":    env.orgID.String(),
				"recordType":        "contacts",
				"duplicateStrategy": "merge",
			},
			wantCode: http.StatusBadRequest,
			wantBody: `unsupported duplicateStrategy "merge"`,
		},
		{
			name: "unsupported contact strategy",
			fields: map[string]string{
				"organizationId":  env.orgID.String(),
				"recordType":      "deals",
				"contactStrategy": "invent",
			},
			wantCode: http.StatusBadRequest,
			wantBody: `unsupported contactStrategy "invent"`,
		},
		{
			name: "async not boolean",
			fields: map[string]string{
				"organizationId": env.orgID.String(),
				"recordType":     "contacts",
				"async":          "definitely",
			},
			wantCode: http.StatusBadRequest,
			wantBody: "async must be a boolean",
		},
		{
			name: "unknown record type",
			fields: map[string]string{
				"organizationId": env.orgID.String(),
				"recordType":     "leads",
			},
			wantCode: http.StatusBadRequest,
			wantBody: `unsupported record type "leads"`,
		},
		{
			name: "invalid organization id",
			fields: map[string]string{
				"organizationId": "not-a-uuid",
				"recordType":     "contacts",
			},
			wantCode: http.StatusBadRequest,
			wantBody: "invalid organizationId",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tc.fields, "contacts.csv", "email\na@example.com\n")
			req := httptest.NewRequest(http.MethodPost, "/api/import/jobs", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.wantBody) {
				t.Fatalf("expected body containing %q, got %q", tc.wantBody, rec.Body.String())
			}
		})
	}
}

func TestHandlerSubmitRequiresFile(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("organizationId", env.orgID.String())
	_ = writer.WriteField("recordType", "contacts")
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import/jobs", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "file is required") {
		t.Fatalf("expected missing file rejection, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerPreview(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	body, contentType := multipartUpload(t, map[string]string{
		"organizationId": env.orgID.String(),
		"recordType":     "contacts",
	}, "contacts.csv", "Email Address,First Name\na@example.com,Alice\n")

	req := httptest.NewRequest(http.MethodPost, "/api/import/preview", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var decoded struct {
		Headers []struct {
			Header         string  `json:"header"`
			OriginalLabel  string  `json:"originalLabel"`
			SuggestedField *string `json:"suggestedField"`
		} `json:"headers"`
		Preview   [][]string `json:"preview"`
		TotalRows int        `json:"totalRows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if decoded.TotalRows != 1 || len(decoded.Preview) != 1 {
		t.Fatalf("unexpected sample: %+v", decoded)
	}
	if len(decoded.Headers) != 2 || decoded.Headers[0].OriginalLabel != "Email Address" {
		t.Fatalf("unexpected headers: %+v", decoded.Headers)
	}
	if decoded.Headers[0].SuggestedField == nil || *decoded.Headers[0].SuggestedField != "email" {
		t.Fatalf("expected email suggestion, got %+v", decoded.Headers[0])
	}
}

func TestHandlerPreviewRejectsBadLimit(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	body, contentType := multipartUpload(t, map[string]string{
		"organizationId": env.orgID.String(),
		"recordType":     "contacts",
		"limit":          "zero",
	}, "contacts.csv", "email\na@example.com\n")

	req := httptest.NewRequest(http.MethodPost, "/api/import/preview", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "limit must be a positive integer") {
		t.Fatalf("expected limit rejection, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerStatusNotFound(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	req := httptest.NewRequest(http.MethodGet, "/api/import/jobs/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "import job not found") {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerStatusRejectsMalformedID(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	req := httptest.NewRequest(http.MethodGet, "/api/import/jobs/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid job ID") {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerSkippedExportConflictBeforeCompletion(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	job := domain.NewImportJob(env.orgID, domain.RecordTypeContacts, "contacts.csv", 5)
	env.jobs.put(job)

	req := httptest.NewRequest(http.MethodGet, "/api/import/jobs/"+job.ID.String()+"/skipped", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "import job is not completed") {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerSkippedExportHeaderOnlyWhenNothingSkipped(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	body, contentType := multipartUpload(t, map[string]string{
		"organizationId": env.orgID.String(),
		"recordType":     "contacts",
		"mapping":        `{"email":"email"}`,
		"async":          "true",
	}, "contacts.csv", "email\na@example.com\n")

	req := httptest.NewRequest(http.MethodPost, "/api/import/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted struct {
		JobID uuid.UUID `json:"jobId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	waitForTerminal(t, env, accepted.JobID)

	exportReq := httptest.NewRequest(http.MethodGet, "/api/import/jobs/"+accepted.JobID.String()+"/skipped", nil)
	exportRec := httptest.NewRecorder()
	handler.ServeHTTP(exportRec, exportReq)

	if exportRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", exportRec.Code, exportRec.Body.String())
	}
	if got := exportRec.Header().Get("Content-Type"); got != "text/csv" {
		t.Fatalf("unexpected content type %q", got)
	}
	records, err := csv.NewReader(exportRec.Body).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse export: %v", err)
	}
	if len(records) != 1 || records[0][0] != "email" {
		t.Fatalf("expected a header-only export, got %v", records)
	}
}

func TestHandlerListJobsFiltersByOrganizationAndStatus(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	queued := domain.NewImportJob(env.orgID, domain.RecordTypeContacts, "a.csv", 10)
	env.jobs.put(queued)
	completed := domain.NewImportJob(env.orgID, domain.RecordTypeDeals, "b.csv", 10)
	env.jobs.put(completed.WithStatus(domain.ImportJobStatusProcessing).WithStatus(domain.ImportJobStatusCompleted))
	otherOrg := domain.NewImportJob(uuid.New(), domain.RecordTypeContacts, "c.csv", 10)
	env.jobs.put(otherOrg)

	target := "/api/import/jobs?organizationId=" + env.orgID.String() + "&status=queued"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var decoded struct {
		Jobs []struct {
			ID             uuid.UUID `json:"id"`
			OrganizationID uuid.UUID `json:"organizationId"`
			Status         string    `json:"status"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(decoded.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %+v", decoded.Jobs)
	}
	if decoded.Jobs[0].ID != queued.ID || decoded.Jobs[0].Status != "queued" {
		t.Fatalf("unexpected job payload: %+v", decoded.Jobs[0])
	}
}

func TestHandlerListJobsRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	req := httptest.NewRequest(http.MethodGet, "/api/import/jobs?status=bogus", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `invalid status "bogus"`) {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerEnforcesOrganizationScope(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	body, contentType := multipartUpload(t, map[string]string{
		"organizationId": env.orgID.String(),
		"recordType":     "contacts",
	}, "contacts.csv", "email\na@example.com\n")

	req := httptest.NewRequest(http.MethodPost, "/api/import/jobs", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(auth.ContextWithOrganizationID(req.Context(), uuid.New()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cross-tenant submission, got %d: %s", rec.Code, rec.Body.String())
	}

	job := domain.NewImportJob(env.orgID, domain.RecordTypeContacts, "contacts.csv", 5)
	env.jobs.put(job)

	statusReq := httptest.NewRequest(http.MethodGet, "/api/import/jobs/"+job.ID.String(), nil)
	statusReq = statusReq.WithContext(auth.ContextWithOrganizationID(statusReq.Context(), uuid.New()))
	statusRec := httptest.NewRecorder()
	handler.ServeHTTP(statusRec, statusReq)

	if statusRec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cross-tenant status read, got %d: %s", statusRec.Code, statusRec.Body.String())
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHTTPHandler(env.service)

	req := httptest.NewRequest(http.MethodDelete, "/api/import/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func multipartUpload(t *testing.T, fields map[string]string, fileName, contents string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write form field %s: %v", key, err)
		}
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("failed to create file part: %v", err)
	}
	if _, err := io.WriteString(part, contents); err != nil {
		t.Fatalf("failed to write file contents: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to finalize multipart body: %v", err)
	}
	return &buf, writer.FormDataContentType()
}
