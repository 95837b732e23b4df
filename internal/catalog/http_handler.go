package catalog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/crmimport/internal/auth"
	"github.com/rpattn/crmimport/internal/domain"
)

// Handler exposes the field catalog and pipeline stages over HTTP. It serves
// both the /api/fields and /api/pipeline/stages mounts.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the catalog service with read and create endpoints.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stages := strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/stages")
	switch {
	case r.Method == http.MethodGet && stages:
		h.handleListStages(w, r)
	case r.Method == http.MethodPost && stages:
		h.handleCreateStage(w, r)
	case r.Method == http.MethodGet:
		h.handleListFields(w, r)
	case r.Method == http.MethodPost:
		h.handleCreateField(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleListFields(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrganization(w, r)
	if !ok {
		return
	}
	recordType := domain.RecordType(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("recordType"))))
	if recordType == "" {
		http.Error(w, "recordType is required", http.StatusBadRequest)
		return
	}
	fields, err := h.service.Fields(r.Context(), orgID, recordType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

type createFieldPayload struct {
	OrganizationID string   `json:"organizationId"`
	RecordType     string   `json:"recordType"`
	Key            string   `json:"key"`
	Label          string   `json:"label"`
	Kind           string   `json:"kind"`
	Options        []string `json:"options"`
	Required       bool     `json:"required"`
}

func (h *Handler) handleCreateField(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload createFieldPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	orgID, err := uuid.Parse(strings.TrimSpace(payload.OrganizationID))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid organizationId: %v", err), http.StatusBadRequest)
		return
	}
	if err := auth.EnforceOrganizationScope(r.Context(), orgID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	field, err := h.service.CreateCustomField(
		r.Context(),
		orgID,
		domain.RecordType(strings.ToLower(strings.TrimSpace(payload.RecordType))),
		payload.Key,
		payload.Label,
		domain.FieldKind(strings.ToLower(strings.TrimSpace(payload.Kind))),
		payload.Options,
		payload.Required,
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, field)
}

func (h *Handler) handleListStages(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrganization(w, r)
	if !ok {
		return
	}
	stages, err := h.service.Stages(r.Context(), orgID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stages)
}

type createStagePayload struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Position       int    `json:"position"`
}

func (h *Handler) handleCreateStage(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload createStagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	orgID, err := uuid.Parse(strings.TrimSpace(payload.OrganizationID))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid organizationId: %v", err), http.StatusBadRequest)
		return
	}
	if err := auth.EnforceOrganizationScope(r.Context(), orgID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	stage, err := h.service.CreateStage(r.Context(), orgID, payload.Name, payload.Position)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, stage)
}

func requireOrganization(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("organizationId"))
	if raw == "" {
		http.Error(w, "organizationId is required", http.StatusBadRequest)
		return uuid.Nil, false
	}
	orgID, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid organizationId: %v", err), http.StatusBadRequest)
		return uuid.Nil, false
	}
	if err := auth.EnforceOrganizationScope(r.Context(), orgID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return uuid.Nil, false
	}
	return orgID, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
