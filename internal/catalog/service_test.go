package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/crmimport/internal/domain"
	"github.com/rpattn/crmimport/internal/repository"
)

func TestFieldsMergesStandardAndCustom(t *testing.T) {
	orgID := uuid.New()
	fields := &fakeFieldRepo{}
	fields.items = append(fields.items,
		domain.NewCustomField(orgID, domain.RecordTypeContacts, "industry", "Industry", domain.FieldKindText, nil, false),
		// Colliding key: the standard email field must win.
		domain.NewCustomField(orgID, domain.RecordTypeContacts, "email", "Email Override", domain.FieldKindNumber, nil, false),
	)
	service := NewService(fields, &fakeStageRepo{})

	merged, err := service.Fields(context.Background(), orgID, domain.RecordTypeContacts)
	if err != nil {
		t.Fatalf("Fields returned error: %v", err)
	}

	byKey := map[string]domain.Field{}
	for _, field := range merged {
		if _, dup := byKey[field.Key]; dup {
			t.Fatalf("duplicate key %q in merged catalog", field.Key)
		}
		byKey[field.Key] = field
	}
	if _, ok := byKey["industry"]; !ok {
		t.Fatalf("expected custom field in merged catalog, got %v", merged)
	}
	if email := byKey["email"]; email.Kind != domain.FieldKindText {
		t.Fatalf("expected standard email definition to win, got %+v", email)
	}
}

func TestFieldsRejectsUnknownRecordType(t *testing.T) {
	service := NewService(&fakeFieldRepo{}, &fakeStageRepo{})

	_, err := service.Fields(context.Background(), uuid.New(), domain.RecordType("companies"))
	if err == nil || !strings.Contains(err.Error(), `unsupported record type "companies"`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateCustomFieldNormalizesKey(t *testing.T) {
	service := NewService(&fakeFieldRepo{}, &fakeStageRepo{})

	field, err := service.CreateCustomField(context.Background(), uuid.New(), domain.RecordTypeContacts, "  Lead Source! ", "", domain.FieldKindText, nil, false)
	if err != nil {
		t.Fatalf("CreateCustomField returned error: %v", err)
	}
	if field.Key != "lead_source" {
		t.Fatalf("expected normalized key lead_source, got %q", field.Key)
	}
	if field.Label != "lead_source" {
		t.Fatalf("expected key as fallback label, got %q", field.Label)
	}
}

func TestCreateCustomFieldValidation(t *testing.T) {
	service := NewService(&fakeFieldRepo{}, &fakeStageRepo{})
	orgID := uuid.New()

	cases := []struct {
		name    string
		key     string
		kind    domain.FieldKind
		options []string
		wantErr string
	}{
		{"shadows standard field", "Email", domain.FieldKindText, nil, `custom field key "email" shadows a standard field`},
		{"unsupported kind", "priority", domain.FieldKind("fancy"), nil, `unsupported field kind "fancy"`},
		{"enum without options", "tier", domain.FieldKindEnum, nil, "enum custom fields require at least one option"},
		{"blank key", "  !! ", domain.FieldKindText, nil, "custom field key is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateCustomField(context.Background(), orgID, domain.RecordTypeContacts, tc.key, "", tc.kind, tc.options, false)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateStage(t *testing.T) {
	stages := &fakeStageRepo{}
	service := NewService(&fakeFieldRepo{}, stages)
	orgID := uuid.New()

	stage, err := service.CreateStage(context.Background(), orgID, "  Negotiation ", 3)
	if err != nil {
		t.Fatalf("CreateStage returned error: %v", err)
	}
	if stage.Name != "Negotiation" || stage.Position != 3 {
		t.Fatalf("unexpected stage: %+v", stage)
	}
	if stage.ID == uuid.Nil {
		t.Fatalf("expected stage ID assigned")
	}

	if _, err := service.CreateStage(context.Background(), orgID, "   ", 0); err == nil || !strings.Contains(err.Error(), "stage name is required") {
		t.Fatalf("expected blank name rejection, got %v", err)
	}
}

// stubs

type fakeFieldRepo struct {
	items []domain.CustomField
}

func (f *fakeFieldRepo) Create(ctx context.Context, field domain.CustomField) (domain.CustomField, error) {
	f.items = append(f.items, field)
	return field, nil
}

func (f *fakeFieldRepo) List(ctx context.Context, organizationID uuid.UUID, recordType domain.RecordType) ([]domain.CustomField, error) {
	fields := []domain.CustomField{}
	for _, field := range f.items {
		if field.OrganizationID == organizationID && field.RecordType == recordType {
			fields = append(fields, field)
		}
	}
	return fields, nil
}

type fakeStageRepo struct {
	items []domain.PipelineStage
}

func (f *fakeStageRepo) Create(ctx context.Context, stage domain.PipelineStage) (domain.PipelineStage, error) {
	f.items = append(f.items, stage)
	return stage, nil
}

func (f *fakeStageRepo) List(ctx context.Context, organizationID uuid.UUID) ([]domain.PipelineStage, error) {
	return append([]domain.PipelineStage(nil), f.items...), nil
}

var _ repository.CustomFieldRepository = (*fakeFieldRepo)(nil)
var _ repository.PipelineStageRepository = (*fakeStageRepo)(nil)
