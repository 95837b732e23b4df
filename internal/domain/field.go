package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecordType identifies which CRM record set an import targets.
type RecordType string

const (
	RecordTypeContacts RecordType = "contacts"
	RecordTypeDeals    RecordType = "deals"
)

// Valid reports whether the record type is one the importer understands.
func (r RecordType) Valid() bool {
	return r == RecordTypeContacts || r == RecordTypeDeals
}

// FieldKind enumerates the value kinds an importable field can carry.
type FieldKind string

const (
	FieldKindText    FieldKind = "text"
	FieldKindNumber  FieldKind = "number"
	FieldKindDate    FieldKind = "date"
	FieldKindBoolean FieldKind = "boolean"
	FieldKindTagList FieldKind = "tag_list"
	FieldKindEnum    FieldKind = "enum"
)

// Valid reports whether the kind is one of the supported coercion kinds.
func (k FieldKind) Valid() bool {
	switch k {
	case FieldKindText, FieldKindNumber, FieldKindDate, FieldKindBoolean, FieldKindTagList, FieldKindEnum:
		return true
	}
	return false
}

// Field describes one importable target field: the key rows are coerced into,
// the label shown to operators, and how raw cells should be interpreted.
type Field struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
	Synonyms []string  `json:"-"`
}

// FieldKeyStage is the deal field that resolves through the stage value mapping.
const FieldKeyStage = "stage"

// ContactFields returns the standard importable fields for contact records,
// in declaration order. Declaration order breaks mapping-inference ties.
func ContactFields() []Field {
	return []Field{
		{Key: "email", Label: "Email", Kind: FieldKindText, Synonyms: []string{"e-mail", "e_mail", "mail", "email_address", "emailaddress"}},
		{Key: "first_name", Label: "First Name", Kind: FieldKindText, Synonyms: []string{"firstname", "fname", "first", "given_name", "forename"}},
		{Key: "last_name", Label: "Last Name", Kind: FieldKindText, Synonyms: []string{"lastname", "lname", "last", "surname", "family_name"}},
		{Key: "phone", Label: "Phone", Kind: FieldKindText, Synonyms: []string{"phone_number", "mobile", "telephone", "tel"}},
		{Key: "company", Label: "Company", Kind: FieldKindText, Synonyms: []string{"organization", "organisation", "account", "company_name", "employer"}},
		{Key: "title", Label: "Job Title", Kind: FieldKindText, Synonyms: []string{"job_title", "position", "role"}},
		{Key: "address", Label: "Address", Kind: FieldKindText, Synonyms: []string{"street", "address_line", "location"}},
		{Key: "tags", Label: "Tags", Kind: FieldKindTagList, Synonyms: []string{"labels", "keywords", "categories"}},
	}
}

// DealFields returns the standard importable fields for deal records. The
// contact_* fields feed contact resolution and are not persisted on the deal.
func DealFields() []Field {
	return []Field{
		{Key: "name", Label: "Deal Name", Kind: FieldKindText, Required: true, Synonyms: []string{"deal_name", "deal", "opportunity", "opportunity_name"}},
		{Key: FieldKeyStage, Label: "Stage", Kind: FieldKindEnum, Synonyms: []string{"pipeline_stage", "deal_stage", "pipeline", "status"}},
		{Key: "amount", Label: "Amount", Kind: FieldKindNumber, Synonyms: []string{"value", "deal_value", "price", "revenue", "total"}},
		{Key: "close_date", Label: "Close Date", Kind: FieldKindDate, Synonyms: []string{"closing_date", "expected_close", "close", "closed_at"}},
		{Key: "notes", Label: "Notes", Kind: FieldKindText, Synonyms: []string{"description", "comments", "details"}},
		{Key: "tags", Label: "Tags", Kind: FieldKindTagList, Synonyms: []string{"labels", "keywords", "categories"}},
		{Key: "contact_email", Label: "Contact Email", Kind: FieldKindText, Synonyms: []string{"email", "e-mail", "mail", "email_address"}},
		{Key: "contact_first_name", Label: "Contact First Name", Kind: FieldKindText, Synonyms: []string{"first_name", "firstname", "first"}},
		{Key: "contact_last_name", Label: "Contact Last Name", Kind: FieldKindText, Synonyms: []string{"last_name", "lastname", "last"}},
	}
}

// StandardFields returns the built-in field set for a record type.
func StandardFields(recordType RecordType) []Field {
	switch recordType {
	case RecordTypeContacts:
		return ContactFields()
	case RecordTypeDeals:
		return DealFields()
	default:
		return nil
	}
}

// CustomField is a tenant-defined importable field persisted alongside the
// standard catalog.
type CustomField struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	RecordType     RecordType `json:"record_type"`
	Key            string     `json:"key"`
	Label          string     `json:"label"`
	Kind           FieldKind  `json:"kind"`
	Options        []string   `json:"options,omitempty"`
	Required       bool       `json:"required"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewCustomField creates a custom field definition with a fresh identifier.
func NewCustomField(organizationID uuid.UUID, recordType RecordType, key, label string, kind FieldKind, options []string, required bool) CustomField {
	return CustomField{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		RecordType:     recordType,
		Key:            key,
		Label:          label,
		Kind:           kind,
		Options:        append([]string(nil), options...),
		Required:       required,
		CreatedAt:      time.Now(),
	}
}

// Field projects the custom definition into the importable field catalog.
func (c CustomField) Field() Field {
	return Field{
		Key:      c.Key,
		Label:    c.Label,
		Kind:     c.Kind,
		Required: c.Required,
		Options:  append([]string(nil), c.Options...),
	}
}

// MergeFields unions standard fields with tenant custom fields. A custom field
// whose key collides with a standard field is dropped; the standard one wins.
func MergeFields(standard []Field, custom []CustomField) []Field {
	merged := append([]Field(nil), standard...)
	seen := make(map[string]struct{}, len(standard))
	for _, field := range standard {
		seen[field.Key] = struct{}{}
	}
	for _, cf := range custom {
		if _, ok := seen[cf.Key]; ok {
			continue
		}
		seen[cf.Key] = struct{}{}
		merged = append(merged, cf.Field())
	}
	return merged
}
