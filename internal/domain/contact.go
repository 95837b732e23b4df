package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Contact represents a CRM contact record.
type Contact struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	Email          string         `json:"email,omitempty"`
	FirstName      string         `json:"first_name,omitempty"`
	LastName       string         `json:"last_name,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Company        string         `json:"company,omitempty"`
	Title          string         `json:"title,omitempty"`
	Address        string         `json:"address,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Custom         map[string]any `json:"custom,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewContactFromValues builds a contact from coerced import values keyed by
// field key. Unknown keys land in the custom property bag.
func NewContactFromValues(organizationID uuid.UUID, values map[string]any) Contact {
	now := time.Now()
	contact := Contact{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return contact.WithValues(values)
}

// WithValues returns a copy with the given field values applied. Only keys
// present in values are overwritten; everything else is preserved.
func (c Contact) WithValues(values map[string]any) Contact {
	out := c
	out.Tags = append([]string(nil), c.Tags...)
	out.Custom = make(map[string]any, len(c.Custom)+len(values))
	for key, value := range c.Custom {
		out.Custom[key] = value
	}

	for key, value := range values {
		switch key {
		case "email":
			out.Email = stringValue(value)
		case "first_name":
			out.FirstName = stringValue(value)
		case "last_name":
			out.LastName = stringValue(value)
		case "phone":
			out.Phone = stringValue(value)
		case "company":
			out.Company = stringValue(value)
		case "title":
			out.Title = stringValue(value)
		case "address":
			out.Address = stringValue(value)
		case "tags":
			out.Tags = stringSliceValue(value)
		default:
			out.Custom[key] = value
		}
	}

	out.UpdatedAt = time.Now()
	return out
}

// NormalizedEmail returns the natural-key form of the contact email.
func (c Contact) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(c.Email))
}

// HasName reports whether both name components are present.
func (c Contact) HasName() bool {
	return strings.TrimSpace(c.FirstName) != "" && strings.TrimSpace(c.LastName) != ""
}

func stringValue(value any) string {
	s, _ := value.(string)
	return s
}

func stringSliceValue(value any) []string {
	s, _ := value.([]string)
	return s
}
