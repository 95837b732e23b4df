package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Deal represents a CRM deal (opportunity) record tied to a contact.
type Deal struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	ContactID      uuid.UUID      `json:"contact_id"`
	Name           string         `json:"name"`
	StageID        *uuid.UUID     `json:"stage_id,omitempty"`
	Amount         *float64       `json:"amount,omitempty"`
	CloseDate      *time.Time     `json:"close_date,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Custom         map[string]any `json:"custom,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewDealFromValues builds a deal for the given contact from coerced import
// values keyed by field key.
func NewDealFromValues(organizationID, contactID uuid.UUID, values map[string]any) Deal {
	now := time.Now()
	deal := Deal{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		ContactID:      contactID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return deal.WithValues(values)
}

// WithValues returns a copy with the given field values applied. Only keys
// present in values are overwritten.
func (d Deal) WithValues(values map[string]any) Deal {
	out := d
	out.Tags = append([]string(nil), d.Tags...)
	out.Custom = make(map[string]any, len(d.Custom)+len(values))
	for key, value := range d.Custom {
		out.Custom[key] = value
	}

	for key, value := range values {
		switch key {
		case "name":
			out.Name = stringValue(value)
		case FieldKeyStage:
			if id, ok := value.(uuid.UUID); ok {
				stage := id
				out.StageID = &stage
			}
		case "amount":
			if f, ok := value.(float64); ok {
				amount := f
				out.Amount = &amount
			}
		case "close_date":
			if t, ok := value.(time.Time); ok {
				date := t
				out.CloseDate = &date
			}
		case "notes":
			out.Notes = stringValue(value)
		case "tags":
			out.Tags = stringSliceValue(value)
		default:
			out.Custom[key] = value
		}
	}

	out.UpdatedAt = time.Now()
	return out
}

// NormalizedName returns the natural-key form of the deal name.
func (d Deal) NormalizedName() string {
	return strings.ToLower(strings.TrimSpace(d.Name))
}
