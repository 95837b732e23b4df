package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewDealFromValues(t *testing.T) {
	orgID := uuid.New()
	contactID := uuid.New()
	stageID := uuid.New()
	closeDate := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	deal := NewDealFromValues(orgID, contactID, map[string]any{
		"name":       "Acme Renewal",
		"stage":      stageID,
		"amount":     1200.50,
		"close_date": closeDate,
		"notes":      "renewal cycle",
		"priority":   "high",
	})

	if deal.OrganizationID != orgID || deal.ContactID != contactID {
		t.Fatalf("unexpected identity fields: %+v", deal)
	}
	if deal.Name != "Acme Renewal" || deal.Notes != "renewal cycle" {
		t.Fatalf("text fields not applied: %+v", deal)
	}
	if deal.StageID == nil || *deal.StageID != stageID {
		t.Fatalf("stage not applied: %+v", deal.StageID)
	}
	if deal.Amount == nil || *deal.Amount != 1200.50 {
		t.Fatalf("amount not applied: %+v", deal.Amount)
	}
	if deal.CloseDate == nil || !deal.CloseDate.Equal(closeDate) {
		t.Fatalf("close date not applied: %+v", deal.CloseDate)
	}
	if deal.Custom["priority"] != "high" {
		t.Fatalf("unknown key should land in custom bag: %+v", deal.Custom)
	}
}

func TestDealWithValuesIgnoresMistypedValues(t *testing.T) {
	deal := NewDealFromValues(uuid.New(), uuid.New(), map[string]any{
		"name":   "Acme Renewal",
		"stage":  "not-a-uuid",
		"amount": "not-a-number",
	})

	if deal.StageID != nil {
		t.Fatalf("mistyped stage should be ignored, got %v", deal.StageID)
	}
	if deal.Amount != nil {
		t.Fatalf("mistyped amount should be ignored, got %v", deal.Amount)
	}
}

func TestDealNormalizedName(t *testing.T) {
	deal := Deal{Name: "  Acme RENEWAL "}
	if got := deal.NormalizedName(); got != "acme renewal" {
		t.Fatalf("normalized name = %q", got)
	}
}
