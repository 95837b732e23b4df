package importer

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/crmimport/internal/domain"
)

func TestCoerceNumberFormats(t *testing.T) {
	field := domain.Field{Key: "amount", Kind: domain.FieldKindNumber}

	cases := []struct {
		raw  string
		want float64
	}{
		{"42", 42},
		{"$1,234.56", 1234.56},
		{"€99.9", 99.9},
		{"(500)", -500},
		{"1 200", 1200},
		{"-3.5", -3.5},
	}
	for _, tc := range cases {
		got, err := coerceValue(field, tc.raw)
		if err != nil {
			t.Fatalf("coerce %q returned error: %v", tc.raw, err)
		}
		if got.(float64) != tc.want {
			t.Fatalf("coerce %q = %v, want %v", tc.raw, got, tc.want)
		}
	}

	if _, err := coerceValue(field, "abc"); err == nil || !strings.Contains(err.Error(), `unable to coerce "abc" to number`) {
		t.Fatalf("expected number coercion error, got %v", err)
	}
}

func TestCoerceDateLayouts(t *testing.T) {
	field := domain.Field{Key: "close_date", Kind: domain.FieldKindDate}

	cases := []struct {
		raw  string
		want time.Time
	}{
		{"2024-06-01", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"2024/06/01", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"01/15/2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"Mar 5, 2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"2024-06-01T10:30:00Z", time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := coerceValue(field, tc.raw)
		if err != nil {
			t.Fatalf("coerce %q returned error: %v", tc.raw, err)
		}
		if !got.(time.Time).Equal(tc.want) {
			t.Fatalf("coerce %q = %v, want %v", tc.raw, got, tc.want)
		}
	}

	if _, err := coerceValue(field, "junio primero"); err == nil || !strings.Contains(err.Error(), "unable to coerce") {
		t.Fatalf("expected date coercion error, got %v", err)
	}
}

func TestCoerceBoolean(t *testing.T) {
	field := domain.Field{Key: "active", Kind: domain.FieldKindBoolean}

	truthy := []string{"1", "Yes", "y", "TRUE", "true"}
	for _, raw := range truthy {
		got, err := coerceValue(field, raw)
		if err != nil || got.(bool) != true {
			t.Fatalf("coerce %q = %v (%v), want true", raw, got, err)
		}
	}
	falsy := []string{"0", "No", "n", "FALSE"}
	for _, raw := range falsy {
		got, err := coerceValue(field, raw)
		if err != nil || got.(bool) != false {
			t.Fatalf("coerce %q = %v (%v), want false", raw, got, err)
		}
	}
	if _, err := coerceValue(field, "maybe"); err == nil {
		t.Fatalf("expected boolean coercion error")
	}
}

func TestCoerceEnumReturnsCanonicalOption(t *testing.T) {
	field := domain.Field{Key: "source", Kind: domain.FieldKindEnum, Options: []string{"Web", "Referral"}}

	got, err := coerceValue(field, " web ")
	if err != nil {
		t.Fatalf("coerce returned error: %v", err)
	}
	if got.(string) != "Web" {
		t.Fatalf("expected canonical option casing, got %q", got)
	}

	_, err = coerceValue(field, "Carrier")
	if err == nil || !strings.Contains(err.Error(), `value "Carrier" does not match any option for source`) {
		t.Fatalf("unexpected enum error: %v", err)
	}
}

func TestSplitTagsDedupesCaseInsensitively(t *testing.T) {
	field := domain.Field{Key: "tags", Kind: domain.FieldKindTagList}

	got, err := coerceValue(field, "vip, enterprise, VIP ,,beta")
	if err != nil {
		t.Fatalf("coerce returned error: %v", err)
	}
	if !reflect.DeepEqual(got.([]string), []string{"vip", "enterprise", "beta"}) {
		t.Fatalf("unexpected tags: %v", got)
	}
}

func TestSplitTagsOnlySeparatesOnCommas(t *testing.T) {
	field := domain.Field{Key: "tags", Kind: domain.FieldKindTagList}

	got, err := coerceValue(field, "research; development, sales")
	if err != nil {
		t.Fatalf("coerce returned error: %v", err)
	}
	if !reflect.DeepEqual(got.([]string), []string{"research; development", "sales"}) {
		t.Fatalf("expected semicolons kept inside tags, got %v", got)
	}
}

func TestResolveStage(t *testing.T) {
	stages := []domain.PipelineStage{
		domain.NewPipelineStage(uuid.New(), "Prospecting", 0),
		domain.NewPipelineStage(uuid.New(), "Closed Won", 1),
	}
	defaultID := stages[0].ID
	wonID := stages[1].ID

	t.Run("empty cell takes default", func(t *testing.T) {
		got, err := resolveStage("", nil, stages, &defaultID)
		if err != nil || got == nil || *got != defaultID {
			t.Fatalf("got %v (%v), want default stage", got, err)
		}
	})

	t.Run("mapping hit is authoritative", func(t *testing.T) {
		mapping := map[string]string{"Won": wonID.String()}
		got, err := resolveStage("Won", mapping, stages, &defaultID)
		if err != nil || got == nil || *got != wonID {
			t.Fatalf("got %v (%v), want mapped stage", got, err)
		}
	})

	t.Run("mapping keys match case-insensitively", func(t *testing.T) {
		mapping := map[string]string{" WON ": wonID.String()}
		got, err := resolveStage("won", mapping, stages, &defaultID)
		if err != nil || got == nil || *got != wonID {
			t.Fatalf("got %v (%v), want mapped stage", got, err)
		}
	})

	t.Run("mapping to unknown stage falls back to default", func(t *testing.T) {
		mapping := map[string]string{"Won": uuid.NewString()}
		got, err := resolveStage("Won", mapping, stages, &defaultID)
		if err != nil || got == nil || *got != defaultID {
			t.Fatalf("got %v (%v), want default stage", got, err)
		}
	})

	t.Run("unmapped value falls back to default", func(t *testing.T) {
		got, err := resolveStage("Discovery", nil, stages, &defaultID)
		if err != nil || got == nil || *got != defaultID {
			t.Fatalf("got %v (%v), want default stage", got, err)
		}
	})

	t.Run("unmapped value without default errors", func(t *testing.T) {
		_, err := resolveStage("Discovery", nil, stages, nil)
		if err == nil || !strings.Contains(err.Error(), `unknown stage "Discovery"`) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
