package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/crmimport/internal/domain"

	"github.com/google/uuid"
)

var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
	"01-02-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

var currencyReplacer = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "")

// coerceValue interprets one non-empty raw cell according to the target field
// kind. Callers must skip empty cells; absence is not a coercion failure.
func coerceValue(field domain.Field, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch field.Kind {
	case domain.FieldKindText:
		return raw, nil
	case domain.FieldKindNumber:
		value, err := parseNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to number", raw)
		}
		return value, nil
	case domain.FieldKindDate:
		value, err := parseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to date", raw)
		}
		return value, nil
	case domain.FieldKindBoolean:
		value := strings.ToLower(raw)
		switch value {
		case "1", "yes", "y":
			return true, nil
		case "0", "no", "n":
			return false, nil
		}
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to boolean", raw)
		}
		return boolVal, nil
	case domain.FieldKindTagList:
		return splitTags(raw), nil
	case domain.FieldKindEnum:
		option, ok := matchOption(raw, field.Options)
		if !ok {
			return nil, fmt.Errorf("value %q does not match any option for %s", raw, field.Key)
		}
		return option, nil
	default:
		return raw, nil
	}
}

// parseNumber accepts plain and formatted numbers: currency symbols, thousands
// separators and inner spaces are stripped, and accounting-style parentheses
// mark negatives.
func parseNumber(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") && len(cleaned) > 2 {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	cleaned = currencyReplacer.Replace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if negative {
		value = -value
	}
	return value, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

// splitTags splits on commas, trims each tag, and drops duplicates
// case-insensitively keeping the first casing seen.
func splitTags(raw string) []string {
	parts := strings.Split(raw, ",")

	tags := []string{}
	seen := make(map[string]struct{})
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// matchOption resolves a raw value against enum options case-insensitively,
// returning the canonical option casing.
func matchOption(raw string, options []string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(raw))
	for _, option := range options {
		if strings.ToLower(strings.TrimSpace(option)) == needle {
			return option, true
		}
	}
	return "", false
}

// resolveStage maps a raw stage cell to a pipeline stage id. The submitted
// value mapping is authoritative; values it does not cover fall back to the
// default stage. An uncovered value with no default configured is an error
// for the row. Empty cells take the default silently.
func resolveStage(raw string, valueMapping map[string]string, stages []domain.PipelineStage, defaultStageID *uuid.UUID) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultStageID, nil
	}

	if mapped, ok := lookupStageMapping(raw, valueMapping); ok {
		id, err := uuid.Parse(strings.TrimSpace(mapped))
		if err == nil && stageExists(id, stages) {
			return &id, nil
		}
	}

	if defaultStageID != nil {
		return defaultStageID, nil
	}
	return nil, fmt.Errorf("unknown stage %q", raw)
}

func stageExists(id uuid.UUID, stages []domain.PipelineStage) bool {
	for _, stage := range stages {
		if stage.ID == id {
			return true
		}
	}
	return false
}

func lookupStageMapping(raw string, valueMapping map[string]string) (string, bool) {
	if len(valueMapping) == 0 {
		return "", false
	}
	if mapped, ok := valueMapping[raw]; ok {
		return mapped, true
	}
	for key, mapped := range valueMapping {
		if strings.EqualFold(strings.TrimSpace(key), raw) {
			return mapped, true
		}
	}
	return "", false
}
