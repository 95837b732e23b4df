package importer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rpattn/crmimport/internal/domain"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// maxSuggestionDistance bounds how far a fuzzy match may drift before a
// header is left unmapped. Suggestions are advisory; a miss costs the
// operator one manual assignment, a wild guess costs a bad import.
const maxSuggestionDistance = 4

var nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeToken(value string) string {
	return nonAlnumPattern.ReplaceAllString(strings.ToLower(value), "")
}

// suggestFieldKeys proposes one target field per header, in header order.
// Matching runs in tiers: exact key or label, declared synonyms, containment,
// then a fuzzy ranking fallback. Each field is claimed at most once; ties go
// to the earlier declared field, so the same input always yields the same
// suggestions.
func suggestFieldKeys(headers []string, fields []domain.Field) []*string {
	claimed := make(map[string]bool, len(fields))
	suggestions := make([]*string, len(headers))

	for idx, header := range headers {
		key := matchFieldKey(header, fields, claimed)
		if key == "" {
			continue
		}
		claimed[key] = true
		keyCopy := key
		suggestions[idx] = &keyCopy
	}
	return suggestions
}

func matchFieldKey(header string, fields []domain.Field, claimed map[string]bool) string {
	normalized := normalizeToken(header)
	if normalized == "" {
		return ""
	}

	for _, field := range fields {
		if claimed[field.Key] {
			continue
		}
		if normalizeToken(field.Key) == normalized || normalizeToken(field.Label) == normalized {
			return field.Key
		}
	}

	for _, field := range fields {
		if claimed[field.Key] {
			continue
		}
		for _, synonym := range field.Synonyms {
			if normalizeToken(synonym) == normalized {
				return field.Key
			}
		}
	}

	for _, field := range fields {
		if claimed[field.Key] {
			continue
		}
		for _, token := range fieldTokens(field) {
			if tokensContain(normalized, token) {
				return field.Key
			}
		}
	}

	return fuzzyFieldKey(normalized, fields, claimed)
}

// tokensContain reports whether one normalized token contains the other.
// Tokens shorter than three characters are too ambiguous to claim a column.
func tokensContain(a, b string) bool {
	if len(a) < 3 || len(b) < 3 {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func fuzzyFieldKey(normalized string, fields []domain.Field, claimed map[string]bool) string {
	tokens := []string{}
	owners := []string{}
	for _, field := range fields {
		if claimed[field.Key] {
			continue
		}
		for _, token := range fieldTokens(field) {
			if len(token) < 3 {
				continue
			}
			tokens = append(tokens, token)
			owners = append(owners, field.Key)
		}
	}
	if len(tokens) == 0 {
		return ""
	}

	ranks := fuzzy.RankFindNormalizedFold(normalized, tokens)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})
	for _, rank := range ranks {
		if rank.Distance > maxSuggestionDistance {
			break
		}
		return owners[rank.OriginalIndex]
	}
	return ""
}

func fieldTokens(field domain.Field) []string {
	tokens := []string{normalizeToken(field.Key)}
	if label := normalizeToken(field.Label); label != "" && label != tokens[0] {
		tokens = append(tokens, label)
	}
	for _, synonym := range field.Synonyms {
		token := normalizeToken(synonym)
		if token == "" {
			continue
		}
		duplicate := false
		for _, existing := range tokens {
			if existing == token {
				duplicate = true
				break
			}
		}
		if !duplicate {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// suggestStageValues proposes a stage id for each distinct raw value of a
// stage column, in first-appearance order. Values that resolve to no stage
// stay in the result with a nil id so the operator sees what needs mapping.
func suggestStageValues(column []string, stages []domain.PipelineStage) []StageSuggestion {
	seen := make(map[string]bool)
	suggestions := []StageSuggestion{}

	for _, cell := range column {
		value := strings.TrimSpace(cell)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true

		suggestion := StageSuggestion{Value: value}
		if stage, ok := matchStage(value, stages); ok {
			id := stage.ID.String()
			suggestion.StageID = &id
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions
}

func matchStage(value string, stages []domain.PipelineStage) (domain.PipelineStage, bool) {
	normalized := normalizeToken(value)
	if normalized == "" {
		return domain.PipelineStage{}, false
	}

	for _, stage := range stages {
		if normalizeToken(stage.Name) == normalized {
			return stage, true
		}
	}
	for _, stage := range stages {
		if tokensContain(normalized, normalizeToken(stage.Name)) {
			return stage, true
		}
	}

	names := make([]string, len(stages))
	for idx, stage := range stages {
		names[idx] = normalizeToken(stage.Name)
	}
	ranks := fuzzy.RankFindNormalizedFold(normalized, names)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})
	for _, rank := range ranks {
		if rank.Distance > maxSuggestionDistance {
			break
		}
		return stages[rank.OriginalIndex], true
	}
	return domain.PipelineStage{}, false
}
