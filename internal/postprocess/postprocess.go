// Package postprocess implements the three normalize/deduplicate/validate
// passes of spec §4.G, run over the fused action list before it is returned
// to the caller and projected into HistoryStore.
package postprocess

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"diarynlp/internal/domain"
)

const defaultSimilarityThreshold = 0.85

// synonyms maps a case-insensitive substring to its canonical replacement,
// applied during the normalize pass. Grounded on the canonicalization table
// in original_source's postprocessor.py.
var synonyms = []struct {
	from string
	to   string
}{
	{"спортзале", "зал"},
	{"качалке", "зал"},
	{"gym", "зал"},
	{"зале", "зал"},
	{"учебник", "книгу"},
	{"книжку", "книгу"},
}

// Postprocessor applies the normalize/deduplicate/validate passes.
type Postprocessor struct {
	SimilarityThreshold float64
}

// New builds a Postprocessor with the given fuzzy-dedup similarity
// threshold; pass 0 to use the spec default (0.85).
func New(similarityThreshold float64) *Postprocessor {
	if similarityThreshold <= 0 {
		similarityThreshold = defaultSimilarityThreshold
	}
	return &Postprocessor{SimilarityThreshold: similarityThreshold}
}

// Process runs normalize, deduplicate, then validate over actions, in order.
func (p *Postprocessor) Process(actions []domain.Action) []domain.Action {
	normalized := p.normalize(actions)
	deduped := p.deduplicate(normalized)
	return p.validate(deduped)
}

func (p *Postprocessor) normalize(actions []domain.Action) []domain.Action {
	out := make([]domain.Action, len(actions))
	for i, a := range actions {
		a.Action = applySynonyms(strings.TrimSpace(a.Action))
		out[i] = a
	}
	return out
}

// applySynonyms case-insensitively substring-replaces known synonyms,
// preserving the capitalization of a replacement that lands at the start of
// the string.
func applySynonyms(text string) string {
	for _, syn := range synonyms {
		lower := strings.ToLower(text)
		idx := strings.Index(lower, syn.from)
		if idx == -1 {
			continue
		}
		replacement := syn.to
		if idx == 0 && unicode.IsUpper([]rune(text)[0]) {
			replacement = capitalizeFirst(replacement)
		}
		text = text[:idx] + replacement + text[idx+len(syn.from):]
	}
	return text
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// deduplicate merges similar actions in place: two actions are similar iff
// they share category and type and their action text is within the
// similarity threshold under normalized Levenshtein distance.
func (p *Postprocessor) deduplicate(actions []domain.Action) []domain.Action {
	merged := make([]domain.Action, 0, len(actions))

	for _, candidate := range actions {
		mergedInto := false
		for i, existing := range merged {
			if similar(existing, candidate, p.SimilarityThreshold) {
				merged[i] = mergeActions(existing, candidate)
				mergedInto = true
				break
			}
		}
		if !mergedInto {
			merged = append(merged, candidate)
		}
	}
	return merged
}

func similar(a, b domain.Action, threshold float64) bool {
	if a.Category != b.Category || a.Type != b.Type {
		return false
	}
	return normalizedSimilarity(a.Action, b.Action) >= threshold
}

// normalizedSimilarity returns 1 - (levenshtein distance / max length), a
// value in [0,1] where 1 means identical strings.
func normalizedSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len([]rune(a))
	if bl := len([]rune(b)); bl > maxLen {
		maxLen = bl
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(strings.ToLower(a), strings.ToLower(b))
	return 1 - float64(dist)/float64(maxLen)
}

// mergeActions merges b into a per spec §4.G.2: time fields come from the
// operand with the higher time-source priority; all other fields come from
// the operand with higher confidence; subcategory may be inherited from the
// loser if the winner's is empty; confidence is the max of the two.
func mergeActions(a, b domain.Action) domain.Action {
	timeWinner, fieldWinner, fieldLoser := a, a, b
	if b.TimeSource.Priority() > a.TimeSource.Priority() {
		timeWinner = b
	}
	if b.Confidence > a.Confidence {
		fieldWinner, fieldLoser = b, a
	}

	merged := fieldWinner
	merged.EstimatedTimeMinutes = timeWinner.EstimatedTimeMinutes
	merged.TimeSource = timeWinner.TimeSource
	merged.Points = timeWinner.Points

	if merged.Subcategory == "" {
		merged.Subcategory = fieldLoser.Subcategory
	}

	merged.Confidence = a.Confidence
	if b.Confidence > merged.Confidence {
		merged.Confidence = b.Confidence
	}

	return merged
}

// validate clamps invariant-violating fields and recomputes points when they
// deviate from the canonical formula by more than 0.01.
func (p *Postprocessor) validate(actions []domain.Action) []domain.Action {
	out := make([]domain.Action, len(actions))
	for i, a := range actions {
		if a.EstimatedTimeMinutes < 0 {
			a.EstimatedTimeMinutes = 10
		}
		if a.Confidence < 0 {
			a.Confidence = 0
		}
		if a.Confidence > 1 {
			a.Confidence = 1
		}
		if a.Type == domain.ActionTypeAchievement && a.AchievementWeight == nil {
			w := 10
			a.AchievementWeight = &w
		}

		canonical := a.CanonicalPoints()
		if diff := a.Points - canonical; diff > 0.01 || diff < -0.01 {
			a.Points = canonical
		}
		out[i] = a
	}
	return out
}
