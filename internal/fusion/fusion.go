// Package fusion implements the decision of whether to invoke the LLM
// parser, the choice between heuristic and LLM output, the duration-source
// priority rule, and points computation, per spec §4.F. Stateless aside
// from the settings it is configured with.
package fusion

import (
	"context"

	"diarynlp/internal/config"
	"diarynlp/internal/domain"
	"diarynlp/internal/textproc"
)

// HistoryReader is the slice of history.Store that Fuse needs: a read-only
// average-time lookup. Kept minimal so fusion doesn't depend on the full
// HistoryStore contract (record/stats are the analyzer's concern).
type HistoryReader interface {
	GetAverageTime(ctx context.Context, userID int64, actionText string) (minutes int, ok bool)
}

// Fusion applies the selection and enrichment rules of §4.F.
type Fusion struct {
	settings config.Settings
}

// New builds a Fusion configured by settings.
func New(settings config.Settings) *Fusion {
	return &Fusion{settings: settings}
}

// ShouldUseLLM decides whether the LLM parser should be invoked for this
// request, given the heuristic parser's own confidence and action count.
func (f *Fusion) ShouldUseLLM(heuristicConfidence float64, heuristicCount int) bool {
	if heuristicCount == 0 {
		return true
	}
	return heuristicConfidence < f.settings.HeuristicConfidenceThreshold
}

// Fuse selects either the LLM or heuristic action list (never both — per
// spec's Open Question §9.1, a successful LLM invocation is trusted to be
// complete) and enriches each action with its duration source and points.
func (f *Fusion) Fuse(ctx context.Context, userID int64, heuristicActions, llmActions []domain.RawAction, history HistoryReader) []domain.Action {
	selected := llmActions
	if len(selected) == 0 {
		selected = heuristicActions
	}

	out := make([]domain.Action, 0, len(selected))
	for _, raw := range selected {
		out = append(out, f.enrich(ctx, userID, raw, history))
	}
	return out
}

func (f *Fusion) enrich(ctx context.Context, userID int64, raw domain.RawAction, history HistoryReader) domain.Action {
	minutes, source := f.resolveDuration(ctx, userID, raw, history)

	weight := raw.AchievementWeight
	if raw.Type == domain.ActionTypeAchievement && weight == nil {
		w := f.settings.AchievementDefaultWeight
		weight = &w
	}

	action := domain.Action{
		Category:             raw.Category,
		Subcategory:          raw.Subcategory,
		Action:               raw.Action,
		Type:                 raw.Type,
		EstimatedTimeMinutes: minutes,
		TimeSource:           source,
		Confidence:           raw.Confidence,
		AchievementWeight:    weight,
	}
	action.Points = action.CanonicalPoints()
	return action
}

// resolveDuration applies the duration-source priority ladder: text (parser
// reported the time with confidence ≥ 0.7), then history, then model
// (parser reported a time at any confidence), then the configured default.
func (f *Fusion) resolveDuration(ctx context.Context, userID int64, raw domain.RawAction, history HistoryReader) (int, domain.TimeSource) {
	if raw.EstimatedTimeMinutes != nil && raw.Confidence >= 0.7 {
		return *raw.EstimatedTimeMinutes, domain.TimeSourceText
	}

	normalized := textproc.NormalizeText(raw.Action)
	if history != nil {
		if minutes, ok := history.GetAverageTime(ctx, userID, normalized); ok {
			return minutes, domain.TimeSourceHistory
		}
	}

	if raw.EstimatedTimeMinutes != nil {
		return *raw.EstimatedTimeMinutes, domain.TimeSourceModel
	}

	return f.settings.DefaultTimeMinutes, domain.TimeSourceDefault
}
