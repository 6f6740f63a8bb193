package analyzer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diarynlp/internal/config"
	"diarynlp/internal/domain"
	"diarynlp/internal/fusion"
	"diarynlp/internal/heuristic"
	"diarynlp/internal/history"
	"diarynlp/internal/llmparser"
	"diarynlp/internal/postprocess"
	"diarynlp/internal/rescache"
	"diarynlp/internal/textproc"
)

func newTestAnalyzer(t *testing.T, mock *llmparser.MockParser) *Analyzer {
	t.Helper()
	settings := config.Defaults()
	settings.CacheTTLSeconds = 60
	return Builder{
		Settings:      settings,
		Preprocessor:  textproc.New(settings.PIIRedactionEnabled),
		Heuristic:     heuristic.New(),
		LLM:           mock,
		Fusion:        fusion.New(settings),
		Postprocessor: postprocess.New(0),
		History:       history.NewMemoryStore(),
		Cache:         rescache.NewMemoryStore(),
		Log:           zerolog.Nop(),
	}.Build()
}

func TestAnalyzeSimpleSportDefaultsToSettingsDefaultTime(t *testing.T) {
	a := newTestAnalyzer(t, llmparser.NewMock(domain.ParseResult{}))
	result, err := a.Analyze(context.Background(), 1, "Сходил в зал", "")
	require.NoError(t, err)
	require.NotEmpty(t, result.Actions)

	var found bool
	for _, action := range result.Actions {
		if action.Category == "спорт" {
			found = true
			assert.Equal(t, domain.ActionTypeActivity, action.Type)
			assert.Equal(t, domain.TimeSourceDefault, action.TimeSource)
			assert.Equal(t, 10, action.EstimatedTimeMinutes)
			assert.Equal(t, 1.0, action.Points)
		}
	}
	assert.True(t, found)
	assert.Nil(t, result.RawText)
}

func TestAnalyzeExplicitTimeUsesTextSource(t *testing.T) {
	a := newTestAnalyzer(t, llmparser.NewMock(domain.ParseResult{}))
	result, err := a.Analyze(context.Background(), 1, "Читал 2 часа", "")
	require.NoError(t, err)
	require.NotEmpty(t, result.Actions)
	assert.Equal(t, "учёба", result.Actions[0].Category)
	assert.Equal(t, 120, result.Actions[0].EstimatedTimeMinutes)
	assert.Equal(t, domain.TimeSourceText, result.Actions[0].TimeSource)
	assert.Equal(t, 12.0, result.Actions[0].Points)
}

func TestAnalyzeAchievement(t *testing.T) {
	a := newTestAnalyzer(t, llmparser.NewMock(domain.ParseResult{}))
	result, err := a.Analyze(context.Background(), 1, "Впервые пробежал 10 км без остановок!", "")
	require.NoError(t, err)

	var found bool
	for _, action := range result.Actions {
		if action.Type == domain.ActionTypeAchievement {
			found = true
			require.NotNil(t, action.AchievementWeight)
			assert.Positive(t, *action.AchievementWeight)
			assert.Equal(t, float64(*action.AchievementWeight), action.Points)
		}
	}
	assert.True(t, found)
}

func TestAnalyzeHistoryLearnThenUse(t *testing.T) {
	a := newTestAnalyzer(t, llmparser.NewMock(domain.ParseResult{}))
	ctx := context.Background()

	_, err := a.Analyze(ctx, 1, "Тренировался 120 минут", "")
	require.NoError(t, err)

	second, err := a.Analyze(ctx, 1, "Тренировался", "")
	require.NoError(t, err)

	require.NotEmpty(t, second.Actions)
	assert.Contains(t, []domain.TimeSource{domain.TimeSourceHistory, domain.TimeSourceText}, second.Actions[0].TimeSource)
	assert.Equal(t, 120, second.Actions[0].EstimatedTimeMinutes)
}

func TestAnalyzePIIRedaction(t *testing.T) {
	a := newTestAnalyzer(t, llmparser.NewMock(domain.ParseResult{}))
	result, err := a.Analyze(context.Background(), 1, "Сходил в зал, позвони +7 999 123-45-67", "")
	require.NoError(t, err)
	require.NotEmpty(t, result.Actions)

	serialized, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(serialized), "123-45-67")
}

func TestAnalyzeIdempotentUnderCache(t *testing.T) {
	a := newTestAnalyzer(t, llmparser.NewMock(domain.ParseResult{}))
	ctx := context.Background()

	first, err := a.Analyze(ctx, 5, "Сходил в зал", "2026-01-01")
	require.NoError(t, err)
	second, err := a.Analyze(ctx, 5, "Сходил в зал", "2026-01-01")
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))
}

func TestAnalyzeFallsBackToLLMWhenHeuristicConfidenceLow(t *testing.T) {
	mock := llmparser.NewMock(domain.ParseResult{
		Confidence: 0.9,
		Actions: []domain.RawAction{{
			Category: "творчество", Action: "написал рассказ", Type: domain.ActionTypeActivity,
			Confidence: 0.9, Source: domain.ActionSourceLLM,
		}},
	})
	a := newTestAnalyzer(t, mock)
	result, err := a.Analyze(context.Background(), 1, "сделал нечто неописуемое", "")
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, "творчество", result.Actions[0].Category)
	assert.True(t, result.Meta.UsedLLM)
}
