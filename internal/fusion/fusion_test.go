package fusion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diarynlp/internal/config"
	"diarynlp/internal/domain"
)

type stubHistory struct {
	minutes int
	ok      bool
}

func (s stubHistory) GetAverageTime(_ context.Context, _ int64, _ string) (int, bool) {
	return s.minutes, s.ok
}

func TestShouldUseLLM(t *testing.T) {
	f := New(config.Settings{HeuristicConfidenceThreshold: 0.8})

	assert.True(t, f.ShouldUseLLM(0.9, 0))
	assert.True(t, f.ShouldUseLLM(0.5, 2))
	assert.False(t, f.ShouldUseLLM(0.9, 2))
}

func intPtr(v int) *int { return &v }

func TestFusePrefersLLMActionsWhenPresent(t *testing.T) {
	f := New(config.Settings{DefaultTimeMinutes: 10})
	heur := []domain.RawAction{{Category: "спорт", Action: "зал", Type: domain.ActionTypeActivity, Confidence: 0.5}}
	llm := []domain.RawAction{{Category: "учёба", Action: "книга", Type: domain.ActionTypeActivity, Confidence: 0.9}}

	out := f.Fuse(context.Background(), 1, heur, llm, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "учёба", out[0].Category)
}

func TestFuseFallsBackToHeuristicWhenLLMEmpty(t *testing.T) {
	f := New(config.Settings{DefaultTimeMinutes: 10})
	heur := []domain.RawAction{{Category: "спорт", Action: "зал", Type: domain.ActionTypeActivity, Confidence: 0.5}}

	out := f.Fuse(context.Background(), 1, heur, nil, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "спорт", out[0].Category)
}

func TestDurationSourceTextWinsWhenConfident(t *testing.T) {
	f := New(config.Settings{DefaultTimeMinutes: 10})
	raw := []domain.RawAction{{
		Category: "учёба", Action: "читал", Type: domain.ActionTypeActivity,
		EstimatedTimeMinutes: intPtr(120), Confidence: 0.9,
	}}
	out := f.Fuse(context.Background(), 1, raw, nil, stubHistory{minutes: 999, ok: true})
	require.Len(t, out, 1)
	assert.Equal(t, domain.TimeSourceText, out[0].TimeSource)
	assert.Equal(t, 120, out[0].EstimatedTimeMinutes)
	assert.Equal(t, 12.0, out[0].Points)
}

func TestDurationSourceHistoryWinsOverModelWhenTextUnconfident(t *testing.T) {
	f := New(config.Settings{DefaultTimeMinutes: 10})
	raw := []domain.RawAction{{
		Category: "учёба", Action: "читал", Type: domain.ActionTypeActivity,
		EstimatedTimeMinutes: intPtr(30), Confidence: 0.4,
	}}
	out := f.Fuse(context.Background(), 1, raw, nil, stubHistory{minutes: 90, ok: true})
	require.Len(t, out, 1)
	assert.Equal(t, domain.TimeSourceHistory, out[0].TimeSource)
	assert.Equal(t, 90, out[0].EstimatedTimeMinutes)
}

func TestDurationSourceModelWhenNoHistory(t *testing.T) {
	f := New(config.Settings{DefaultTimeMinutes: 10})
	raw := []domain.RawAction{{
		Category: "учёба", Action: "читал", Type: domain.ActionTypeActivity,
		EstimatedTimeMinutes: intPtr(30), Confidence: 0.4,
	}}
	out := f.Fuse(context.Background(), 1, raw, nil, stubHistory{ok: false})
	require.Len(t, out, 1)
	assert.Equal(t, domain.TimeSourceModel, out[0].TimeSource)
	assert.Equal(t, 30, out[0].EstimatedTimeMinutes)
}

func TestDurationSourceDefaultWhenNothingElseAvailable(t *testing.T) {
	f := New(config.Settings{DefaultTimeMinutes: 10})
	raw := []domain.RawAction{{Category: "учёба", Action: "читал", Type: domain.ActionTypeActivity, Confidence: 0.4}}
	out := f.Fuse(context.Background(), 1, raw, nil, stubHistory{ok: false})
	require.Len(t, out, 1)
	assert.Equal(t, domain.TimeSourceDefault, out[0].TimeSource)
	assert.Equal(t, 10, out[0].EstimatedTimeMinutes)
}

func TestAchievementDefaultWeightAndPoints(t *testing.T) {
	f := New(config.Settings{AchievementDefaultWeight: 10, DefaultTimeMinutes: 10})
	raw := []domain.RawAction{{Category: "спорт", Action: "рекорд", Type: domain.ActionTypeAchievement, Confidence: 0.9}}
	out := f.Fuse(context.Background(), 1, raw, nil, nil)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].AchievementWeight)
	assert.Equal(t, 10, *out[0].AchievementWeight)
	assert.Equal(t, 10.0, out[0].Points)
}
